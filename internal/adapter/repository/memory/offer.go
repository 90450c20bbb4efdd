package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
)

type OfferRepository struct {
	mu     sync.Mutex
	offers map[string]entity.Offer
}

var _ repository.OfferRepository = (*OfferRepository)(nil)

func NewOfferRepository() *OfferRepository {
	return &OfferRepository{offers: make(map[string]entity.Offer)}
}

func (r *OfferRepository) Create(ctx context.Context, offer *entity.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	now := time.Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now
	r.offers[offer.ID] = *offer
	return nil
}

func (r *OfferRepository) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return nil, errors.NotFound("Offer", nil)
	}
	return &offer, nil
}

func (r *OfferRepository) Update(ctx context.Context, offer *entity.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer.UpdatedAt = time.Now()
	r.offers[offer.ID] = *offer
	return nil
}

func (r *OfferRepository) Transition(ctx context.Context, id, from, to string, mutate func(*entity.Offer)) (*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return nil, errors.NotFound("Offer", nil)
	}
	if offer.Status != from {
		return nil, errors.InvalidState(fmt.Sprintf("Offer is %s, expected %s", offer.Status, from))
	}

	offer.Status = to
	offer.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(&offer)
	}
	r.offers[id] = offer
	return &offer, nil
}

func (r *OfferRepository) ListByConversation(ctx context.Context, conversationID string) ([]*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var offers []*entity.Offer
	for _, o := range r.offers {
		if o.ConversationID == conversationID {
			offer := o
			offers = append(offers, &offer)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
	return offers, nil
}

type OfferSagaRepository struct {
	mu    sync.Mutex
	sagas map[string]entity.AcceptSaga
}

var _ repository.OfferSagaRepository = (*OfferSagaRepository)(nil)

func NewOfferSagaRepository() *OfferSagaRepository {
	return &OfferSagaRepository{sagas: make(map[string]entity.AcceptSaga)}
}

func (r *OfferSagaRepository) Claim(ctx context.Context, saga *entity.AcceptSaga) (*entity.AcceptSaga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored, ok := r.sagas[saga.ID]
	if !ok {
		claimed := *saga
		claimed.Status = entity.SagaStatusRunning
		claimed.CreatedAt = now
		claimed.UpdatedAt = now
		r.sagas[saga.ID] = claimed
		return &claimed, nil
	}
	if stored.Done() {
		return cloneSaga(stored), nil
	}
	if !stored.Claimable(now) {
		return nil, errors.Conflict("Offer is already being accepted")
	}

	stored.Status = entity.SagaStatusRunning
	stored.AcceptedBy = saga.AcceptedBy
	stored.LeaseUntil = saga.LeaseUntil
	stored.LastError = ""
	stored.UpdatedAt = now
	r.sagas[saga.ID] = stored
	return cloneSaga(stored), nil
}

func (r *OfferSagaRepository) Save(ctx context.Context, saga *entity.AcceptSaga) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	saga.UpdatedAt = time.Now()
	r.sagas[saga.ID] = *cloneSaga(*saga)
	return nil
}

func (r *OfferSagaRepository) GetByID(ctx context.Context, id string) (*entity.AcceptSaga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saga, ok := r.sagas[id]
	if !ok {
		return nil, errors.NotFound("Offer saga", nil)
	}
	return cloneSaga(saga), nil
}

func (r *OfferSagaRepository) ListDeferred(ctx context.Context, listingID string) ([]*entity.AcceptSaga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deferred []*entity.AcceptSaga
	for _, saga := range r.sagas {
		if saga.Status != entity.SagaStatusDeferred || (listingID != "" && saga.ListingID != listingID) {
			continue
		}
		deferred = append(deferred, cloneSaga(saga))
	}
	sort.Slice(deferred, func(i, j int) bool {
		return deferred[i].CreatedAt.Before(deferred[j].CreatedAt)
	})
	return deferred, nil
}

func cloneSaga(s entity.AcceptSaga) *entity.AcceptSaga {
	s.NotifiedBuyers = append([]string(nil), s.NotifiedBuyers...)
	return &s
}
