package usecase

import (
	"context"
	"strings"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
)

type ListingUseCase struct {
	listingRepo repository.ListingRepository
	inventory   *InventoryUseCase
}

func NewListingUseCase(listingRepo repository.ListingRepository, inventory *InventoryUseCase) *ListingUseCase {
	return &ListingUseCase{
		listingRepo: listingRepo,
		inventory:   inventory,
	}
}

type CreateListingInput struct {
	Title       string           `json:"title" validate:"required,max=120"`
	Description string           `json:"description" validate:"max=2000"`
	Category    string           `json:"category"`
	PricePerKg  float64          `json:"price_per_kg" validate:"gt=0"`
	QuantityKg  int              `json:"quantity_kg" validate:"gte=0"`
	Location    *entity.Location `json:"location"`
}

// UpdateListingInput is a partial update; nil fields are left alone.
type UpdateListingInput struct {
	Title       *string          `json:"title" validate:"omitempty,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Category    *string          `json:"category"`
	PricePerKg  *float64         `json:"price_per_kg" validate:"omitempty,gt=0"`
	QuantityKg  *int             `json:"quantity_kg" validate:"omitempty,gte=0"`
	Location    *entity.Location `json:"location"`
}

func (uc *ListingUseCase) CreateListing(ctx context.Context, sess session.Session, input CreateListingInput) (*entity.Listing, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.BadRequest("Title is required", nil)
	}
	if input.PricePerKg <= 0 {
		return nil, errors.BadRequest("Price per kg must be greater than zero", nil)
	}
	if input.QuantityKg < 0 {
		return nil, errors.BadRequest("Quantity cannot be negative", nil)
	}

	listing := &entity.Listing{
		OwnerID:     sess.UserID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Category:    input.Category,
		PricePerKg:  input.PricePerKg,
	}
	if input.Location != nil {
		listing.Location = *input.Location
	}
	listing.SetQuantity(input.QuantityKg)

	if err := uc.listingRepo.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (uc *ListingUseCase) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	return uc.listingRepo.GetByID(ctx, id)
}

func (uc *ListingUseCase) ListListings(ctx context.Context, filter entity.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	return uc.listingRepo.List(ctx, filter, limit, offset)
}

// UpdateListing applies a partial update under the listing lock, so a manual
// restock cannot interleave with an accept.
func (uc *ListingUseCase) UpdateListing(ctx context.Context, sess session.Session, id string, input UpdateListingInput) (*entity.Listing, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	unlock, err := uc.inventory.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != sess.UserID && sess.Role != session.RoleAdmin {
		return nil, errors.Forbidden("You can only update your own listings", nil)
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, errors.BadRequest("Title cannot be empty", nil)
		}
		listing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		listing.Description = *input.Description
	}
	if input.Category != nil {
		listing.Category = *input.Category
	}
	if input.PricePerKg != nil {
		if *input.PricePerKg <= 0 {
			return nil, errors.BadRequest("Price per kg must be greater than zero", nil)
		}
		listing.PricePerKg = *input.PricePerKg
	}
	if input.Location != nil {
		listing.Location = *input.Location
	}
	if input.QuantityKg != nil {
		if *input.QuantityKg < 0 {
			return nil, errors.BadRequest("Quantity cannot be negative", nil)
		}
		listing.SetQuantity(*input.QuantityKg)
	}

	if err := uc.listingRepo.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (uc *ListingUseCase) DeleteListing(ctx context.Context, sess session.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}

	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if listing.OwnerID != sess.UserID && sess.Role != session.RoleAdmin {
		return errors.Forbidden("You can only delete your own listings", nil)
	}
	return uc.listingRepo.Delete(ctx, id)
}
