package usecase

import (
	"context"
	"fmt"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
)

type TransactionUseCase struct {
	transactionRepo repository.TransactionRepository
	notifications   *NotificationUseCase
}

func NewTransactionUseCase(transactionRepo repository.TransactionRepository, notifications *NotificationUseCase) *TransactionUseCase {
	return &TransactionUseCase{
		transactionRepo: transactionRepo,
		notifications:   notifications,
	}
}

// ListTransactions lists the caller's transactions as buyer or seller.
func (uc *TransactionUseCase) ListTransactions(ctx context.Context, sess session.Session, role, status string, limit, offset int) ([]*entity.Transaction, int64, error) {
	if err := requireSession(sess); err != nil {
		return nil, 0, err
	}
	if role == "" {
		role = "buyer"
	}
	return uc.transactionRepo.ListByUserID(ctx, sess.UserID, role, status, limit, offset)
}

func (uc *TransactionUseCase) GetTransaction(ctx context.Context, sess session.Session, transactionID string) (*entity.Transaction, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.BuyerID != sess.UserID && transaction.SellerID != sess.UserID && sess.Role != session.RoleAdmin {
		return nil, errors.Forbidden("You are not part of this transaction", nil)
	}
	return transaction, nil
}

// MarkPaid is the buyer confirming payment of an accepted transaction.
func (uc *TransactionUseCase) MarkPaid(ctx context.Context, sess session.Session, transactionID string) (*entity.Transaction, error) {
	transaction, err := uc.GetTransaction(ctx, sess, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.BuyerID != sess.UserID {
		return nil, errors.Forbidden("Only the buyer can mark a transaction as paid", nil)
	}

	paid, err := uc.advance(ctx, transaction, entity.TransactionStatusPaid)
	if err != nil {
		return nil, err
	}

	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID:   paid.SellerID,
		Type:     entity.NotificationPaymentMarked,
		Title:    "Payment sent",
		Body:     fmt.Sprintf("The buyer marked %s for %s as paid", paid.CropTitle, formatRupiah(paid.PriceTotal)),
		Metadata: map[string]interface{}{"transaction_id": paid.ID},
	})
	return paid, nil
}

// Complete is the seller confirming handover after payment.
func (uc *TransactionUseCase) Complete(ctx context.Context, sess session.Session, transactionID string) (*entity.Transaction, error) {
	transaction, err := uc.GetTransaction(ctx, sess, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.SellerID != sess.UserID {
		return nil, errors.Forbidden("Only the seller can complete a transaction", nil)
	}

	completed, err := uc.advance(ctx, transaction, entity.TransactionStatusCompleted)
	if err != nil {
		return nil, err
	}

	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID:   completed.BuyerID,
		Type:     entity.NotificationCompleted,
		Title:    "Transaction completed",
		Body:     fmt.Sprintf("Your purchase of %d kg %s is complete", completed.QuantityKg, completed.CropTitle),
		Metadata: map[string]interface{}{"transaction_id": completed.ID},
	})
	return completed, nil
}

func (uc *TransactionUseCase) advance(ctx context.Context, transaction *entity.Transaction, to string) (*entity.Transaction, error) {
	if !entity.CanTransitionTransaction(transaction.Status, to) {
		return nil, errors.InvalidState(fmt.Sprintf("Cannot move transaction from %s to %s", transaction.Status, to))
	}

	updated, err := uc.transactionRepo.Transition(ctx, transaction.ID, transaction.Status, to, nil)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"transaction_id": updated.ID,
		"status":         updated.Status,
	}).Info("Transaction status updated")
	return updated, nil
}
