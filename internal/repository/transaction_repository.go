package repository

import (
	"context"
	"time"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
)

type TransactionRepository interface {
	GetByTrxID(ctx context.Context, trxID string) (*models.Transaction, error)
	// Transition moves trxID to status `to` only if its current status is one
	// of from. When the row is not in an allowed source status it returns the
	// stored transaction and applied=false.
	Transition(ctx context.Context, trxID string, to models.TrxStatus, from []models.TrxStatus, upd models.StatusUpdate) (trx *models.Transaction, applied bool, err error)
	// MergeTrxData shallow-merges data into the stored metadata bag.
	MergeTrxData(ctx context.Context, trxID string, data models.TrxData) error
	// MarkWebhookCalled sets webhook_call to at if it is still null and
	// reports whether this call set it.
	MarkWebhookCalled(ctx context.Context, trxID string, at time.Time) (bool, error)
	// ClearWebhookCall undoes MarkWebhookCalled(trxID, at).
	ClearWebhookCall(ctx context.Context, trxID string, at time.Time) error
	ListStale(ctx context.Context, statuses []models.TrxStatus, createdBefore time.Time, limit int) ([]models.Transaction, error)
	ListReleasable(ctx context.Context, completedBefore time.Time, limit int) ([]models.Transaction, error)
	MarkReleased(ctx context.Context, trxID string, at time.Time) (bool, error)
}
