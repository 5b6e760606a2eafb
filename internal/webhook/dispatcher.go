package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

// Dispatcher builds, signs and hands merchant webhooks to the delivery
// queue. Automatic sends for terminal transactions are guarded by the
// webhook_call timestamp and fire at most once; Resend bypasses the guard.
type Dispatcher struct {
	trxRepo   repository.TransactionRepository
	merchants repository.MerchantRepository
	queue     Queue
	now       func() time.Time
}

func NewDispatcher(trxRepo repository.TransactionRepository, merchants repository.MerchantRepository, queue Queue) *Dispatcher {
	return &Dispatcher{
		trxRepo:   trxRepo,
		merchants: merchants,
		queue:     queue,
		now:       time.Now,
	}
}

// Send reports whether the webhook was handed off.
func (d *Dispatcher) Send(ctx context.Context, trx *models.Transaction, message string) bool {
	ok, err := d.dispatch(ctx, trx, message, trx.Status.IsTerminal(), false)
	if err != nil {
		slog.Error("webhook handoff failed", "trx_id", trx.TrxID, "trx_type", trx.TrxType, "error", err)
	}
	return ok
}

func (d *Dispatcher) Resend(ctx context.Context, trx *models.Transaction, message string) (bool, error) {
	return d.dispatch(ctx, trx, message, false, true)
}

func (d *Dispatcher) dispatch(ctx context.Context, trx *models.Transaction, message string, guarded, manual bool) (bool, error) {
	if trx == nil {
		return false, pkgerrors.ErrNilTransaction
	}
	logger := slog.With("trx_id", trx.TrxID, "trx_type", trx.TrxType, "status", trx.Status)

	if trx.MerchantID == nil {
		logger.Info("webhook skipped: transaction has no merchant")
		return false, nil
	}
	settings, err := d.merchants.GetWebhookSettings(ctx, *trx.MerchantID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrMerchantNotFound) {
			logger.Warn("webhook skipped: merchant not found", "merchant_id", *trx.MerchantID)
			return false, nil
		}
		return false, fmt.Errorf("load webhook settings: %w", err)
	}
	if !settings.Enabled {
		logger.Info("webhook skipped: disabled for merchant", "merchant_id", settings.MerchantID)
		return false, nil
	}
	if guarded && trx.WebhookCall != nil {
		logger.Info("webhook skipped: already sent", "webhook_call", *trx.WebhookCall)
		return false, nil
	}
	if settings.URL == "" || settings.Secret == "" {
		logger.Warn("webhook skipped: url or secret not configured", "merchant_id", settings.MerchantID)
		return false, nil
	}

	body, err := json.Marshal(BuildPayload(trx, message))
	if err != nil {
		return false, fmt.Errorf("encode webhook payload: %w", err)
	}
	job := Job{
		ID:         uuid.NewString(),
		TrxID:      trx.TrxID,
		URL:        settings.URL,
		Event:      string(trx.TrxType),
		Body:       body,
		Signature:  Sign(settings.Secret, body),
		Manual:     manual,
		EnqueuedAt: d.now().UTC(),
	}

	// Postgres keeps microseconds; the claim must compare equal on release.
	claimedAt := d.now().UTC().Truncate(time.Microsecond)
	if guarded {
		claimed, err := d.trxRepo.MarkWebhookCalled(ctx, trx.TrxID, claimedAt)
		if err != nil {
			return false, fmt.Errorf("claim webhook_call: %w", err)
		}
		if !claimed {
			logger.Info("webhook skipped: already sent")
			return false, nil
		}
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		if guarded {
			if cerr := d.trxRepo.ClearWebhookCall(ctx, trx.TrxID, claimedAt); cerr != nil {
				logger.Error("failed to release webhook_call claim", "error", cerr)
			}
		}
		return false, fmt.Errorf("%w: enqueue: %v", pkgerrors.ErrWebhookDeliveryFailed, err)
	}

	if guarded {
		trx.WebhookCall = &claimedAt
	}
	logger.Info("webhook handed off", "job_id", job.ID, "url", job.URL, "manual", manual)
	return true, nil
}
