package repository

import (
	"context"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
)

// WebhookCallRepository stores raw inbound gateway payloads. Append only.
type WebhookCallRepository interface {
	Create(ctx context.Context, call *models.WebhookCall) error
}

// WebhookLogRepository stores outbound delivery attempts. Append only.
type WebhookLogRepository interface {
	Create(ctx context.Context, entry *models.TransactionWebhookLog) error
	ListByTrxID(ctx context.Context, trxID string) ([]models.TransactionWebhookLog, error)
}
