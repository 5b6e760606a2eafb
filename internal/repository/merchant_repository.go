package repository

import (
	"context"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
)

type MerchantRepository interface {
	GetWebhookSettings(ctx context.Context, merchantID int64) (*models.WebhookSettings, error)
}
