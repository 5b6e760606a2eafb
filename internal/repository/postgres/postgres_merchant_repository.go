package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

type PostgresMerchantRepository struct {
	db *sql.DB
}

func NewPostgresMerchantRepository(db *sql.DB) *PostgresMerchantRepository {
	return &PostgresMerchantRepository{db: db}
}

func (r *PostgresMerchantRepository) GetWebhookSettings(ctx context.Context, merchantID int64) (settings *models.WebhookSettings, err error) {
	ctx, done := observe(ctx, "merchant-repository", "GetWebhookSettings", attribute.Int64("merchant_id", merchantID))
	defer done(&err)

	query := `
		SELECT id, webhook_enabled, COALESCE(webhook_url, ''), COALESCE(webhook_secret, '')
		FROM merchants
		WHERE id = $1
	`
	var s models.WebhookSettings
	err = r.db.QueryRowContext(ctx, query, merchantID).Scan(&s.MerchantID, &s.Enabled, &s.URL, &s.Secret)
	if errors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrMerchantNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook settings for merchant %d: %w", merchantID, err)
	}
	return &s, nil
}
