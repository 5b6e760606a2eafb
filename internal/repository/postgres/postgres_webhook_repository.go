package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

type PostgresWebhookCallRepository struct {
	db *sql.DB
}

func NewPostgresWebhookCallRepository(db *sql.DB) *PostgresWebhookCallRepository {
	return &PostgresWebhookCallRepository{db: db}
}

func (r *PostgresWebhookCallRepository) Create(ctx context.Context, call *models.WebhookCall) (err error) {
	ctx, done := observe(ctx, "webhook-call-repository", "CreateWebhookCall",
		attribute.String("gateway", call.Gateway),
		attribute.String("trx_reference", call.TrxReference),
	)
	defer done(&err)

	headers, err := json.Marshal(call.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	query := `INSERT INTO webhook_calls (gateway, url, method, headers, payload, trx_reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query,
		call.Gateway, call.URL, call.Method, headers, string(call.Payload), call.TrxReference,
	).Scan(&call.ID, &call.CreatedAt)
	if err != nil {
		slog.Error("failed to store webhook call", "gateway", call.Gateway, "trx_reference", call.TrxReference, "error", err)
		return fmt.Errorf("failed to store webhook call: %w", err)
	}
	return nil
}

type PostgresWebhookLogRepository struct {
	db *sql.DB
}

func NewPostgresWebhookLogRepository(db *sql.DB) *PostgresWebhookLogRepository {
	return &PostgresWebhookLogRepository{db: db}
}

func (r *PostgresWebhookLogRepository) Create(ctx context.Context, entry *models.TransactionWebhookLog) (err error) {
	ctx, done := observe(ctx, "webhook-log-repository", "CreateWebhookLog",
		attribute.String("trx_id", entry.TrxID),
		attribute.String("event", string(entry.EventType)),
	)
	defer done(&err)

	query := `INSERT INTO transaction_webhook_logs
		(trx_id, webhook_url, event_type, attempt, http_status, response_body, error_message, payload)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7, $8)
		RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query,
		entry.TrxID, entry.WebhookURL, entry.EventType, entry.Attempt, entry.HTTPStatus,
		entry.ResponseBody, entry.ErrorMessage, string(entry.Payload),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store webhook log for %s: %w", entry.TrxID, err)
	}
	return nil
}

func (r *PostgresWebhookLogRepository) ListByTrxID(ctx context.Context, trxID string) (list []models.TransactionWebhookLog, err error) {
	ctx, done := observe(ctx, "webhook-log-repository", "ListWebhookLogs", attribute.String("trx_id", trxID))
	defer done(&err)

	query := `SELECT id, trx_id, webhook_url, event_type, attempt, COALESCE(http_status, 0),
			COALESCE(response_body, ''), COALESCE(error_message, ''), payload, created_at
		FROM transaction_webhook_logs
		WHERE trx_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, trxID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook logs for %s: %w", trxID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry   models.TransactionWebhookLog
			payload string
		)
		if err = rows.Scan(&entry.ID, &entry.TrxID, &entry.WebhookURL, &entry.EventType, &entry.Attempt,
			&entry.HTTPStatus, &entry.ResponseBody, &entry.ErrorMessage, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}
		entry.Payload = json.RawMessage(payload)
		list = append(list, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook logs: %w", err)
	}
	return list, nil
}
