package postgres_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	repository "github.com/writdev-alt/easylink-webhook-sub000/internal/repository/postgres"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

func TestPostgresWebhookCallRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresWebhookCallRepository(db)
	now := time.Now()

	call := &models.WebhookCall{
		Gateway:      "netzme",
		URL:          "/netzme",
		Method:       http.MethodPost,
		Headers:      http.Header{"X-Timestamp": {"2024-05-01T10:00:00+07:00"}},
		Payload:      json.RawMessage(`{"originalPartnerReferenceNo":"TRX-1"}`),
		TrxReference: "TRX-1",
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO webhook_calls (gateway, url, method, headers, payload, trx_reference)`)).
			WithArgs("netzme", "/netzme", http.MethodPost, sqlmock.AnyArg(), `{"originalPartnerReferenceNo":"TRX-1"}`, "TRX-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

		require.NoError(t, repo.Create(context.Background(), call))
		assert.Equal(t, int64(42), call.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO webhook_calls`)).
			WillReturnError(fmt.Errorf("disk full"))

		err := repo.Create(context.Background(), call)
		assert.ErrorContains(t, err, "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresWebhookLogRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresWebhookLogRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("Create", func(t *testing.T) {
		entry := &models.TransactionWebhookLog{
			TrxID:      "TRX-1",
			WebhookURL: "https://merchant.example/hook",
			EventType:  models.EventCallFailed,
			Attempt:    2,
			HTTPStatus: 503,
			Payload:    json.RawMessage(`{"event":"receive_payment"}`),
		}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transaction_webhook_logs`)).
			WithArgs("TRX-1", "https://merchant.example/hook", models.EventCallFailed, 2, 503, "", "", `{"event":"receive_payment"}`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now))

		require.NoError(t, repo.Create(ctx, entry))
		assert.Equal(t, int64(5), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListByTrxID", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transaction_webhook_logs WHERE trx_id = $1 ORDER BY id`)).
			WithArgs("TRX-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "trx_id", "webhook_url", "event_type", "attempt", "http_status", "response_body", "error_message", "payload", "created_at"}).
				AddRow(int64(5), "TRX-1", "https://merchant.example/hook", "call_failed", 1, 503, "", "", `{}`, now).
				AddRow(int64(6), "TRX-1", "https://merchant.example/hook", "call_succeeded", 2, 200, "ok", "", `{}`, now))

		list, err := repo.ListByTrxID(ctx, "TRX-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, models.EventCallSucceeded, list[1].EventType)
		assert.Equal(t, 200, list[1].HTTPStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresMerchantRepository_GetWebhookSettings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresMerchantRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM merchants WHERE id = $1`)).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "webhook_enabled", "webhook_url", "webhook_secret"}).
				AddRow(int64(7), true, "https://merchant.example/hook", "s3cret"))

		s, err := repo.GetWebhookSettings(ctx, 7)
		require.NoError(t, err)
		assert.True(t, s.Enabled)
		assert.Equal(t, "s3cret", s.Secret)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM merchants`)).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "webhook_enabled", "webhook_url", "webhook_secret"}))

		_, err := repo.GetWebhookSettings(ctx, 8)
		assert.ErrorIs(t, err, pkgerrors.ErrMerchantNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
