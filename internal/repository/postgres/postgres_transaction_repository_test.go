package postgres_test

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
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

var transactionColumnNames = []string{
	"id", "trx_id", "trx_type", "processing_type", "user_id", "merchant_id", "customer_id",
	"wallet_reference", "method_type", "method_id", "currency", "amount", "net_amount",
	"payable_amount", "payable_currency", "ma_fee", "mdr_fee", "admin_fee", "agent_fee", "cashback_fee", "trx_fee",
	"status", "trx_reference", "reference_number", "remarks",
	"description", "trx_data", "sandbox", "completed_at", "released_at", "webhook_call", "created_at", "updated_at",
}

func transactionRow(trxID string, status models.TrxStatus, webhookCall driver.Value) *sqlmock.Rows {
	return completedTransactionRow(trxID, status, nil, webhookCall)
}

func completedTransactionRow(trxID string, status models.TrxStatus, completedAt, webhookCall driver.Value) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(transactionColumnNames).AddRow(
		int64(1), trxID, "receive_payment", "netzme", int64(10), int64(7), nil,
		"wallet-uuid", "", nil, "IDR", "10000.00", int64(9500),
		"10000", "IDR", "0", "500", "0", "0", "0", "0",
		string(status), "", "RRN-1", "", "",
		[]byte(`{"redirect_url":"https://shop.example/done"}`), false, completedAt, nil, webhookCall, now, now,
	)
}

func TestPostgresTransactionRepository_GetByTrxID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db, false)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE trx_id = $1 AND sandbox = $2`)).
			WithArgs("TRX-1", false).
			WillReturnRows(transactionRow("TRX-1", models.StatusPending, nil))

		trx, err := repo.GetByTrxID(ctx, "TRX-1")
		require.NoError(t, err)
		assert.Equal(t, "TRX-1", trx.TrxID)
		assert.Equal(t, models.TrxReceivePayment, trx.TrxType)
		assert.Equal(t, models.StatusPending, trx.Status)
		assert.Equal(t, int64(9500), trx.NetAmount)
		assert.Equal(t, "10000", trx.Amount.String())
		require.NotNil(t, trx.MerchantID)
		assert.Equal(t, int64(7), *trx.MerchantID)
		assert.Nil(t, trx.CustomerID)
		assert.Nil(t, trx.WebhookCall)
		assert.JSONEq(t, `"https://shop.example/done"`, string(trx.TrxData["redirect_url"]))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE trx_id = $1`)).
			WithArgs("TRX-404", false).
			WillReturnRows(sqlmock.NewRows(transactionColumnNames))

		trx, err := repo.GetByTrxID(ctx, "TRX-404")
		assert.Nil(t, trx)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE trx_id = $1`)).
			WithArgs("TRX-1", false).
			WillReturnError(fmt.Errorf("connection reset"))

		_, err := repo.GetByTrxID(ctx, "TRX-1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_Transition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db, false)
	ctx := context.Background()
	upd := models.StatusUpdate{ReferenceNumber: "RRN-1", Remarks: "paid"}

	t.Run("Applied", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`completed_at = CASE WHEN $2 = 'completed' THEN NOW() ELSE completed_at END`)).
			WithArgs("TRX-1", models.StatusCompleted, "RRN-1", "paid", "", sqlmock.AnyArg(), false).
			WillReturnRows(transactionRow("TRX-1", models.StatusCompleted, nil))

		trx, applied, err := repo.Transition(ctx, "TRX-1", models.StatusCompleted, models.SourcesFor(models.StatusCompleted), upd)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, models.StatusCompleted, trx.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyMoved", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE transactions SET status = $2`)).
			WillReturnRows(sqlmock.NewRows(transactionColumnNames))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE trx_id = $1`)).
			WithArgs("TRX-1", false).
			WillReturnRows(transactionRow("TRX-1", models.StatusCompleted, nil))

		trx, applied, err := repo.Transition(ctx, "TRX-1", models.StatusCompleted, models.SourcesFor(models.StatusCompleted), upd)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, models.StatusCompleted, trx.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE transactions SET status = $2`)).
			WillReturnRows(sqlmock.NewRows(transactionColumnNames))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE trx_id = $1`)).
			WillReturnRows(sqlmock.NewRows(transactionColumnNames))

		_, applied, err := repo.Transition(ctx, "TRX-404", models.StatusFailed, models.SourcesFor(models.StatusFailed), upd)
		assert.False(t, applied)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		_, _, err := repo.Transition(ctx, "TRX-1", models.TrxStatus("settled"), nil, upd)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_MergeTrxData(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db, true)
	ctx := context.Background()
	data := models.TrxData{"easylink_settlement": json.RawMessage(`{"state":9}`)}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`SET trx_data = COALESCE(trx_data, '{}'::jsonb) || $2::jsonb`)).
			WithArgs("TRX-2", sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MergeTrxData(ctx, "TRX-2", data))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`SET trx_data`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MergeTrxData(ctx, "TRX-404", data), pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyIsNoop", func(t *testing.T) {
		assert.NoError(t, repo.MergeTrxData(ctx, "TRX-2", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_WebhookCall(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db, false)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("FirstMarkWins", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET webhook_call = $2 WHERE trx_id = $1 AND webhook_call IS NULL`)).
			WithArgs("TRX-1", at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		marked, err := repo.MarkWebhookCalled(ctx, "TRX-1", at)
		require.NoError(t, err)
		assert.True(t, marked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyMarked", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`SET webhook_call = $2`)).
			WithArgs("TRX-1", at).
			WillReturnResult(sqlmock.NewResult(0, 0))

		marked, err := repo.MarkWebhookCalled(ctx, "TRX-1", at)
		require.NoError(t, err)
		assert.False(t, marked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Clear", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`SET webhook_call = NULL WHERE trx_id = $1 AND webhook_call = $2`)).
			WithArgs("TRX-1", at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ClearWebhookCall(ctx, "TRX-1", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_ListStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db, false)
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := transactionRow("TRX-3", models.StatusAwaitingUserAction, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE status = ANY($1) AND created_at < $2 AND sandbox = $3`)).
		WithArgs(sqlmock.AnyArg(), cutoff, false, 50).
		WillReturnRows(rows)

	list, err := repo.ListStale(context.Background(), models.AwaitingStatuses, cutoff, 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "TRX-3", list[0].TrxID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransactionRepository_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db, false)
	ctx := context.Background()
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ListReleasable", func(t *testing.T) {
		completedAt := cutoff.Add(-2 * time.Hour)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE trx_type = $1 AND status = $2 AND released_at IS NULL AND completed_at < $3`)).
			WithArgs(models.TrxReceivePayment, models.StatusCompleted, cutoff, false, 10).
			WillReturnRows(completedTransactionRow("TRX-1", models.StatusCompleted, completedAt, cutoff))

		list, err := repo.ListReleasable(ctx, cutoff, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.NotNil(t, list[0].CompletedAt)
		assert.True(t, completedAt.Equal(*list[0].CompletedAt))
		require.NotNil(t, list[0].WebhookCall)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MarkReleased", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`SET released_at = $2 WHERE trx_id = $1 AND released_at IS NULL`)).
			WithArgs("TRX-1", cutoff).
			WillReturnResult(sqlmock.NewResult(0, 1))

		marked, err := repo.MarkReleased(ctx, "TRX-1", cutoff)
		require.NoError(t, err)
		assert.True(t, marked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
