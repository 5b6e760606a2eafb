package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const transactionTracer = "transaction-repository"

const transactionColumns = `id, trx_id, trx_type, processing_type, user_id, merchant_id, customer_id,
	wallet_reference, COALESCE(method_type, ''), method_id, currency, amount, net_amount,
	payable_amount, payable_currency, ma_fee, mdr_fee, admin_fee, agent_fee, cashback_fee, trx_fee,
	status, COALESCE(trx_reference, ''), COALESCE(reference_number, ''), COALESCE(remarks, ''),
	COALESCE(description, ''), trx_data, sandbox, completed_at, released_at, webhook_call, created_at, updated_at`

type PostgresTransactionRepository struct {
	db      *sql.DB
	sandbox bool
}

// NewPostgresTransactionRepository scopes every lookup to rows of the given
// mode, so sandbox traffic never resolves production transactions.
func NewPostgresTransactionRepository(db *sql.DB, sandbox bool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db, sandbox: sandbox}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		trx                            models.Transaction
		merchantID, customerID, method sql.NullInt64
		completedAt, releasedAt        sql.NullTime
		webhookCall                    sql.NullTime
	)
	err := row.Scan(
		&trx.ID, &trx.TrxID, &trx.TrxType, &trx.ProcessingType, &trx.UserID, &merchantID, &customerID,
		&trx.WalletReference, &trx.MethodType, &method, &trx.Currency, &trx.Amount, &trx.NetAmount,
		&trx.PayableAmount, &trx.PayableCurrency, &trx.Fees.MaFee, &trx.Fees.MdrFee, &trx.Fees.AdminFee,
		&trx.Fees.AgentFee, &trx.Fees.CashbackFee, &trx.Fees.TrxFee,
		&trx.Status, &trx.TrxReference, &trx.ReferenceNumber, &trx.Remarks,
		&trx.Description, &trx.TrxData, &trx.Sandbox, &completedAt, &releasedAt, &webhookCall, &trx.CreatedAt, &trx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if merchantID.Valid {
		trx.MerchantID = &merchantID.Int64
	}
	if customerID.Valid {
		trx.CustomerID = &customerID.Int64
	}
	if method.Valid {
		trx.MethodID = &method.Int64
	}
	if completedAt.Valid {
		trx.CompletedAt = &completedAt.Time
	}
	if releasedAt.Valid {
		trx.ReleasedAt = &releasedAt.Time
	}
	if webhookCall.Valid {
		trx.WebhookCall = &webhookCall.Time
	}
	return &trx, nil
}

func statusArray(statuses []models.TrxStatus) pq.StringArray {
	out := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PostgresTransactionRepository) GetByTrxID(ctx context.Context, trxID string) (trx *models.Transaction, err error) {
	ctx, done := observe(ctx, transactionTracer, "GetTransactionByTrxID", attribute.String("trx_id", trxID))
	defer done(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE trx_id = $1 AND sandbox = $2`
	trx, err = scanTransaction(r.db.QueryRowContext(ctx, query, trxID, r.sandbox))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrTransactionNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get transaction", "method", "GetByTrxID", "trx_id", trxID, "error", err)
		return nil, fmt.Errorf("failed to get transaction %s: %w", trxID, err)
	}
	return trx, nil
}

func (r *PostgresTransactionRepository) Transition(ctx context.Context, trxID string, to models.TrxStatus, from []models.TrxStatus, upd models.StatusUpdate) (trx *models.Transaction, applied bool, err error) {
	ctx, done := observe(ctx, transactionTracer, "TransitionTransaction",
		attribute.String("trx_id", trxID),
		attribute.String("status", string(to)),
	)
	defer done(&err)

	if !to.Valid() {
		err = pkgerrors.ErrInvalidTransactionStatus
		return nil, false, err
	}

	query := `UPDATE transactions
		SET status = $2,
			reference_number = COALESCE(NULLIF($3, ''), reference_number),
			remarks = COALESCE(NULLIF($4, ''), remarks),
			description = COALESCE(NULLIF($5, ''), description),
			completed_at = CASE WHEN $2 = '` + string(models.StatusCompleted) + `' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE trx_id = $1 AND status = ANY($6) AND sandbox = $7
		RETURNING ` + transactionColumns

	trx, err = scanTransaction(r.db.QueryRowContext(ctx, query,
		trxID, to, upd.ReferenceNumber, upd.Remarks, upd.Description, statusArray(from), r.sandbox,
	))
	if stderrors.Is(err, sql.ErrNoRows) {
		// Either the row is missing or another writer moved it first.
		err = nil
		current, getErr := r.GetByTrxID(ctx, trxID)
		if getErr != nil {
			err = getErr
			return nil, false, err
		}
		return current, false, nil
	}
	if err != nil {
		slog.Error("failed to transition transaction", "method", "Transition", "trx_id", trxID, "to", to, "error", err)
		return nil, false, fmt.Errorf("failed to transition transaction %s: %w", trxID, err)
	}

	slog.Info("transaction status updated", "trx_id", trxID, "status", to)
	return trx, true, nil
}

func (r *PostgresTransactionRepository) MergeTrxData(ctx context.Context, trxID string, data models.TrxData) (err error) {
	ctx, done := observe(ctx, transactionTracer, "MergeTrxData", attribute.String("trx_id", trxID))
	defer done(&err)

	if len(data) == 0 {
		return nil
	}

	// jsonb || is a shallow top level union, the same contract as TrxData.Merge.
	query := `UPDATE transactions
		SET trx_data = COALESCE(trx_data, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
		WHERE trx_id = $1 AND sandbox = $3`
	res, err := r.db.ExecContext(ctx, query, trxID, data, r.sandbox)
	if err != nil {
		slog.Error("failed to merge trx_data", "trx_id", trxID, "error", err)
		return fmt.Errorf("failed to merge trx_data for %s: %w", trxID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = pkgerrors.ErrTransactionNotFound
		return err
	}
	return nil
}

func (r *PostgresTransactionRepository) MarkWebhookCalled(ctx context.Context, trxID string, at time.Time) (marked bool, err error) {
	ctx, done := observe(ctx, transactionTracer, "MarkWebhookCalled", attribute.String("trx_id", trxID))
	defer done(&err)

	query := `UPDATE transactions SET webhook_call = $2 WHERE trx_id = $1 AND webhook_call IS NULL`
	res, err := r.db.ExecContext(ctx, query, trxID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook call for %s: %w", trxID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresTransactionRepository) ClearWebhookCall(ctx context.Context, trxID string, at time.Time) (err error) {
	ctx, done := observe(ctx, transactionTracer, "ClearWebhookCall", attribute.String("trx_id", trxID))
	defer done(&err)

	query := `UPDATE transactions SET webhook_call = NULL WHERE trx_id = $1 AND webhook_call = $2`
	if _, err = r.db.ExecContext(ctx, query, trxID, at); err != nil {
		return fmt.Errorf("failed to clear webhook call for %s: %w", trxID, err)
	}
	return nil
}

func (r *PostgresTransactionRepository) ListStale(ctx context.Context, statuses []models.TrxStatus, createdBefore time.Time, limit int) (list []models.Transaction, err error) {
	ctx, done := observe(ctx, transactionTracer, "ListStaleTransactions")
	defer done(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = ANY($1) AND created_at < $2 AND sandbox = $3
		ORDER BY created_at
		LIMIT $4`
	return r.list(ctx, query, statusArray(statuses), createdBefore, r.sandbox, limit)
}

func (r *PostgresTransactionRepository) ListReleasable(ctx context.Context, completedBefore time.Time, limit int) (list []models.Transaction, err error) {
	ctx, done := observe(ctx, transactionTracer, "ListReleasableTransactions")
	defer done(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE trx_type = $1 AND status = $2 AND released_at IS NULL AND completed_at < $3 AND sandbox = $4
		ORDER BY completed_at
		LIMIT $5`
	return r.list(ctx, query, models.TrxReceivePayment, models.StatusCompleted, completedBefore, r.sandbox, limit)
}

func (r *PostgresTransactionRepository) MarkReleased(ctx context.Context, trxID string, at time.Time) (marked bool, err error) {
	ctx, done := observe(ctx, transactionTracer, "MarkReleased", attribute.String("trx_id", trxID))
	defer done(&err)

	query := `UPDATE transactions SET released_at = $2 WHERE trx_id = $1 AND released_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, trxID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s released: %w", trxID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresTransactionRepository) list(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *trx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}
