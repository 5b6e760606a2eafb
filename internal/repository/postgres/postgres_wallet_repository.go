package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const walletTracer = "wallet-repository"

const walletColumns = `id, uuid, user_id, currency, balance, hold_balance, sandbox_balance, sandbox_hold_balance, updated_at`

type PostgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

// balanceColumns picks the column pair a mutation touches. The names are
// constants, never caller input.
func balanceColumns(sandbox bool) (balance, hold string) {
	if sandbox {
		return "sandbox_balance", "sandbox_hold_balance"
	}
	return "balance", "hold_balance"
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UUID, &w.UserID, &w.Currency, &w.Balance, &w.HoldBalance,
		&w.SandboxBalance, &w.SandboxHoldBalance, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *PostgresWalletRepository) GetByUUID(ctx context.Context, uuid string) (wallet *models.Wallet, err error) {
	ctx, done := observe(ctx, walletTracer, "GetWalletByUUID", attribute.String("wallet", uuid))
	defer done(&err)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE uuid = $1`
	wallet, err = scanWallet(r.db.QueryRowContext(ctx, query, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrWalletNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %s: %w", uuid, err)
	}
	return wallet, nil
}

func (r *PostgresWalletRepository) Credit(ctx context.Context, uuid string, sandbox bool, amount int64) (wallet *models.Wallet, err error) {
	ctx, done := observe(ctx, walletTracer, "CreditWallet",
		attribute.String("wallet", uuid),
		attribute.Int64("amount", amount),
	)
	defer done(&err)

	bal, _ := balanceColumns(sandbox)
	query := fmt.Sprintf(`UPDATE wallets SET %[1]s = %[1]s + $2, updated_at = NOW() WHERE uuid = $1 RETURNING `+walletColumns, bal)

	wallet, err = scanWallet(r.db.QueryRowContext(ctx, query, uuid, amount))
	if errors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrWalletNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to credit wallet", "wallet", uuid, "amount", amount, "error", err)
		return nil, fmt.Errorf("failed to credit wallet %s: %w", uuid, err)
	}
	return wallet, nil
}

func (r *PostgresWalletRepository) Debit(ctx context.Context, uuid string, sandbox bool, amount int64) (wallet *models.Wallet, err error) {
	ctx, done := observe(ctx, walletTracer, "DebitWallet",
		attribute.String("wallet", uuid),
		attribute.Int64("amount", amount),
	)
	defer done(&err)

	bal, hold := balanceColumns(sandbox)
	query := fmt.Sprintf(`UPDATE wallets SET %[1]s = %[1]s - $2, updated_at = NOW()
		WHERE uuid = $1 AND %[1]s - %[2]s >= $2
		RETURNING `+walletColumns, bal, hold)

	wallet, err = scanWallet(r.db.QueryRowContext(ctx, query, uuid, amount))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE uuid = $1)`, uuid).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check wallet %s: %w", uuid, err)
		}
		if !exists {
			err = pkgerrors.ErrWalletNotFound
			return nil, err
		}
		err = fmt.Errorf("%w: wallet %s cannot cover %d", pkgerrors.ErrInsufficientAvailableBalance, uuid, amount)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to debit wallet", "wallet", uuid, "amount", amount, "error", err)
		return nil, fmt.Errorf("failed to debit wallet %s: %w", uuid, err)
	}
	return wallet, nil
}

func (r *PostgresWalletRepository) Hold(ctx context.Context, uuid string, sandbox bool, amount int64) (ok bool, err error) {
	ctx, done := observe(ctx, walletTracer, "HoldWalletFunds",
		attribute.String("wallet", uuid),
		attribute.Int64("amount", amount),
	)
	defer done(&err)

	_, hold := balanceColumns(sandbox)
	query := fmt.Sprintf(`UPDATE wallets SET %[1]s = %[1]s + $2, updated_at = NOW() WHERE uuid = $1`, hold)
	res, err := r.db.ExecContext(ctx, query, uuid, amount)
	if err != nil {
		return false, fmt.Errorf("failed to hold funds on wallet %s: %w", uuid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		err = pkgerrors.ErrWalletNotFound
		return false, err
	}
	return true, nil
}

func (r *PostgresWalletRepository) Release(ctx context.Context, uuid string, sandbox bool, amount int64) (ok bool, err error) {
	ctx, done := observe(ctx, walletTracer, "ReleaseWalletFunds",
		attribute.String("wallet", uuid),
		attribute.Int64("amount", amount),
	)
	defer done(&err)

	_, hold := balanceColumns(sandbox)
	query := fmt.Sprintf(`UPDATE wallets SET %[1]s = %[1]s - $2, updated_at = NOW() WHERE uuid = $1 AND %[1]s >= $2`, hold)
	res, err := r.db.ExecContext(ctx, query, uuid, amount)
	if err != nil {
		return false, fmt.Errorf("failed to release funds on wallet %s: %w", uuid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
