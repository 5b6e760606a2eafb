// Package ledger owns every mutation of wallet balances.
//
// Amounts arrive as decimals and are converted to integer minor units with
// an intentional asymmetry: credits round down and debits round up, so the
// ledger never credits a fractional excess nor under-collects a debit.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type Ledger struct {
	wallets repository.WalletRepository
	sandbox bool
}

// New returns a ledger bound to one mode. In sandbox mode all primitives
// operate on the sandbox shadow balances.
func New(wallets repository.WalletRepository, sandbox bool) *Ledger {
	return &Ledger{wallets: wallets, sandbox: sandbox}
}

// CreditUnits is the integer amount AddMoney applies for amount.
func CreditUnits(amount decimal.Decimal) int64 {
	return amount.Floor().IntPart()
}

// DebitUnits is the integer amount SubtractMoney applies for amount.
func DebitUnits(amount decimal.Decimal) int64 {
	return amount.Ceil().IntPart()
}

func (l *Ledger) AddMoney(ctx context.Context, walletUUID string, amount decimal.Decimal) (*models.Wallet, error) {
	ctx, span := otel.Tracer("ledger").Start(ctx, "AddMoney")
	span.SetAttributes(attribute.String("wallet", walletUUID), attribute.String("amount", amount.String()))
	defer span.End()

	if !amount.IsPositive() {
		observability.LedgerOperations.WithLabelValues("add_money", "invalid").Inc()
		return nil, fmt.Errorf("%w: credit of %s", pkgerrors.ErrInvalidAmount, amount)
	}

	units := CreditUnits(amount)
	if units == 0 {
		// Sub-unit credits floor to nothing.
		return l.wallets.GetByUUID(ctx, walletUUID)
	}

	w, err := l.wallets.Credit(ctx, walletUUID, l.sandbox, units)
	if err != nil {
		observability.LedgerOperations.WithLabelValues("add_money", "error").Inc()
		return nil, fmt.Errorf("add money to %s: %w", walletUUID, err)
	}
	observability.LedgerOperations.WithLabelValues("add_money", "success").Inc()
	slog.Info("wallet credited", "wallet", walletUUID, "amount", units, "sandbox", l.sandbox)
	return w, nil
}

func (l *Ledger) SubtractMoney(ctx context.Context, walletUUID string, amount decimal.Decimal) (*models.Wallet, error) {
	ctx, span := otel.Tracer("ledger").Start(ctx, "SubtractMoney")
	span.SetAttributes(attribute.String("wallet", walletUUID), attribute.String("amount", amount.String()))
	defer span.End()

	if !amount.IsPositive() {
		observability.LedgerOperations.WithLabelValues("subtract_money", "invalid").Inc()
		return nil, fmt.Errorf("%w: debit of %s", pkgerrors.ErrInvalidAmount, amount)
	}

	units := DebitUnits(amount)
	w, err := l.wallets.Debit(ctx, walletUUID, l.sandbox, units)
	if err != nil {
		observability.LedgerOperations.WithLabelValues("subtract_money", "error").Inc()
		return nil, fmt.Errorf("subtract money from %s: %w", walletUUID, err)
	}
	observability.LedgerOperations.WithLabelValues("subtract_money", "success").Inc()
	slog.Info("wallet debited", "wallet", walletUUID, "amount", units, "sandbox", l.sandbox)
	return w, nil
}

// AddToHoldBalance earmarks funds already credited to the balance.
func (l *Ledger) AddToHoldBalance(ctx context.Context, walletUUID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%w: hold of %d", pkgerrors.ErrInvalidAmount, amount)
	}
	ok, err := l.wallets.Hold(ctx, walletUUID, l.sandbox, amount)
	if err != nil {
		observability.LedgerOperations.WithLabelValues("add_hold", "error").Inc()
		return false, fmt.Errorf("hold funds on %s: %w", walletUUID, err)
	}
	observability.LedgerOperations.WithLabelValues("add_hold", "success").Inc()
	return ok, nil
}

// ReleaseHoldFunds reports false without touching the wallet when less than
// amount is held.
func (l *Ledger) ReleaseHoldFunds(ctx context.Context, walletUUID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%w: release of %d", pkgerrors.ErrInvalidAmount, amount)
	}
	ok, err := l.wallets.Release(ctx, walletUUID, l.sandbox, amount)
	if err != nil {
		observability.LedgerOperations.WithLabelValues("release_hold", "error").Inc()
		return false, fmt.Errorf("release funds on %s: %w", walletUUID, err)
	}
	if !ok {
		observability.LedgerOperations.WithLabelValues("release_hold", "insufficient").Inc()
		slog.Warn("hold release skipped", "wallet", walletUUID, "amount", amount)
		return false, nil
	}
	observability.LedgerOperations.WithLabelValues("release_hold", "success").Inc()
	return true, nil
}
