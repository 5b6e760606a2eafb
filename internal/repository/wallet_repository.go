package repository

import (
	"context"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
)

// WalletRepository exposes only atomic single-row increments. sandbox
// selects the shadow balance pair.
type WalletRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*models.Wallet, error)
	Credit(ctx context.Context, uuid string, sandbox bool, amount int64) (*models.Wallet, error)
	// Debit fails with ErrInsufficientAvailableBalance when
	// balance - hold_balance < amount.
	Debit(ctx context.Context, uuid string, sandbox bool, amount int64) (*models.Wallet, error)
	Hold(ctx context.Context, uuid string, sandbox bool, amount int64) (bool, error)
	// Release reports false without changes when hold_balance < amount.
	Release(ctx context.Context, uuid string, sandbox bool, amount int64) (bool, error)
}
