package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
)

// HoldReleaser unlocks held payment funds once the hold period after
// completion has elapsed. The released_at marker is claimed before the
// ledger call so a transaction is released at most once.
type HoldReleaser struct {
	trxRepo    repository.TransactionRepository
	ledger     WalletLedger
	holdPeriod time.Duration
	batchSize  int
	now        func() time.Time
}

func NewHoldReleaser(trxRepo repository.TransactionRepository, ledger WalletLedger, holdPeriod time.Duration, batchSize int) *HoldReleaser {
	return &HoldReleaser{
		trxRepo:    trxRepo,
		ledger:     ledger,
		holdPeriod: holdPeriod,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (r *HoldReleaser) Run(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.trxRepo.ListReleasable(ctx, now.Add(-r.holdPeriod), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list releasable transactions: %w", err)
	}

	released := 0
	for _, trx := range due {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		claimed, err := r.trxRepo.MarkReleased(ctx, trx.TrxID, now)
		if err != nil {
			slog.Error("failed to mark transaction released", "trx_id", trx.TrxID, "error", err)
			continue
		}
		if !claimed || trx.NetAmount <= 0 {
			continue
		}
		ok, err := r.ledger.ReleaseHoldFunds(ctx, trx.WalletReference, trx.NetAmount)
		if err != nil {
			slog.Error("failed to release held funds", "trx_id", trx.TrxID, "wallet", trx.WalletReference, "error", err)
			continue
		}
		if !ok {
			slog.Warn("held funds already below payment amount", "trx_id", trx.TrxID, "wallet", trx.WalletReference)
			continue
		}
		released++
	}
	return released, nil
}
