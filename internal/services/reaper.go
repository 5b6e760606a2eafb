package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const StaleRemark = "Transaction expired: no gateway notification received within the allowed window"

// Reaper fails transactions stuck in an awaiting state longer than
// staleAfter.
type Reaper struct {
	trxRepo    repository.TransactionRepository
	svc        *TransactionService
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func NewReaper(trxRepo repository.TransactionRepository, svc *TransactionService, staleAfter time.Duration, batchSize int) *Reaper {
	return &Reaper{
		trxRepo:    trxRepo,
		svc:        svc,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Run performs one sweep and returns how many transactions it failed. A
// transaction resolved by a notification between listing and failing is
// skipped.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.staleAfter)
	stale, err := r.trxRepo.ListStale(ctx, models.AwaitingStatuses, cutoff, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale transactions: %w", err)
	}

	failed := 0
	for _, trx := range stale {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		_, applied, err := r.svc.failTransaction(ctx, trx.TrxID, models.StatusUpdate{Remarks: StaleRemark})
		switch {
		case err == nil && applied:
			failed++
		case err == nil:
			slog.Info("stale transaction already failed", "trx_id", trx.TrxID)
		case errors.Is(err, pkgerrors.ErrStateConflict):
			slog.Info("stale transaction resolved concurrently", "trx_id", trx.TrxID)
		default:
			slog.Error("failed to expire stale transaction", "trx_id", trx.TrxID, "error", err)
		}
	}
	if failed > 0 {
		slog.Info("stale transactions failed", "count", failed, "cutoff", cutoff)
	}
	return failed, nil
}
