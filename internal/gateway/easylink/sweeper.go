package easylink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
)

// Sweeper reconciles Easylink payouts that have waited longer than after
// without a callback.
type Sweeper struct {
	trxRepo    repository.TransactionRepository
	reconciler gateway.Reconciler
	after      time.Duration
	batchSize  int
	now        func() time.Time
}

func NewSweeper(trxRepo repository.TransactionRepository, reconciler gateway.Reconciler, after time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		trxRepo:    trxRepo,
		reconciler: reconciler,
		after:      after,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) (int, error) {
	pending, err := s.trxRepo.ListStale(ctx, []models.TrxStatus{models.StatusAwaitingFIProcess}, s.now().Add(-s.after), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list easylink payouts: %w", err)
	}

	reconciled := 0
	for _, trx := range pending {
		if trx.ProcessingType != models.ProcessingEasylink {
			continue
		}
		if ctx.Err() != nil {
			return reconciled, ctx.Err()
		}
		res, err := s.reconciler.Reconcile(ctx, trx.TrxID)
		if err != nil {
			slog.Error("easylink reconciliation failed", "trx_id", trx.TrxID, "error", err)
			continue
		}
		slog.Debug("easylink reconciliation", "trx_id", trx.TrxID, "result", res.Message)
		reconciled++
	}
	return reconciled, nil
}
