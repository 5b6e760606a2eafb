package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TransactionService drives the status state machine. Every transition is a
// compare-and-set in the store; only the caller whose write applied runs the
// outcome handler, so replayed notifications never repeat ledger effects.
type TransactionService struct {
	trxRepo  repository.TransactionRepository
	handlers map[models.TrxType]OutcomeHandler
}

func NewTransactionService(trxRepo repository.TransactionRepository, ledger WalletLedger, notifier Notifier) *TransactionService {
	return &TransactionService{
		trxRepo: trxRepo,
		handlers: map[models.TrxType]OutcomeHandler{
			models.TrxDeposit:        &DepositHandler{ledger: ledger, notifier: notifier},
			models.TrxReceivePayment: &PaymentHandler{ledger: ledger, notifier: notifier},
			models.TrxWithdraw:       &WithdrawHandler{ledger: ledger, notifier: notifier},
		},
	}
}

func (s *TransactionService) HandlerFor(t models.TrxType) OutcomeHandler {
	if h, ok := s.handlers[t]; ok {
		return h
	}
	return noopHandler{}
}

func (s *TransactionService) Get(ctx context.Context, trxID string) (*models.Transaction, error) {
	return s.trxRepo.GetByTrxID(ctx, trxID)
}

func (s *TransactionService) MergeTrxData(ctx context.Context, trxID string, data models.TrxData) error {
	if err := s.trxRepo.MergeTrxData(ctx, trxID, data); err != nil {
		return fmt.Errorf("merge trx_data for %s: %w", trxID, err)
	}
	return nil
}

func (s *TransactionService) CompleteTransaction(ctx context.Context, trxID string, upd models.StatusUpdate) (*models.Transaction, error) {
	ctx, span := startSpan(ctx, "CompleteTransaction", trxID)
	defer span.End()

	trx, applied, err := s.transition(ctx, trxID, models.StatusCompleted, upd)
	if err != nil || !applied {
		return trx, spanErr(span, err)
	}
	if err := s.HandlerFor(trx.TrxType).OnSuccess(ctx, trx); err != nil {
		slog.Error("success outcome failed", "trx_id", trxID, "trx_type", trx.TrxType, "error", err)
		return trx, spanErr(span, fmt.Errorf("apply success outcome for %s: %w", trxID, err))
	}
	return trx, nil
}

func (s *TransactionService) FailTransaction(ctx context.Context, trxID string, upd models.StatusUpdate) (*models.Transaction, error) {
	trx, _, err := s.failTransaction(ctx, trxID, upd)
	return trx, err
}

// failTransaction also reports whether this call moved the transaction.
func (s *TransactionService) failTransaction(ctx context.Context, trxID string, upd models.StatusUpdate) (*models.Transaction, bool, error) {
	ctx, span := startSpan(ctx, "FailTransaction", trxID)
	defer span.End()

	trx, applied, err := s.transition(ctx, trxID, models.StatusFailed, upd)
	if err != nil || !applied {
		return trx, false, spanErr(span, err)
	}
	if err := s.HandlerFor(trx.TrxType).OnFailure(ctx, trx); err != nil {
		slog.Error("failure outcome failed", "trx_id", trxID, "trx_type", trx.TrxType, "error", err)
		return trx, true, spanErr(span, fmt.Errorf("apply failure outcome for %s: %w", trxID, err))
	}
	return trx, true, nil
}

// CancelTransaction runs the failure outcome only when refund is set.
func (s *TransactionService) CancelTransaction(ctx context.Context, trxID string, upd models.StatusUpdate, refund bool) (*models.Transaction, error) {
	ctx, span := startSpan(ctx, "CancelTransaction", trxID)
	defer span.End()

	trx, applied, err := s.transition(ctx, trxID, models.StatusCanceled, upd)
	if err != nil || !applied || !refund {
		return trx, spanErr(span, err)
	}
	if err := s.HandlerFor(trx.TrxType).OnFailure(ctx, trx); err != nil {
		slog.Error("cancel refund failed", "trx_id", trxID, "trx_type", trx.TrxType, "error", err)
		return trx, spanErr(span, fmt.Errorf("apply cancel refund for %s: %w", trxID, err))
	}
	return trx, nil
}

// MarkAwaiting records an intermediate state. The submitted outcome fires
// only for the first move out of pending.
func (s *TransactionService) MarkAwaiting(ctx context.Context, trxID string, status models.TrxStatus, upd models.StatusUpdate) (*models.Transaction, error) {
	ctx, span := startSpan(ctx, "MarkAwaiting", trxID)
	defer span.End()

	if !status.IsAwaiting() {
		return nil, spanErr(span, fmt.Errorf("%w: %s is not an awaiting status", pkgerrors.ErrInvalidTransactionStatus, status))
	}

	trx, applied, err := s.trxRepo.Transition(ctx, trxID, status, []models.TrxStatus{models.StatusPending}, upd)
	if err != nil {
		return nil, spanErr(span, err)
	}
	if applied {
		observability.TransitionsTotal.WithLabelValues(string(trx.TrxType), string(status)).Inc()
		if err := s.HandlerFor(trx.TrxType).OnSubmitted(ctx, trx); err != nil {
			return trx, spanErr(span, fmt.Errorf("apply submitted outcome for %s: %w", trxID, err))
		}
		return trx, nil
	}

	trx, _, err = s.transition(ctx, trxID, status, upd)
	return trx, spanErr(span, err)
}

// transition applies the compare-and-set. A transaction already in to is a
// no-op; one in any other state that cannot reach to is a conflict.
func (s *TransactionService) transition(ctx context.Context, trxID string, to models.TrxStatus, upd models.StatusUpdate) (*models.Transaction, bool, error) {
	trx, applied, err := s.trxRepo.Transition(ctx, trxID, to, models.SourcesFor(to), upd)
	if err != nil {
		return nil, false, fmt.Errorf("transition %s to %s: %w", trxID, to, err)
	}
	if applied {
		observability.TransitionsTotal.WithLabelValues(string(trx.TrxType), string(to)).Inc()
		slog.Info("transaction transitioned", "trx_id", trxID, "trx_type", trx.TrxType, "status", to)
		return trx, true, nil
	}
	if trx.Status == to {
		slog.Info("transaction already in target status, outcome skipped", "trx_id", trxID, "status", to)
		return trx, false, nil
	}
	slog.Warn("transaction state conflict", "trx_id", trxID, "current", trx.Status, "requested", to)
	return trx, false, fmt.Errorf("%w: %s is %s, cannot move to %s", pkgerrors.ErrStateConflict, trxID, trx.Status, to)
}

func startSpan(ctx context.Context, name, trxID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("transaction-service").Start(ctx, name)
	span.SetAttributes(attribute.String("trx_id", trxID))
	return ctx, span
}

func spanErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
