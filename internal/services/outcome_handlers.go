package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
)

// OutcomeHandler applies the ledger and notification side effects of a
// status transition for one transaction type.
type OutcomeHandler interface {
	OnSuccess(ctx context.Context, trx *models.Transaction) error
	OnFailure(ctx context.Context, trx *models.Transaction) error
	OnSubmitted(ctx context.Context, trx *models.Transaction) error
}

type WalletLedger interface {
	AddMoney(ctx context.Context, walletUUID string, amount decimal.Decimal) (*models.Wallet, error)
	SubtractMoney(ctx context.Context, walletUUID string, amount decimal.Decimal) (*models.Wallet, error)
	AddToHoldBalance(ctx context.Context, walletUUID string, amount int64) (bool, error)
	ReleaseHoldFunds(ctx context.Context, walletUUID string, amount int64) (bool, error)
}

// Notifier hands a merchant webhook to the delivery pipeline. An empty
// message selects the default sentence for the transaction's state.
type Notifier interface {
	Send(ctx context.Context, trx *models.Transaction, message string) bool
}

var (
	_ OutcomeHandler = (*DepositHandler)(nil)
	_ OutcomeHandler = (*PaymentHandler)(nil)
	_ OutcomeHandler = (*WithdrawHandler)(nil)
	_ OutcomeHandler = noopHandler{}
)

type DepositHandler struct {
	ledger   WalletLedger
	notifier Notifier
}

func (h *DepositHandler) OnSuccess(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")
	if _, err := h.ledger.AddMoney(ctx, trx.WalletReference, decimal.NewFromInt(trx.NetAmount)); err != nil {
		return fmt.Errorf("credit deposit %s: %w", trx.TrxID, err)
	}
	return nil
}

func (h *DepositHandler) OnFailure(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")
	return nil
}

func (h *DepositHandler) OnSubmitted(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")
	return nil
}

// PaymentHandler settles receive_payment transactions. Received funds are
// credited and then locked in hold until the hold period elapses.
type PaymentHandler struct {
	ledger   WalletLedger
	notifier Notifier
}

func (h *PaymentHandler) OnSuccess(ctx context.Context, trx *models.Transaction) error {
	if _, err := h.ledger.AddMoney(ctx, trx.WalletReference, decimal.NewFromInt(trx.NetAmount)); err != nil {
		return fmt.Errorf("credit payment %s: %w", trx.TrxID, err)
	}
	if _, err := h.ledger.AddToHoldBalance(ctx, trx.WalletReference, trx.NetAmount); err != nil {
		return fmt.Errorf("hold payment %s: %w", trx.TrxID, err)
	}
	h.notifier.Send(ctx, trx, "")
	return nil
}

func (h *PaymentHandler) OnFailure(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")
	return nil
}

func (h *PaymentHandler) OnSubmitted(context.Context, *models.Transaction) error {
	return nil
}

type WithdrawHandler struct {
	ledger   WalletLedger
	notifier Notifier
}

// OnSuccess settles the payout. A reserved withdrawal releases exactly its
// own reservation and then leaves the balance; nothing else in the shared
// hold pool is touched. One debited at request time has nothing left to move.
func (h *WithdrawHandler) OnSuccess(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")

	reserved, err := trx.TrxData.WithdrawReservation()
	if err != nil {
		return fmt.Errorf("read withdrawal reservation %s: %w", trx.TrxID, err)
	}
	if reserved == 0 {
		slog.Info("withdrawal settled without reservation", "trx_id", trx.TrxID)
		return nil
	}
	if err := h.releaseReservation(ctx, trx, reserved); err != nil {
		return err
	}
	if _, err := h.ledger.SubtractMoney(ctx, trx.WalletReference, trx.PayableAmount); err != nil {
		return fmt.Errorf("settle withdrawal %s: %w", trx.TrxID, err)
	}
	return nil
}

// OnFailure hands the funds back. A reserved withdrawal never left the
// balance, so only its hold is lifted; one debited at request time is
// credited back by the payable amount.
func (h *WithdrawHandler) OnFailure(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")

	reserved, err := trx.TrxData.WithdrawReservation()
	if err != nil {
		return fmt.Errorf("read withdrawal reservation %s: %w", trx.TrxID, err)
	}
	if reserved > 0 {
		return h.releaseReservation(ctx, trx, reserved)
	}
	if _, err := h.ledger.AddMoney(ctx, trx.WalletReference, trx.PayableAmount); err != nil {
		return fmt.Errorf("refund withdrawal %s: %w", trx.TrxID, err)
	}
	return nil
}

func (h *WithdrawHandler) releaseReservation(ctx context.Context, trx *models.Transaction, reserved int64) error {
	released, err := h.ledger.ReleaseHoldFunds(ctx, trx.WalletReference, reserved)
	if err != nil {
		return fmt.Errorf("release withdrawal reservation %s: %w", trx.TrxID, err)
	}
	if !released {
		slog.Warn("withdrawal reservation exceeds held funds", "trx_id", trx.TrxID, "amount", reserved)
	}
	return nil
}

func (h *WithdrawHandler) OnSubmitted(ctx context.Context, trx *models.Transaction) error {
	h.notifier.Send(ctx, trx, "")
	return nil
}

type noopHandler struct{}

func (noopHandler) OnSuccess(context.Context, *models.Transaction) error   { return nil }
func (noopHandler) OnFailure(context.Context, *models.Transaction) error   { return nil }
func (noopHandler) OnSubmitted(context.Context, *models.Transaction) error { return nil }
