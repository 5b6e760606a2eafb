// Package easylink handles Easylink disbursement callbacks and pull
// reconciliation. Easylink reports a payout through many intermediate
// states; only complete, remind_recipient and the failure states are final.
package easylink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const (
	Name = "easylink"

	keySettlement   = "easylink_settlement"
	keyDisbursement = "easylink_disbursement"

	RemarkFailedAtInstitution = "Failed at institution"
)

type Notification struct {
	Ref            string `json:"reference"`
	DisbursementID string `json:"disbursement_id"`
	State          State  `json:"state"`
	Reason         string `json:"reason"`

	raw json.RawMessage
}

func (n *Notification) Reference() string { return n.Ref }

// TransferQuerier is the part of Client the adapter needs.
type TransferQuerier interface {
	QueryTransfer(ctx context.Context, reference string) (*Transfer, error)
}

type Adapter struct {
	svc            gateway.TransactionService
	client         TransferQuerier
	callbackSecret string
}

var (
	_ gateway.Adapter    = (*Adapter)(nil)
	_ gateway.Reconciler = (*Adapter)(nil)
)

func NewAdapter(svc gateway.TransactionService, client TransferQuerier, callbackSecret string) *Adapter {
	return &Adapter{svc: svc, client: client, callbackSecret: callbackSecret}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Verify(req *gateway.Request) error {
	if !validSignature(a.callbackSecret, req.Body, req.Header.Get(HeaderSignature)) {
		slog.Warn("easylink signature rejected", "path", req.Path)
		return pkgerrors.ErrSignatureInvalid
	}
	return nil
}

func (a *Adapter) Parse(req *gateway.Request) (gateway.Notification, error) {
	var n Notification
	if err := json.Unmarshal(req.Body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedPayload, err)
	}
	if n.Ref == "" {
		return nil, fmt.Errorf("%w: reference is required", pkgerrors.ErrMalformedPayload)
	}
	n.raw = append(json.RawMessage(nil), req.Body...)
	return &n, nil
}

func (a *Adapter) Process(ctx context.Context, notif gateway.Notification) (gateway.Result, error) {
	n, ok := notif.(*Notification)
	if !ok {
		return gateway.Result{}, fmt.Errorf("%w: unexpected notification %T", pkgerrors.ErrMalformedPayload, notif)
	}
	return a.apply(ctx, n)
}

// Reconcile pulls the transfer state for trxID and applies it as if the
// partner had pushed it. A reference unknown to the partner fails the
// transaction so the reserved funds are refunded.
func (a *Adapter) Reconcile(ctx context.Context, trxID string) (gateway.Result, error) {
	trx, err := a.svc.Get(ctx, trxID)
	if err != nil {
		return gateway.Result{}, err
	}
	if trx.Status.IsTerminal() {
		return gateway.Success("transaction already " + string(trx.Status)), nil
	}

	transfer, err := a.client.QueryTransfer(ctx, trx.TrxID)
	if errors.Is(err, pkgerrors.ErrPartnerReferenceNotFound) {
		slog.Warn("easylink has no record of transaction", "trx_id", trxID)
		if _, err := a.svc.FailTransaction(ctx, trxID, models.StatusUpdate{Remarks: RemarkFailedAtInstitution}); err != nil {
			return gateway.Result{}, err
		}
		return gateway.Success("transaction failed at institution"), nil
	}
	if err != nil {
		return gateway.Result{}, err
	}

	raw, err := json.Marshal(transfer)
	if err != nil {
		return gateway.Result{}, err
	}
	return a.apply(ctx, &Notification{
		Ref:            trx.TrxID,
		DisbursementID: transfer.DisbursementID,
		State:          transfer.State,
		Reason:         transfer.Reason,
		raw:            raw,
	})
}

func (a *Adapter) apply(ctx context.Context, n *Notification) (gateway.Result, error) {
	logger := slog.With("gateway", Name, "trx_id", n.Ref, "state", n.State.String(), "disbursement_id", n.DisbursementID)

	trx, err := a.svc.Get(ctx, n.Ref)
	if err != nil {
		return gateway.Result{}, err
	}

	key := keyDisbursement
	if n.State.IsTerminal() {
		key = keySettlement
	}
	if len(n.raw) > 0 {
		if err := a.svc.MergeTrxData(ctx, trx.TrxID, models.TrxData{key: n.raw}); err != nil {
			return gateway.Result{}, err
		}
	}

	switch {
	case !n.State.Known():
		logger.Error("easylink sent an unknown state", "code", int(n.State))
		return gateway.Result{}, fmt.Errorf("%w: easylink state %d", pkgerrors.ErrUnknownPartnerState, int(n.State))

	case n.State.IsSuccess():
		if trx.Status == models.StatusCompleted {
			logger.Info("easylink duplicate completion")
			return gateway.Success("transaction already completed"), nil
		}
		upd := models.StatusUpdate{ReferenceNumber: n.DisbursementID, Remarks: "Easylink " + n.State.String()}
		if _, err := a.svc.CompleteTransaction(ctx, trx.TrxID, upd); err != nil {
			return gateway.Result{}, err
		}
		logger.Info("easylink disbursement completed")
		return gateway.Success("transaction completed"), nil

	case n.State.IsFailure():
		if trx.Status == models.StatusFailed {
			logger.Info("easylink duplicate failure")
			return gateway.Success("transaction already failed"), nil
		}
		remarks := n.Reason
		if remarks == "" {
			remarks = "Easylink " + n.State.String()
		}
		upd := models.StatusUpdate{ReferenceNumber: n.DisbursementID, Remarks: remarks}
		if _, err := a.svc.FailTransaction(ctx, trx.TrxID, upd); err != nil {
			return gateway.Result{}, err
		}
		logger.Info("easylink disbursement failed", "reason", n.Reason)
		return gateway.Success("transaction failed"), nil

	default:
		if trx.Status.IsTerminal() {
			logger.Info("easylink progress update after final state ignored", "status", trx.Status)
			return gateway.Success("notification ignored"), nil
		}
		upd := models.StatusUpdate{Remarks: "Easylink " + n.State.String()}
		if _, err := a.svc.MarkAwaiting(ctx, trx.TrxID, models.StatusAwaitingFIProcess, upd); err != nil {
			return gateway.Result{}, err
		}
		return gateway.Success("notification received"), nil
	}
}
