// Package netzme handles Netzme QRIS payment notifications. Netzme sends one
// notification per payment; only an explicit success completes the
// transaction, anything else is acknowledged and left for a later retry.
package netzme

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const (
	Name         = "netzme"
	successCode  = "00"
	trxDataKey   = "netzme_payment"
	paidAtPrefix = "Paid at "
)

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type PaymentDetail struct {
	RRN    string `json:"rrn"`
	PaidAt string `json:"paidAt"`
}

type Notification struct {
	OriginalPartnerReferenceNo string `json:"originalPartnerReferenceNo"`
	OriginalReferenceNo        string `json:"originalReferenceNo"`
	LatestTransactionStatus    string `json:"latestTransactionStatus"`
	TransactionStatusDesc      string `json:"transactionStatusDesc"`
	Amount                     Amount `json:"amount"`
	AdditionalInfo             struct {
		PaymentDetail PaymentDetail `json:"paymentDetail"`
	} `json:"additionalInfo"`

	raw json.RawMessage
}

func (n *Notification) Reference() string { return n.OriginalPartnerReferenceNo }

// Succeeded requires both the success code and a success description.
func (n *Notification) Succeeded() bool {
	if n.LatestTransactionStatus != successCode {
		return false
	}
	desc := strings.ToLower(strings.TrimSpace(n.TransactionStatusDesc))
	return desc == "success" || desc == "paid"
}

type Adapter struct {
	svc       gateway.TransactionService
	publicKey *rsa.PublicKey
}

func NewAdapter(svc gateway.TransactionService, publicKey *rsa.PublicKey) *Adapter {
	return &Adapter{svc: svc, publicKey: publicKey}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Verify(req *gateway.Request) error {
	err := verifySignature(a.publicKey, req.Method, req.Path, req.Body,
		req.Header.Get(HeaderTimestamp), req.Header.Get(HeaderSignature))
	if err != nil {
		slog.Warn("netzme signature rejected", "path", req.Path, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrSignatureInvalid, err)
	}
	return nil
}

func (a *Adapter) Parse(req *gateway.Request) (gateway.Notification, error) {
	var n Notification
	if err := json.Unmarshal(req.Body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedPayload, err)
	}
	if n.OriginalPartnerReferenceNo == "" {
		return nil, fmt.Errorf("%w: originalPartnerReferenceNo is required", pkgerrors.ErrMalformedPayload)
	}
	n.raw = append(json.RawMessage(nil), req.Body...)
	return &n, nil
}

func (a *Adapter) Process(ctx context.Context, notif gateway.Notification) (gateway.Result, error) {
	n, ok := notif.(*Notification)
	if !ok {
		return gateway.Result{}, fmt.Errorf("%w: unexpected notification %T", pkgerrors.ErrMalformedPayload, notif)
	}
	logger := slog.With("gateway", Name, "trx_id", n.Reference(), "status_code", n.LatestTransactionStatus)

	trx, err := a.svc.Get(ctx, n.Reference())
	if err != nil {
		return gateway.Result{}, err
	}
	if trx.TrxType != models.TrxReceivePayment && trx.TrxType != models.TrxDeposit {
		logger.Warn("netzme notification for unsupported transaction type", "trx_type", trx.TrxType)
		return gateway.Failed("transaction type not applicable"), nil
	}

	if len(n.raw) > 0 {
		if err := a.svc.MergeTrxData(ctx, trx.TrxID, models.TrxData{trxDataKey: n.raw}); err != nil {
			return gateway.Result{}, err
		}
	}

	if !n.Succeeded() {
		logger.Info("netzme notification acknowledged without transition", "desc", n.TransactionStatusDesc)
		return gateway.Success("notification received"), nil
	}
	if trx.Status == models.StatusCompleted {
		logger.Info("netzme duplicate success notification")
		return gateway.Success("transaction already completed"), nil
	}

	detail := n.AdditionalInfo.PaymentDetail
	upd := models.StatusUpdate{ReferenceNumber: detail.RRN}
	if detail.PaidAt != "" {
		upd.Description = paidAtPrefix + detail.PaidAt
	}
	if _, err := a.svc.CompleteTransaction(ctx, trx.TrxID, upd); err != nil {
		return gateway.Result{}, err
	}
	logger.Info("netzme payment completed", "rrn", detail.RRN)
	return gateway.Success("transaction completed"), nil
}
