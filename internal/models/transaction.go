package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID              int64           `json:"id"`
	TrxID           string          `json:"trx_id"`
	TrxType         TrxType         `json:"trx_type"`
	ProcessingType  ProcessingType  `json:"processing_type"`
	UserID          int64           `json:"user_id"`
	MerchantID      *int64          `json:"merchant_id,omitempty"`
	CustomerID      *int64          `json:"customer_id,omitempty"`
	WalletReference string          `json:"wallet_reference"`
	MethodType      string          `json:"method_type,omitempty"`
	MethodID        *int64          `json:"method_id,omitempty"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	NetAmount       int64           `json:"net_amount"`
	PayableAmount   decimal.Decimal `json:"payable_amount"`
	PayableCurrency string          `json:"payable_currency"`
	Fees            Fees            `json:"fees"`
	Status          TrxStatus       `json:"status"`
	TrxReference    string          `json:"trx_reference,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
	Description     string          `json:"description,omitempty"`
	TrxData         TrxData         `json:"trx_data,omitempty"`
	Sandbox         bool            `json:"sandbox"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ReleasedAt      *time.Time      `json:"released_at,omitempty"`
	WebhookCall     *time.Time      `json:"webhook_call,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Fees are tracked per component. Total is for reporting only; no balance
// math depends on it.
type Fees struct {
	MaFee       decimal.Decimal `json:"ma_fee"`
	MdrFee      decimal.Decimal `json:"mdr_fee"`
	AdminFee    decimal.Decimal `json:"admin_fee"`
	AgentFee    decimal.Decimal `json:"agent_fee"`
	CashbackFee decimal.Decimal `json:"cashback_fee"`
	TrxFee      decimal.Decimal `json:"trx_fee"`
}

func (f Fees) Total() decimal.Decimal {
	return decimal.Sum(f.MaFee, f.MdrFee, f.AdminFee, f.AgentFee, f.CashbackFee, f.TrxFee)
}

func (t *Transaction) AmountFlow() AmountFlow {
	return t.TrxType.AmountFlow()
}

// Environment is the label merchants see for the transaction's mode.
func (t *Transaction) Environment() string {
	if t.Sandbox {
		return "sandbox"
	}
	return "production"
}

type TrxType string

const (
	TrxDeposit         TrxType = "deposit"
	TrxWithdraw        TrxType = "withdraw"
	TrxReceivePayment  TrxType = "receive_payment"
	TrxPayment         TrxType = "payment"
	TrxSendMoney       TrxType = "send_money"
	TrxExchange        TrxType = "exchange"
	TrxVoucher         TrxType = "voucher"
	TrxAddBalance      TrxType = "add_balance"
	TrxSubtractBalance TrxType = "subtract_balance"
	TrxRefund          TrxType = "refund"
	TrxReferralReward  TrxType = "referral_reward"
	TrxReward          TrxType = "reward"
)

type AmountFlow string

const (
	FlowPlus    AmountFlow = "plus"
	FlowMinus   AmountFlow = "minus"
	FlowDefault AmountFlow = "default"
)

func (t TrxType) AmountFlow() AmountFlow {
	switch t {
	case TrxDeposit, TrxReceivePayment, TrxAddBalance, TrxRefund, TrxReferralReward, TrxReward, TrxVoucher:
		return FlowPlus
	case TrxWithdraw, TrxPayment, TrxSendMoney, TrxSubtractBalance:
		return FlowMinus
	default:
		return FlowDefault
	}
}

// Sign is the display prefix for amounts of this flow.
func (f AmountFlow) Sign() string {
	switch f {
	case FlowPlus:
		return "+"
	case FlowMinus:
		return "-"
	default:
		return ""
	}
}

type ProcessingType string

const (
	ProcessingAutomatic ProcessingType = "automatic"
	ProcessingManual    ProcessingType = "manual"
	ProcessingAdmin     ProcessingType = "admin"
	ProcessingSystem    ProcessingType = "system"
	ProcessingNetzme    ProcessingType = "netzme"
	ProcessingEasylink  ProcessingType = "easylink"
)

// StatusUpdate carries the optional text fields written alongside a status
// transition. Empty fields leave the stored value untouched.
type StatusUpdate struct {
	ReferenceNumber string
	Remarks         string
	Description     string
}
