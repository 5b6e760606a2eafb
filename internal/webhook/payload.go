package webhook

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
)

// Payload is the JSON body merchants receive.
type Payload struct {
	Event     string `json:"event"`
	Data      Data   `json:"data"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Data holds the transaction fields. Type specific blocks are omitted for
// types that do not carry them.
type Data struct {
	TrxID           string           `json:"trx_id"`
	TrxReference    string           `json:"trx_reference,omitempty"`
	TrxType         models.TrxType   `json:"trx_type"`
	Status          models.TrxStatus `json:"status"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	NetAmount       *int64           `json:"net_amount,omitempty"`
	PayableAmount   *decimal.Decimal `json:"payable_amount,omitempty"`
	PayableCurrency string           `json:"payable_currency,omitempty"`
	Fee             *decimal.Decimal `json:"fee,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	Remarks         string           `json:"remarks,omitempty"`
	Environment     string           `json:"environment"`
	Sandbox         bool             `json:"sandbox"`
	Customer        *Customer        `json:"customer,omitempty"`
	Destination     *Destination     `json:"destination_account,omitempty"`
}

// Customer is read from the "customer" key of trx_data.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Destination is read from the "withdrawal_account" key of trx_data.
type Destination struct {
	BankCode      string `json:"bank_code,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
}

func BuildPayload(trx *models.Transaction, message string) Payload {
	if message == "" {
		message = DefaultMessage(trx)
	}
	data := Data{
		TrxID:        trx.TrxID,
		TrxReference: trx.TrxReference,
		TrxType:      trx.TrxType,
		Status:       trx.Status,
		Amount:       trx.Amount,
		Currency:     trx.Currency,
		Environment:  trx.Environment(),
		Sandbox:      trx.Sandbox,
	}

	switch trx.TrxType {
	case models.TrxReceivePayment, models.TrxDeposit:
		withSettlement(&data, trx)
		var c Customer
		if ok, _ := trx.TrxData.Decode("customer", &c); ok {
			data.Customer = &c
		}
	case models.TrxWithdraw:
		withSettlement(&data, trx)
		var d Destination
		if ok, _ := trx.TrxData.Decode("withdrawal_account", &d); ok {
			data.Destination = &d
		}
	}

	return Payload{
		Event:     string(trx.TrxType),
		Data:      data,
		Message:   message,
		Timestamp: trx.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func withSettlement(data *Data, trx *models.Transaction) {
	net := trx.NetAmount
	payable := trx.PayableAmount
	fee := trx.Fees.Total()
	data.NetAmount = &net
	data.PayableAmount = &payable
	data.PayableCurrency = trx.PayableCurrency
	data.Fee = &fee
	data.ReferenceNumber = trx.ReferenceNumber
	data.Remarks = trx.Remarks
}

var typeLabels = map[models.TrxType]string{
	models.TrxDeposit:        "Deposit",
	models.TrxReceivePayment: "Payment",
	models.TrxWithdraw:       "Withdrawal",
}

// DefaultMessage is the sentence used when the caller supplies none.
func DefaultMessage(trx *models.Transaction) string {
	label, ok := typeLabels[trx.TrxType]
	if !ok {
		label = strings.ReplaceAll(string(trx.TrxType), "_", " ")
		if label != "" {
			label = strings.ToUpper(label[:1]) + label[1:]
		} else {
			label = "Transaction"
		}
	}

	switch {
	case trx.Status == models.StatusCompleted:
		return label + " completed successfully"
	case trx.Status == models.StatusFailed:
		return label + " failed"
	case trx.Status == models.StatusCanceled:
		return label + " was canceled"
	case trx.Status == models.StatusRefunded:
		return label + " was refunded"
	case trx.Status == models.StatusExpired:
		return label + " has expired"
	case trx.Status.IsAwaiting():
		return label + " is being processed"
	default:
		return label + " is pending"
	}
}
