package models

import (
	"encoding/json"
	"net/http"
	"time"
)

// WebhookCall is the raw inbound notification exactly as a gateway sent it.
type WebhookCall struct {
	ID           int64           `json:"id"`
	Gateway      string          `json:"gateway"`
	URL          string          `json:"url"`
	Method       string          `json:"method"`
	Headers      http.Header     `json:"headers"`
	Payload      json.RawMessage `json:"payload"`
	TrxReference string          `json:"trx_reference"`
	CreatedAt    time.Time       `json:"created_at"`
}

type WebhookEventType string

const (
	EventCallSucceeded   WebhookEventType = "call_succeeded"
	EventCallFailed      WebhookEventType = "call_failed"
	EventFinalCallFailed WebhookEventType = "final_call_failed"
)

// TransactionWebhookLog records one outbound delivery attempt.
type TransactionWebhookLog struct {
	ID           int64            `json:"id"`
	TrxID        string           `json:"trx_id"`
	WebhookURL   string           `json:"webhook_url"`
	EventType    WebhookEventType `json:"event_type"`
	Attempt      int              `json:"attempt"`
	HTTPStatus   int              `json:"http_status,omitempty"`
	ResponseBody string           `json:"response_body,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Payload      json.RawMessage  `json:"payload"`
	CreatedAt    time.Time        `json:"created_at"`
}

type WebhookSettings struct {
	MerchantID int64  `json:"merchant_id"`
	Enabled    bool   `json:"webhook_enabled"`
	URL        string `json:"webhook_url"`
	Secret     string `json:"-"`
}
