package errors

import (
	"errors"
	"net/http"
)

var (
	ErrTransactionNotFound          = errors.New("transaction not found")
	ErrWalletNotFound               = errors.New("wallet not found")
	ErrMerchantNotFound             = errors.New("merchant not found")
	ErrNilTransaction               = errors.New("transaction is nil")
	ErrInvalidAmount                = errors.New("invalid amount")
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")
	ErrInvalidTransactionStatus     = errors.New("invalid transaction status")
	ErrStateConflict                = errors.New("transaction state conflict")
	ErrSignatureInvalid             = errors.New("invalid signature")
	ErrUnsupportedGateway           = errors.New("unsupported gateway")
	ErrMalformedPayload             = errors.New("malformed payload")
	ErrUnknownPartnerState          = errors.New("unknown partner state")
	ErrPartnerUnavailable           = errors.New("partner unavailable")
	ErrPartnerUnauthorized          = errors.New("partner rejected credentials")
	ErrPartnerReferenceNotFound     = errors.New("reference not found at partner")
	ErrReconciliationUnsupported    = errors.New("gateway does not support reconciliation")
	ErrWebhookDeliveryFailed        = errors.New("webhook delivery failed")
	ErrInvalidInput                 = errors.New("invalid input")
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Classify maps an error to the HTTP status and severity exposed to API
// consumers. Unknown errors are internal.
func Classify(err error) (int, Severity) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrWalletNotFound),
		errors.Is(err, ErrMerchantNotFound),
		errors.Is(err, ErrUnsupportedGateway):
		return http.StatusNotFound, SeverityWarning
	case errors.Is(err, ErrSignatureInvalid):
		return http.StatusUnauthorized, SeverityError
	case errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrReconciliationUnsupported):
		return http.StatusBadRequest, SeverityWarning
	case errors.Is(err, ErrUnknownPartnerState):
		return http.StatusBadRequest, SeverityError
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusUnprocessableEntity, SeverityError
	case errors.Is(err, ErrInsufficientAvailableBalance):
		return http.StatusUnprocessableEntity, SeverityWarning
	case errors.Is(err, ErrStateConflict):
		return http.StatusConflict, SeverityWarning
	case errors.Is(err, ErrPartnerUnavailable),
		errors.Is(err, ErrPartnerUnauthorized):
		return http.StatusBadGateway, SeverityError
	default:
		return http.StatusInternalServerError, SeverityError
	}
}

// IsBusiness reports whether err is a rule or validation failure whose
// message is safe to show to callers.
func IsBusiness(err error) bool {
	status, _ := Classify(err)
	return status != http.StatusInternalServerError
}
