package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/auth"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const (
	maxNotificationBody = 1 << 20
	notificationLockTTL = 30 * time.Second
	internalMessage     = "internal server error"
)

type TransactionLookup interface {
	Get(ctx context.Context, trxID string) (*models.Transaction, error)
}

type Resender interface {
	Resend(ctx context.Context, trx *models.Transaction, message string) (bool, error)
}

// Locker serialises notifications that share a partner reference.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Handler struct {
	registry *gateway.Registry
	calls    repository.WebhookCallRepository
	locker   Locker
	trxs     TransactionLookup
	resender Resender
	debug    bool
}

func NewHandler(registry *gateway.Registry, calls repository.WebhookCallRepository, locker Locker, trxs TransactionLookup, resender Resender, debug bool) *Handler {
	return &Handler{
		registry: registry,
		calls:    calls,
		locker:   locker,
		trxs:     trxs,
		resender: resender,
		debug:    debug,
	}
}

type response struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

type resendData struct {
	TrxID   string         `json:"trx_id"`
	TrxType models.TrxType `json:"trx_type"`
}

type resendResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    resendData `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with the status and severity Classify assigns. Internal
// errors keep their detail in the log unless debug is on.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, severity := pkgerrors.Classify(err)
	logger := observability.Logger(r.Context())
	message := err.Error()

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
		if !h.debug && !pkgerrors.IsBusiness(err) {
			message = internalMessage
		}
	case severity == pkgerrors.SeverityError:
		logger.Error("request rejected", "path", r.URL.Path, "status", status, "error", err)
	default:
		logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, response{Status: gateway.StatusFailed, Message: message, Severity: string(severity)})
}

// Notify is the inbound endpoint for every gateway: POST /{gateway} and
// POST /{gateway}/{action}.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["gateway"]
	ctx := r.Context()
	logger := observability.Logger(ctx).With("gateway", name)

	adapter, err := h.registry.Get(name)
	if err != nil {
		observability.NotificationsTotal.WithLabelValues("unsupported", "rejected").Inc()
		h.writeError(w, r, err)
		return
	}
	name = adapter.Name()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBody))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: read body: %v", pkgerrors.ErrMalformedPayload, err))
		return
	}

	req := &gateway.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		URL:    r.URL.String(),
		Action: vars["action"],
		Header: r.Header.Clone(),
		Body:   body,
	}
	if err := adapter.Verify(req); err != nil {
		observability.NotificationsTotal.WithLabelValues(name, "rejected").Inc()
		h.writeError(w, r, err)
		return
	}
	notification, err := adapter.Parse(req)
	if err != nil {
		observability.NotificationsTotal.WithLabelValues(name, "rejected").Inc()
		h.writeError(w, r, err)
		return
	}

	call := &models.WebhookCall{
		Gateway:      name,
		URL:          req.URL,
		Method:       req.Method,
		Headers:      req.Header,
		Payload:      body,
		TrxReference: notification.Reference(),
	}
	if err := h.calls.Create(ctx, call); err != nil {
		h.writeError(w, r, fmt.Errorf("persist raw notification: %w", err))
		return
	}

	lockKey := name + ":" + notification.Reference()
	locked, err := h.locker.Acquire(ctx, lockKey, notificationLockTTL)
	switch {
	case err != nil:
		logger.Warn("notification lock unavailable, processing unlocked", "reference", notification.Reference(), "error", err)
	case !locked:
		observability.NotificationsTotal.WithLabelValues(name, "busy").Inc()
		logger.Warn("notification already in progress", "reference", notification.Reference())
		writeJSON(w, http.StatusConflict, response{Status: gateway.StatusFailed, Message: "notification already in progress", Severity: string(pkgerrors.SeverityWarning)})
		return
	default:
		defer func() {
			if err := h.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
				logger.Warn("failed to release notification lock", "reference", notification.Reference(), "error", err)
			}
		}()
	}

	result, err := adapter.Process(ctx, notification)
	if errors.Is(err, pkgerrors.ErrStateConflict) {
		observability.NotificationsTotal.WithLabelValues(name, "conflict").Inc()
		logger.Warn("notification conflicts with recorded state, manual review required", "reference", notification.Reference(), "error", err)
		writeJSON(w, http.StatusOK, response{Status: gateway.StatusFailed, Message: "transaction state conflict", Severity: string(pkgerrors.SeverityWarning)})
		return
	}
	if err != nil {
		observability.NotificationsTotal.WithLabelValues(name, "error").Inc()
		h.writeError(w, r, err)
		return
	}

	observability.NotificationsTotal.WithLabelValues(name, result.Status).Inc()
	logger.Info("notification processed", "reference", notification.Reference(), "status", result.Status, "message", result.Message)
	writeJSON(w, http.StatusOK, result)
}

// Resend re-dispatches the merchant webhook regardless of whether the
// automatic send already happened.
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	trxID := mux.Vars(r)["trx_id"]
	ctx := r.Context()

	var req struct {
		Message string `json:"message"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxNotificationBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, r, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err))
			return
		}
	}

	trx, err := h.trxs.Get(ctx, trxID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sent, err := h.resender.Resend(ctx, trx, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := resendResponse{
		Status:  gateway.StatusSuccess,
		Message: "Webhook resent",
		Data:    resendData{TrxID: trx.TrxID, TrxType: trx.TrxType},
	}
	if !sent {
		resp.Status = gateway.StatusFailed
		resp.Message = "Webhook not sent: merchant webhook is disabled or not configured"
	}
	observability.Logger(ctx).Info("manual webhook resend", "trx_id", trx.TrxID, "sent", sent, "operator", auth.Subject(ctx))
	writeJSON(w, http.StatusOK, resp)
}

// Reconcile triggers a pull reconciliation for one transaction.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx := r.Context()

	reconciler, err := h.registry.Reconciler(vars["gateway"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := reconciler.Reconcile(ctx, vars["trx_id"])
	if errors.Is(err, pkgerrors.ErrStateConflict) {
		observability.Logger(ctx).Warn("reconciliation conflicts with recorded state", "trx_id", vars["trx_id"], "error", err)
		writeJSON(w, http.StatusOK, response{Status: gateway.StatusFailed, Message: "transaction state conflict", Severity: string(pkgerrors.SeverityWarning)})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	observability.Logger(ctx).Info("manual reconciliation", "trx_id", vars["trx_id"], "status", result.Status, "operator", auth.Subject(ctx))
	writeJSON(w, http.StatusOK, result)
}
