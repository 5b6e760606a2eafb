package webhook

import (
	"context"
	"log/slog"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/repository"
)

// LogRecorder persists every delivery event to the delivery log.
type LogRecorder struct {
	logs repository.WebhookLogRepository
}

func NewLogRecorder(logs repository.WebhookLogRepository) *LogRecorder {
	return &LogRecorder{logs: logs}
}

func (r *LogRecorder) OnEvent(ctx context.Context, ev Event) {
	observability.WebhookEvents.WithLabelValues(string(ev.Type)).Inc()

	entry := &models.TransactionWebhookLog{
		TrxID:        ev.Job.TrxID,
		WebhookURL:   ev.Job.URL,
		EventType:    ev.Type,
		Attempt:      ev.Attempt,
		HTTPStatus:   ev.StatusCode,
		ResponseBody: ev.ResponseBody,
		Payload:      ev.Job.Body,
	}
	if ev.Err != nil {
		entry.ErrorMessage = ev.Err.Error()
	}

	attrs := []any{"trx_id", ev.Job.TrxID, "url", ev.Job.URL, "attempt", ev.Attempt, "http_status", ev.StatusCode}
	switch ev.Type {
	case models.EventCallSucceeded:
		slog.Info("webhook delivered", attrs...)
	case models.EventCallFailed:
		slog.Warn("webhook delivery attempt failed", append(attrs, "error", ev.Err)...)
	case models.EventFinalCallFailed:
		slog.Error("webhook delivery exhausted retries", append(attrs, "error", ev.Err, "severity", "critical")...)
	}

	// The request context may already be done when retries are exhausted.
	if err := r.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("failed to persist webhook delivery log", "trx_id", ev.Job.TrxID, "event", ev.Type, "error", err)
	}
}
