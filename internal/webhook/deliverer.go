package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const maxResponseBody = 4 << 10

// Event describes the outcome of one delivery attempt.
type Event struct {
	Type         models.WebhookEventType
	Job          Job
	Attempt      int
	StatusCode   int
	ResponseBody string
	Err          error
}

type Listener interface {
	OnEvent(ctx context.Context, ev Event)
}

// Deliverer POSTs queued jobs to merchant endpoints, retrying failures with
// exponential backoff until maxAttempts is reached.
type Deliverer struct {
	client         *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	listener       Listener
}

func NewDeliverer(timeout time.Duration, maxAttempts int, initialBackoff time.Duration, listener Listener) *Deliverer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Deliverer{
		client:         &http.Client{Timeout: timeout},
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		listener:       listener,
	}
}

// Handle is the queue consumer entry point. Undecodable jobs and exhausted
// deliveries are acknowledged; the delivery log already holds the outcome.
// A delivery cut short by shutdown is left unacknowledged for redelivery.
func (d *Deliverer) Handle(ctx context.Context, _, value []byte) error {
	var job Job
	if err := json.Unmarshal(value, &job); err != nil {
		slog.Error("dropping undecodable webhook job", "error", err)
		return nil
	}
	if err := d.Deliver(ctx, job); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("webhook job %s interrupted: %w", job.ID, ctx.Err())
		}
		slog.Warn("webhook job finished without delivery", "trx_id", job.TrxID, "job_id", job.ID, "error", err)
	}
	return nil
}

func (d *Deliverer) Deliver(ctx context.Context, job Job) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		status, body, err := d.post(ctx, job)
		ev := Event{Job: job, Attempt: attempt, StatusCode: status, ResponseBody: body, Err: err}
		switch {
		case err == nil:
			ev.Type = models.EventCallSucceeded
			d.listener.OnEvent(ctx, ev)
			return nil
		case attempt >= d.maxAttempts:
			ev.Type = models.EventFinalCallFailed
			d.listener.OnEvent(ctx, ev)
			return backoff.Permanent(err)
		default:
			ev.Type = models.EventCallFailed
			d.listener.OnEvent(ctx, ev)
			return err
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %v", pkgerrors.ErrWebhookDeliveryFailed, job.TrxID, attempt, err)
	}
	return nil
}

func (d *Deliverer) post(ctx context.Context, job Job) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Body))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(SignatureHeader, job.Signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, string(raw), fmt.Errorf("merchant responded %d", resp.StatusCode)
	}
	return resp.StatusCode, string(raw), nil
}
