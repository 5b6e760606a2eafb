// Package gateway defines the contract every payment partner adapter
// implements and the registry the inbound endpoint routes through.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

// Request is an inbound notification as received over HTTP.
type Request struct {
	Method string
	Path   string
	URL    string
	Action string
	Header http.Header
	Body   []byte
}

// Notification is a parsed partner payload.
type Notification interface {
	Reference() string
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result is the acknowledgement returned to the partner.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Success(message string) Result { return Result{Status: StatusSuccess, Message: message} }

func Failed(message string) Result { return Result{Status: StatusFailed, Message: message} }

// Adapter translates one partner's notifications into transaction service
// calls. Verify must run before Parse; a failed verification returns
// ErrSignatureInvalid and nothing is mutated.
type Adapter interface {
	Name() string
	Verify(req *Request) error
	Parse(req *Request) (Notification, error)
	Process(ctx context.Context, n Notification) (Result, error)
}

// Reconciler is implemented by adapters that can pull a transaction's state
// from the partner when no push notification arrived.
type Reconciler interface {
	Reconcile(ctx context.Context, trxID string) (Result, error)
}

type TransactionService interface {
	Get(ctx context.Context, trxID string) (*models.Transaction, error)
	MergeTrxData(ctx context.Context, trxID string, data models.TrxData) error
	CompleteTransaction(ctx context.Context, trxID string, upd models.StatusUpdate) (*models.Transaction, error)
	FailTransaction(ctx context.Context, trxID string, upd models.StatusUpdate) (*models.Transaction, error)
	MarkAwaiting(ctx context.Context, trxID string, status models.TrxStatus, upd models.StatusUpdate) (*models.Transaction, error)
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[strings.ToLower(a.Name())] = a
	}
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, pkgerrors.ErrUnsupportedGateway
	}
	return a, nil
}

func (r *Registry) Reconciler(name string) (Reconciler, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	rec, ok := a.(Reconciler)
	if !ok {
		return nil, pkgerrors.ErrReconciliationUnsupported
	}
	return rec, nil
}
