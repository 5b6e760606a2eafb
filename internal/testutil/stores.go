// Package testutil holds in-memory implementations of the repository
// interfaces. They mirror the conditional-update semantics of the Postgres
// repositories so service level tests exercise the same guards.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

func cloneTransaction(t *models.Transaction) *models.Transaction {
	c := *t
	if t.TrxData != nil {
		c.TrxData = t.TrxData.Merge(nil)
	}
	return &c
}

type TransactionStore struct {
	mu    sync.Mutex
	items map[string]*models.Transaction
	Now   func() time.Time
}

func NewTransactionStore(trxs ...*models.Transaction) *TransactionStore {
	s := &TransactionStore{items: map[string]*models.Transaction{}, Now: time.Now}
	for _, t := range trxs {
		s.Put(t)
	}
	return s
}

func (s *TransactionStore) Put(t *models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[t.TrxID] = cloneTransaction(t)
}

// Get returns a copy of the stored transaction or nil.
func (s *TransactionStore) Get(trxID string) *models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[trxID]
	if !ok {
		return nil
	}
	return cloneTransaction(t)
}

func (s *TransactionStore) GetByTrxID(_ context.Context, trxID string) (*models.Transaction, error) {
	if t := s.Get(trxID); t != nil {
		return t, nil
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

func (s *TransactionStore) Transition(_ context.Context, trxID string, to models.TrxStatus, from []models.TrxStatus, upd models.StatusUpdate) (*models.Transaction, bool, error) {
	if !to.Valid() {
		return nil, false, pkgerrors.ErrInvalidTransactionStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[trxID]
	if !ok {
		return nil, false, pkgerrors.ErrTransactionNotFound
	}
	allowed := false
	for _, f := range from {
		if t.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return cloneTransaction(t), false, nil
	}
	now := s.Now()
	t.Status = to
	if to == models.StatusCompleted {
		t.CompletedAt = &now
	}
	if upd.ReferenceNumber != "" {
		t.ReferenceNumber = upd.ReferenceNumber
	}
	if upd.Remarks != "" {
		t.Remarks = upd.Remarks
	}
	if upd.Description != "" {
		t.Description = upd.Description
	}
	t.UpdatedAt = now
	return cloneTransaction(t), true, nil
}

func (s *TransactionStore) MergeTrxData(_ context.Context, trxID string, data models.TrxData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[trxID]
	if !ok {
		return pkgerrors.ErrTransactionNotFound
	}
	t.TrxData = t.TrxData.Merge(data)
	t.UpdatedAt = s.Now()
	return nil
}

func (s *TransactionStore) MarkWebhookCalled(_ context.Context, trxID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[trxID]
	if !ok || t.WebhookCall != nil {
		return false, nil
	}
	t.WebhookCall = &at
	return true, nil
}

func (s *TransactionStore) ClearWebhookCall(_ context.Context, trxID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.items[trxID]; ok && t.WebhookCall != nil && t.WebhookCall.Equal(at) {
		t.WebhookCall = nil
	}
	return nil
}

func (s *TransactionStore) ListStale(_ context.Context, statuses []models.TrxStatus, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	return s.filter(limit, func(t *models.Transaction) bool {
		if !t.CreatedAt.Before(createdBefore) {
			return false
		}
		for _, st := range statuses {
			if t.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (s *TransactionStore) ListReleasable(_ context.Context, completedBefore time.Time, limit int) ([]models.Transaction, error) {
	return s.filter(limit, func(t *models.Transaction) bool {
		return t.TrxType == models.TrxReceivePayment &&
			t.Status == models.StatusCompleted &&
			t.ReleasedAt == nil &&
			t.CompletedAt != nil &&
			t.CompletedAt.Before(completedBefore)
	}), nil
}

func (s *TransactionStore) MarkReleased(_ context.Context, trxID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[trxID]
	if !ok || t.ReleasedAt != nil {
		return false, nil
	}
	t.ReleasedAt = &at
	return true, nil
}

func (s *TransactionStore) filter(limit int, keep func(*models.Transaction) bool) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.items {
		if keep(t) {
			out = append(out, *cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type WalletStore struct {
	mu    sync.Mutex
	items map[string]*models.Wallet
}

func NewWalletStore(wallets ...*models.Wallet) *WalletStore {
	s := &WalletStore{items: map[string]*models.Wallet{}}
	for _, w := range wallets {
		c := *w
		s.items[w.UUID] = &c
	}
	return s
}

// Get returns a copy of the wallet or nil.
func (s *WalletStore) Get(uuid string) *models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[uuid]
	if !ok {
		return nil
	}
	c := *w
	return &c
}

func (s *WalletStore) GetByUUID(_ context.Context, uuid string) (*models.Wallet, error) {
	if w := s.Get(uuid); w != nil {
		return w, nil
	}
	return nil, pkgerrors.ErrWalletNotFound
}

func (s *WalletStore) fields(w *models.Wallet, sandbox bool) (*int64, *int64) {
	if sandbox {
		return &w.SandboxBalance, &w.SandboxHoldBalance
	}
	return &w.Balance, &w.HoldBalance
}

func (s *WalletStore) Credit(_ context.Context, uuid string, sandbox bool, amount int64) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[uuid]
	if !ok {
		return nil, pkgerrors.ErrWalletNotFound
	}
	bal, _ := s.fields(w, sandbox)
	*bal += amount
	c := *w
	return &c, nil
}

func (s *WalletStore) Debit(_ context.Context, uuid string, sandbox bool, amount int64) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[uuid]
	if !ok {
		return nil, pkgerrors.ErrWalletNotFound
	}
	bal, hold := s.fields(w, sandbox)
	if *bal-*hold < amount {
		return nil, pkgerrors.ErrInsufficientAvailableBalance
	}
	*bal -= amount
	c := *w
	return &c, nil
}

func (s *WalletStore) Hold(_ context.Context, uuid string, sandbox bool, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[uuid]
	if !ok {
		return false, pkgerrors.ErrWalletNotFound
	}
	_, hold := s.fields(w, sandbox)
	*hold += amount
	return true, nil
}

func (s *WalletStore) Release(_ context.Context, uuid string, sandbox bool, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[uuid]
	if !ok {
		return false, nil
	}
	_, hold := s.fields(w, sandbox)
	if *hold < amount {
		return false, nil
	}
	*hold -= amount
	return true, nil
}

type MerchantStore struct {
	mu    sync.Mutex
	items map[int64]models.WebhookSettings
}

func NewMerchantStore(settings ...models.WebhookSettings) *MerchantStore {
	s := &MerchantStore{items: map[int64]models.WebhookSettings{}}
	for _, m := range settings {
		s.items[m.MerchantID] = m
	}
	return s
}

func (s *MerchantStore) GetWebhookSettings(_ context.Context, merchantID int64) (*models.WebhookSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[merchantID]
	if !ok {
		return nil, pkgerrors.ErrMerchantNotFound
	}
	return &m, nil
}

type WebhookCallStore struct {
	mu    sync.Mutex
	calls []models.WebhookCall
}

func (s *WebhookCallStore) Create(_ context.Context, call *models.WebhookCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call.ID = int64(len(s.calls) + 1)
	call.CreatedAt = time.Now()
	s.calls = append(s.calls, *call)
	return nil
}

func (s *WebhookCallStore) All() []models.WebhookCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WebhookCall(nil), s.calls...)
}

type WebhookLogStore struct {
	mu      sync.Mutex
	entries []models.TransactionWebhookLog
}

func (s *WebhookLogStore) Create(_ context.Context, entry *models.TransactionWebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.entries) + 1)
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *WebhookLogStore) ListByTrxID(_ context.Context, trxID string) ([]models.TransactionWebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TransactionWebhookLog
	for _, e := range s.entries {
		if e.TrxID == trxID {
			out = append(out, e)
		}
	}
	return out, nil
}
