package easylink

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/ledger"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/models"
	service "github.com/writdev-alt/easylink-webhook-sub000/internal/services"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/testutil"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/webhook"
	pkgerrors "github.com/writdev-alt/easylink-webhook-sub000/pkg/errors"
)

const callbackSecret = "cb-secret"

type recordingQueue struct {
	mu   sync.Mutex
	jobs []webhook.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job webhook.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type stubQuerier struct {
	transfer *Transfer
	err      error
	calls    int
}

func (s *stubQuerier) QueryTransfer(_ context.Context, reference string) (*Transfer, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	t := *s.transfer
	t.Reference = reference
	return &t, nil
}

type harness struct {
	trxs    *testutil.TransactionStore
	wallets *testutil.WalletStore
	queue   *recordingQueue
	querier *stubQuerier
	adapter *Adapter
}

func newHarness(trxs ...*models.Transaction) *harness {
	return newHarnessWithWallet(&models.Wallet{UUID: "wallet-1"}, trxs...)
}

func newHarnessWithWallet(wallet *models.Wallet, trxs ...*models.Transaction) *harness {
	h := &harness{
		trxs:    testutil.NewTransactionStore(trxs...),
		wallets: testutil.NewWalletStore(wallet),
		queue:   &recordingQueue{},
		querier: &stubQuerier{},
	}
	merchants := testutil.NewMerchantStore(models.WebhookSettings{MerchantID: 7, Enabled: true, URL: "https://merchant.example/hook", Secret: "s3cret"})
	dispatcher := webhook.NewDispatcher(h.trxs, merchants, h.queue)
	svc := service.NewTransactionService(h.trxs, ledger.New(h.wallets, false), dispatcher)
	h.adapter = NewAdapter(svc, h.querier, callbackSecret)
	return h
}

func (h *harness) notify(t *testing.T, body string) (gateway.Result, error) {
	t.Helper()
	header := http.Header{}
	header.Set(HeaderSignature, Sign(callbackSecret, []byte(body)))
	req := &gateway.Request{Method: http.MethodPost, Path: "/easylink", Header: header, Body: []byte(body)}

	require.NoError(t, h.adapter.Verify(req))
	n, err := h.adapter.Parse(req)
	require.NoError(t, err)
	return h.adapter.Process(context.Background(), n)
}

func withdrawTrx(id string, status models.TrxStatus) *models.Transaction {
	merchantID := int64(7)
	trx := &models.Transaction{
		TrxID:           id,
		TrxType:         models.TrxWithdraw,
		ProcessingType:  models.ProcessingEasylink,
		Status:          status,
		MerchantID:      &merchantID,
		WalletReference: "wallet-1",
		Amount:          decimal.NewFromInt(5000),
		PayableAmount:   decimal.NewFromInt(5000),
		Currency:        "IDR",
		TrxData:         models.TrxData{},
		CreatedAt:       time.Now(),
	}
	_ = trx.TrxData.Set("withdrawal_account", map[string]string{"bank_code": "014", "account_number": "123"})
	return trx
}

func TestAdapter_FailedNotificationRefunds(t *testing.T) {
	h := newHarness(withdrawTrx("TRX-2", models.StatusAwaitingFIProcess))
	body := `{"reference":"TRX-2","disbursement_id":"D-2","state":9,"reason":"Invalid account"}`

	res, err := h.notify(t, body)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusSuccess, res.Status)

	trx := h.trxs.Get("TRX-2")
	assert.Equal(t, models.StatusFailed, trx.Status)
	assert.Equal(t, "Invalid account", trx.Remarks)
	assert.Contains(t, trx.TrxData, "withdrawal_account")
	assert.Contains(t, trx.TrxData, "easylink_settlement")
	assert.Equal(t, int64(5000), h.wallets.Get("wallet-1").Balance)
	assert.Equal(t, 1, h.queue.Len())

	t.Run("DuplicateRefundsOnce", func(t *testing.T) {
		res, err := h.notify(t, body)
		require.NoError(t, err)
		assert.Equal(t, "transaction already failed", res.Message)
		assert.Equal(t, int64(5000), h.wallets.Get("wallet-1").Balance)
		assert.Equal(t, 1, h.queue.Len())
	})

	t.Run("LateCompletionConflicts", func(t *testing.T) {
		_, err := h.notify(t, `{"reference":"TRX-2","disbursement_id":"D-2","state":7}`)
		assert.ErrorIs(t, err, pkgerrors.ErrStateConflict)
		assert.Equal(t, models.StatusFailed, h.trxs.Get("TRX-2").Status)
	})
}

func TestAdapter_RefundSuccessIsFailure(t *testing.T) {
	h := newHarness(withdrawTrx("TRX-3", models.StatusAwaitingFIProcess))

	_, err := h.notify(t, `{"reference":"TRX-3","disbursement_id":"D-3","state":10}`)
	require.NoError(t, err)
	trx := h.trxs.Get("TRX-3")
	assert.Equal(t, models.StatusFailed, trx.Status)
	assert.Equal(t, "Easylink refund_success", trx.Remarks)
	assert.Equal(t, int64(5000), h.wallets.Get("wallet-1").Balance)
}

func TestAdapter_CompletionSettles(t *testing.T) {
	for _, state := range []State{StateComplete, StateRemindRecipient} {
		t.Run(state.String(), func(t *testing.T) {
			wallet := &models.Wallet{UUID: "wallet-1", Balance: 8000, HoldBalance: 5000}
			trx := withdrawTrx("TRX-4", models.StatusAwaitingFIProcess)
			require.NoError(t, trx.TrxData.Set(models.WithdrawReservationKey, 5000))
			h := newHarnessWithWallet(wallet, trx)

			body := `{"reference":"TRX-4","disbursement_id":"D-4","state":` + strconv.Itoa(int(state)) + `}`
			_, err := h.notify(t, body)
			require.NoError(t, err)

			trx = h.trxs.Get("TRX-4")
			assert.Equal(t, models.StatusCompleted, trx.Status)
			assert.Equal(t, "D-4", trx.ReferenceNumber)
			w := h.wallets.Get("wallet-1")
			assert.Equal(t, int64(3000), w.Balance)
			assert.Equal(t, int64(0), w.HoldBalance)

			res, err := h.notify(t, body)
			require.NoError(t, err)
			assert.Equal(t, "transaction already completed", res.Message)
			assert.Equal(t, int64(3000), h.wallets.Get("wallet-1").Balance)
			assert.Equal(t, 1, h.queue.Len())
		})
	}
}

func TestAdapter_CompletionOfDebitedWithdrawal(t *testing.T) {
	wallet := &models.Wallet{UUID: "wallet-1", Balance: 8000, HoldBalance: 3000}
	h := newHarnessWithWallet(wallet, withdrawTrx("TRX-9", models.StatusAwaitingFIProcess))

	_, err := h.notify(t, `{"reference":"TRX-9","disbursement_id":"D-9","state":7}`)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, h.trxs.Get("TRX-9").Status)
	w := h.wallets.Get("wallet-1")
	assert.Equal(t, int64(8000), w.Balance)
	assert.Equal(t, int64(3000), w.HoldBalance)
}

func TestAdapter_IntermediateStates(t *testing.T) {
	h := newHarness(withdrawTrx("TRX-5", models.StatusPending))

	_, err := h.notify(t, `{"reference":"TRX-5","disbursement_id":"D-5","state":2}`)
	require.NoError(t, err)
	trx := h.trxs.Get("TRX-5")
	assert.Equal(t, models.StatusAwaitingFIProcess, trx.Status)
	assert.Equal(t, "Easylink confirm", trx.Remarks)
	assert.Contains(t, trx.TrxData, "easylink_disbursement")
	assert.Equal(t, 1, h.queue.Len())

	_, err = h.notify(t, `{"reference":"TRX-5","disbursement_id":"D-5","state":5}`)
	require.NoError(t, err)
	assert.Equal(t, "Easylink payout", h.trxs.Get("TRX-5").Remarks)
	assert.Equal(t, 1, h.queue.Len())

	t.Run("IgnoredAfterFinal", func(t *testing.T) {
		_, err := h.notify(t, `{"reference":"TRX-5","disbursement_id":"D-5","state":8}`)
		require.NoError(t, err)
		res, err := h.notify(t, `{"reference":"TRX-5","disbursement_id":"D-5","state":6}`)
		require.NoError(t, err)
		assert.Equal(t, "notification ignored", res.Message)
		assert.Equal(t, models.StatusFailed, h.trxs.Get("TRX-5").Status)
	})
}

func TestAdapter_UnknownState(t *testing.T) {
	h := newHarness(withdrawTrx("TRX-6", models.StatusAwaitingFIProcess))

	_, err := h.notify(t, `{"reference":"TRX-6","state":42}`)
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownPartnerState)

	trx := h.trxs.Get("TRX-6")
	assert.Equal(t, models.StatusAwaitingFIProcess, trx.Status)
	assert.Contains(t, trx.TrxData, "easylink_disbursement")
}

func TestAdapter_Verify(t *testing.T) {
	h := newHarness()
	body := []byte(`{"reference":"TRX-1","state":7}`)

	header := http.Header{}
	header.Set(HeaderSignature, Sign("wrong", body))
	err := h.adapter.Verify(&gateway.Request{Header: header, Body: body})
	assert.ErrorIs(t, err, pkgerrors.ErrSignatureInvalid)

	err = h.adapter.Verify(&gateway.Request{Header: http.Header{}, Body: body})
	assert.ErrorIs(t, err, pkgerrors.ErrSignatureInvalid)

	noSecret := NewAdapter(nil, nil, "")
	header.Set(HeaderSignature, Sign("", body))
	assert.ErrorIs(t, noSecret.Verify(&gateway.Request{Header: header, Body: body}), pkgerrors.ErrSignatureInvalid)
}

func TestAdapter_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownAtPartnerFails", func(t *testing.T) {
		h := newHarness(withdrawTrx("TRX-7", models.StatusAwaitingFIProcess))
		h.querier.err = pkgerrors.ErrPartnerReferenceNotFound

		res, err := h.adapter.Reconcile(ctx, "TRX-7")
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusSuccess, res.Status)
		trx := h.trxs.Get("TRX-7")
		assert.Equal(t, models.StatusFailed, trx.Status)
		assert.Equal(t, RemarkFailedAtInstitution, trx.Remarks)
		assert.Equal(t, int64(5000), h.wallets.Get("wallet-1").Balance)
	})

	t.Run("AppliesPartnerState", func(t *testing.T) {
		h := newHarness(withdrawTrx("TRX-8", models.StatusAwaitingFIProcess))
		h.querier.transfer = &Transfer{DisbursementID: "D-8", State: StateCanceled}

		_, err := h.adapter.Reconcile(ctx, "TRX-8")
		require.NoError(t, err)
		trx := h.trxs.Get("TRX-8")
		assert.Equal(t, models.StatusFailed, trx.Status)
		assert.Contains(t, trx.TrxData, "easylink_settlement")
	})

	t.Run("SkipsTerminal", func(t *testing.T) {
		h := newHarness(withdrawTrx("TRX-9", models.StatusCompleted))

		res, err := h.adapter.Reconcile(ctx, "TRX-9")
		require.NoError(t, err)
		assert.Equal(t, "transaction already completed", res.Message)
		assert.Zero(t, h.querier.calls)
	})

	t.Run("PartnerDown", func(t *testing.T) {
		h := newHarness(withdrawTrx("TRX-10", models.StatusAwaitingFIProcess))
		h.querier.err = pkgerrors.ErrPartnerUnavailable

		_, err := h.adapter.Reconcile(ctx, "TRX-10")
		assert.ErrorIs(t, err, pkgerrors.ErrPartnerUnavailable)
		assert.Equal(t, models.StatusAwaitingFIProcess, h.trxs.Get("TRX-10").Status)
	})
}

func TestSweeper_Run(t *testing.T) {
	now := time.Now()
	old := withdrawTrx("OLD", models.StatusAwaitingFIProcess)
	old.CreatedAt = now.Add(-2 * time.Hour)
	recent := withdrawTrx("RECENT", models.StatusAwaitingFIProcess)
	recent.CreatedAt = now.Add(-5 * time.Minute)
	other := withdrawTrx("OTHER", models.StatusAwaitingFIProcess)
	other.ProcessingType = models.ProcessingManual
	other.CreatedAt = now.Add(-2 * time.Hour)

	h := newHarness(old, recent, other)
	h.querier.err = pkgerrors.ErrPartnerReferenceNotFound

	s := NewSweeper(h.trxs, h.adapter, 30*time.Minute, 50)
	n, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.StatusFailed, h.trxs.Get("OLD").Status)
	assert.Equal(t, models.StatusAwaitingFIProcess, h.trxs.Get("RECENT").Status)
	assert.Equal(t, models.StatusAwaitingFIProcess, h.trxs.Get("OTHER").Status)
}

func TestState(t *testing.T) {
	assert.Equal(t, "processing_by_partner", StateProcessingByPartner.String())
	assert.False(t, State(0).Known())
	assert.False(t, State(13).Known())
	assert.True(t, StateHold.Known())
	assert.False(t, StateSent.IsTerminal())
}
