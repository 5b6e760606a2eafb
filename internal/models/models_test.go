package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Run("PendingToAwaiting", func(t *testing.T) {
		for _, s := range AwaitingStatuses {
			assert.True(t, CanTransition(StatusPending, s), s)
		}
	})

	t.Run("AwaitingToTerminal", func(t *testing.T) {
		for _, to := range []TrxStatus{StatusCompleted, StatusFailed, StatusCanceled, StatusExpired} {
			assert.True(t, CanTransition(StatusAwaitingFIProcess, to), to)
		}
	})

	t.Run("TerminalOnlyToRefunded", func(t *testing.T) {
		for _, from := range []TrxStatus{StatusCompleted, StatusFailed, StatusCanceled} {
			assert.True(t, CanTransition(from, StatusRefunded))
			assert.False(t, CanTransition(from, StatusPending))
			assert.False(t, CanTransition(from, StatusAwaitingFIProcess))
		}
		assert.False(t, CanTransition(StatusCompleted, StatusFailed))
		assert.False(t, CanTransition(StatusFailed, StatusCompleted))
	})

	t.Run("FinalStates", func(t *testing.T) {
		assert.False(t, CanTransition(StatusRefunded, StatusCompleted))
		assert.False(t, CanTransition(StatusExpired, StatusFailed))
	})
}

func TestSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []TrxStatus{
		StatusPending,
		StatusAwaitingFIProcess,
		StatusAwaitingPGProcess,
		StatusAwaitingUserAction,
		StatusAwaitingAdminApproval,
	}, SourcesFor(StatusCompleted))
	assert.ElementsMatch(t, []TrxStatus{StatusCompleted, StatusFailed, StatusCanceled}, SourcesFor(StatusRefunded))
	assert.Empty(t, SourcesFor(StatusPending))
}

func TestTrxStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusAwaitingUserAction.IsTerminal())
	assert.True(t, StatusAwaitingUserAction.IsAwaiting())
	assert.False(t, StatusPending.IsAwaiting())
}

func TestTrxType_AmountFlow(t *testing.T) {
	assert.Equal(t, FlowPlus, TrxReceivePayment.AmountFlow())
	assert.Equal(t, FlowMinus, TrxWithdraw.AmountFlow())
	assert.Equal(t, FlowDefault, TrxExchange.AmountFlow())
	assert.Equal(t, "-", TrxWithdraw.AmountFlow().Sign())
}

func TestTrxData_Merge(t *testing.T) {
	existing := TrxData{
		"redirect_url": json.RawMessage(`"https://shop.example/done"`),
		"easylink":     json.RawMessage(`{"state":1}`),
	}
	merged := existing.Merge(TrxData{"easylink": json.RawMessage(`{"state":9}`), "extra": json.RawMessage(`true`)})

	assert.Len(t, merged, 3)
	assert.JSONEq(t, `"https://shop.example/done"`, string(merged["redirect_url"]))
	assert.JSONEq(t, `{"state":9}`, string(merged["easylink"]))
	assert.JSONEq(t, `{"state":1}`, string(existing["easylink"]), "merge must not mutate the receiver")
}

func TestTrxData_ScanAndDecode(t *testing.T) {
	var d TrxData
	require.NoError(t, d.Scan([]byte(`{"withdrawal_account":{"bank_code":"014","account_number":"123"}}`)))

	var account struct {
		BankCode      string `json:"bank_code"`
		AccountNumber string `json:"account_number"`
	}
	found, err := d.Decode("withdrawal_account", &account)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "014", account.BankCode)

	found, err = d.Decode("missing", &account)
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, d.Scan(nil))
	assert.NotNil(t, d)
	assert.Empty(t, d)
}

func TestWallet_AvailableBalance(t *testing.T) {
	w := &Wallet{Balance: 100, HoldBalance: 40, SandboxBalance: 10, SandboxHoldBalance: 10}
	assert.Equal(t, int64(60), w.AvailableBalance(false))
	assert.Equal(t, int64(0), w.AvailableBalance(true))
}

func TestFees_Total(t *testing.T) {
	f := Fees{MdrFee: decimal.NewFromFloat(0.7), AdminFee: decimal.NewFromInt(2), TrxFee: decimal.NewFromInt(1)}
	assert.True(t, decimal.NewFromFloat(3.7).Equal(f.Total()))
}
