package models

import "time"

type Wallet struct {
	ID                 int64     `json:"id"`
	UUID               string    `json:"uuid"`
	UserID             int64     `json:"user_id"`
	Currency           string    `json:"currency"`
	Balance            int64     `json:"balance"`
	HoldBalance        int64     `json:"hold_balance"`
	SandboxBalance     int64     `json:"sandbox_balance"`
	SandboxHoldBalance int64     `json:"sandbox_hold_balance"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AvailableBalance is what a debit may consume: balance minus the held part.
func (w *Wallet) AvailableBalance(sandbox bool) int64 {
	if sandbox {
		return w.SandboxBalance - w.SandboxHoldBalance
	}
	return w.Balance - w.HoldBalance
}
