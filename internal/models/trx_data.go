package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// WithdrawReservationKey records the minor units a withdrawal placed on
// hold when it was requested. Withdrawals without it were debited up front.
const WithdrawReservationKey = "withdraw_reservation"

// TrxData is the opaque metadata bag of a transaction. Keys written by
// merchants and gateway adapters must survive every update, so callers
// combine bags with Merge instead of replacing them.
type TrxData map[string]json.RawMessage

// Merge returns the shallow union of d and incoming. Top-level keys present
// in incoming win; every other key of d is kept.
func (d TrxData) Merge(incoming TrxData) TrxData {
	out := make(TrxData, len(d)+len(incoming))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func (d TrxData) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode trx_data key %q: %w", key, err)
	}
	d[key] = raw
	return nil
}

// Decode unmarshals key into v. It reports false when the key is absent.
func (d TrxData) Decode(key string, v any) (bool, error) {
	raw, ok := d[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode trx_data key %q: %w", key, err)
	}
	return true, nil
}

// WithdrawReservation returns the units held for this withdrawal, or zero.
func (d TrxData) WithdrawReservation() (int64, error) {
	var units int64
	if _, err := d.Decode(WithdrawReservationKey, &units); err != nil {
		return 0, err
	}
	if units < 0 {
		return 0, fmt.Errorf("negative %s: %d", WithdrawReservationKey, units)
	}
	return units, nil
}

func (d TrxData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *TrxData) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = TrxData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported trx_data type %T", src)
	}
	out := TrxData{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("scan trx_data: %w", err)
		}
	}
	*d = out
	return nil
}
