// Package models defines the normalized option chain record types shared
// across the loader, the read API, and the tooling.
package models

import (
	"fmt"
	"time"
)

// ContractType identifies the side of an option contract.
type ContractType string

const (
	// Call is a call option.
	Call ContractType = "call"
	// Put is a put option.
	Put ContractType = "put"
)

// Valid returns true if the ContractType is one of the defined constants.
func (c ContractType) Valid() bool {
	switch c {
	case Call, Put:
		return true
	default:
		return false
	}
}

// ParseContractType normalizes a raw source value ("call", "C", "put", "P")
// into a ContractType.
func ParseContractType(raw string) (ContractType, error) {
	switch raw {
	case "call", "C", "c", "CALL":
		return Call, nil
	case "put", "P", "p", "PUT":
		return Put, nil
	default:
		return "", fmt.Errorf("unrecognized contract type %q", raw)
	}
}

// OptionRecord is one normalized row of the historical chain. The record is
// immutable once loaded; per-query derived fields (moneyness, liquidity
// score) live on ChainRow instead.
type OptionRecord struct {
	// Timestamp is the event time of the quote/trade in the exchange
	// location, normalized from the source's epoch unit.
	Timestamp time.Time `json:"timestamp"`
	// Expiration is the contract expiration date at midnight, exchange time.
	Expiration time.Time    `json:"expiration"`
	Strike     float64      `json:"strike"`
	Type       ContractType `json:"contract_type"`
	// Close is the canonical price for the record (last trade/quote).
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	// Transactions is the trade count for the period. Sources without a
	// transaction column get Volume copied here; callers must not assume
	// independence from Volume.
	Transactions int64 `json:"transactions"`
	// Underlying is the ticker of the underlying asset.
	Underlying string `json:"underlying"`

	// DaysToExpiry is midnight-to-midnight days until expiration. Negative
	// for rows captured at or after expiry.
	DaysToExpiry int `json:"days_to_expiry"`
	// MarketHours is true when Timestamp falls inside the regular session
	// band. Date-level queries only ever return market-hours rows.
	MarketHours bool `json:"-"`
}

// Date returns the calendar date of the record at midnight in the record's
// location.
func (r *OptionRecord) Date() time.Time {
	y, m, d := r.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.Timestamp.Location())
}

// ChainRow is an OptionRecord plus the derived per-query analytics. LoadDay
// returns fresh ChainRow values on every call; mutating them never aliases
// back into the loader's backing store.
type ChainRow struct {
	OptionRecord

	// Moneyness is the signed relative distance of the strike from the
	// estimated underlying price, positive meaning further out-of-the-money
	// for both sides. Nil when no underlying estimate exists for the day.
	Moneyness *float64 `json:"moneyness,omitempty"`
	// LiquidityScore is a 0-100 blend of log-scaled volume and transaction
	// count, weighted 70/30 within the day's slice.
	LiquidityScore float64 `json:"liquidity_score"`
}
