package model

import (
	"context"
	"time"
)

// RedeemStatus enumerates outcomes of redeeming an access code.
type RedeemStatus int

const (
	// RedeemSuccess means the code was valid and its expiry is now bound
	// to the redeeming user.
	RedeemSuccess RedeemStatus = iota
	// RedeemAlreadyUsed means the code was consumed before. Kept distinct
	// from RedeemInvalid on purpose.
	RedeemAlreadyUsed
	// RedeemInvalid means the code was never issued or expired unredeemed.
	RedeemInvalid
)

// RedeemResult is the structured outcome of a redemption attempt.
type RedeemResult struct {
	Status    RedeemStatus
	ExpiresAt time.Time
}

// Remaining is a days/hours/minutes/seconds breakdown of grant time left.
type Remaining struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// LedgerSnapshot is the full persisted state of the access ledger.
// It is loaded once at process start and saved after every mutation.
type LedgerSnapshot struct {
	// Codes maps unredeemed codes to their absolute expiry.
	Codes map[string]time.Time
	// Grants maps bound user ids to their absolute expiry. A code and a
	// bound grant are mutually exclusive states of the same key.
	Grants map[int64]time.Time
	// UsedCodes holds codes that were consumed or expired unredeemed.
	UsedCodes map[string]struct{}
	// Paused holds user ids whose otherwise-valid grant is suspended.
	Paused map[int64]struct{}
	// History holds per-user generation counters.
	History map[int64]UsageStats
}

// NewLedgerSnapshot returns an empty snapshot with all maps allocated.
func NewLedgerSnapshot() LedgerSnapshot {
	return LedgerSnapshot{
		Codes:     make(map[string]time.Time),
		Grants:    make(map[int64]time.Time),
		UsedCodes: make(map[string]struct{}),
		Paused:    make(map[int64]struct{}),
		History:   make(map[int64]UsageStats),
	}
}

// LedgerStore defines persistence operations for the access ledger.
type LedgerStore interface {
	Load(ctx context.Context) (LedgerSnapshot, error)
	Save(ctx context.Context, snapshot LedgerSnapshot) error
}
