// Package ledger implements the access-grant state machine: issuing
// redeemable codes, binding them to users, pausing, extending and
// revoking grants, and tracking per-user generation history.
package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/kuichiro/combogen/internal/duration"
	"github.com/kuichiro/combogen/internal/logger"
	"github.com/kuichiro/combogen/internal/model"
)

// ActiveGrant describes one currently bound grant, for operator listings.
type ActiveGrant struct {
	UserID    int64
	ExpiresAt time.Time
	Paused    bool
}

// Ledger owns all grant and history state. A single mutex covers every
// map so the lazy expiry purge stays atomic against a concurrent redeem
// of the same user. Every mutation is written through the store before
// the method returns.
type Ledger struct {
	mu         sync.Mutex
	operatorID int64
	codes      map[string]time.Time
	grants     map[int64]time.Time
	usedCodes  map[string]struct{}
	paused     map[int64]struct{}
	history    map[int64]model.UsageStats
	store      model.LedgerStore
	logger     *logger.Logger
	now        func() time.Time
}

// New creates a Ledger and loads the persisted snapshot from the store.
func New(ctx context.Context, store model.LedgerStore, log *logger.Logger, operatorID int64) (*Ledger, error) {
	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger snapshot: %w", err)
	}

	return &Ledger{
		operatorID: operatorID,
		codes:      snapshot.Codes,
		grants:     snapshot.Grants,
		usedCodes:  snapshot.UsedCodes,
		paused:     snapshot.Paused,
		history:    snapshot.History,
		store:      store,
		logger:     log,
		now:        time.Now,
	}, nil
}

// Issue generates a fresh code expiring after d. Codes are three 3-digit
// groups ("143-626-716"); the keyspace is small and collisions are not
// checked.
func (l *Ledger) Issue(ctx context.Context, d time.Duration) (string, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	code := fmt.Sprintf("%03d-%03d-%03d", rand.Intn(900)+100, rand.Intn(900)+100, rand.Intn(900)+100)
	expiresAt := l.now().Add(d)
	l.codes[code] = expiresAt

	if err := l.persist(ctx); err != nil {
		delete(l.codes, code)
		return "", time.Time{}, err
	}
	return code, expiresAt, nil
}

// Redeem consumes a code for a user. A known unexpired code binds its
// expiry to the user and is removed; a known expired code is marked used
// and reported invalid rather than silently dropped; a code seen before
// reports AlreadyUsed so it stays distinguishable from a never-issued one.
func (l *Ledger) Redeem(ctx context.Context, code string, userID int64) (model.RedeemResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt, known := l.codes[code]
	if !known {
		if _, used := l.usedCodes[code]; used {
			return model.RedeemResult{Status: model.RedeemAlreadyUsed}, nil
		}
		return model.RedeemResult{Status: model.RedeemInvalid}, nil
	}

	l.usedCodes[code] = struct{}{}
	delete(l.codes, code)

	if !l.now().Before(expiresAt) {
		if err := l.persist(ctx); err != nil {
			return model.RedeemResult{}, err
		}
		return model.RedeemResult{Status: model.RedeemInvalid}, nil
	}

	l.grants[userID] = expiresAt
	if err := l.persist(ctx); err != nil {
		return model.RedeemResult{}, err
	}
	return model.RedeemResult{Status: model.RedeemSuccess, ExpiresAt: expiresAt}, nil
}

// Extend shifts a bound expiry forward by d.
func (l *Ledger) Extend(ctx context.Context, userID int64, d time.Duration) (time.Time, error) {
	return l.shift(ctx, userID, d)
}

// Deduct shifts a bound expiry back by d. The expiry may end up in the
// past; the next validity check catches that lazily.
func (l *Ledger) Deduct(ctx context.Context, userID int64, d time.Duration) (time.Time, error) {
	return l.shift(ctx, userID, -d)
}

func (l *Ledger) shift(ctx context.Context, userID int64, d time.Duration) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt, ok := l.grants[userID]
	if !ok {
		return time.Time{}, model.ErrNotFound
	}

	l.grants[userID] = expiresAt.Add(d)
	if err := l.persist(ctx); err != nil {
		l.grants[userID] = expiresAt
		return time.Time{}, err
	}
	return expiresAt.Add(d), nil
}

// Pause suspends a user's grant without touching its expiry.
func (l *Ledger) Pause(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.paused[userID] = struct{}{}
	return l.persist(ctx)
}

// Resume lifts a pause. Resuming a user who is not paused reports
// ErrNotFound.
func (l *Ledger) Resume(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.paused[userID]; !ok {
		return model.ErrNotFound
	}
	delete(l.paused, userID)
	return l.persist(ctx)
}

// Revoke removes a user's grant and history.
func (l *Ledger) Revoke(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.grants[userID]; !ok {
		return model.ErrNotFound
	}
	delete(l.grants, userID)
	delete(l.history, userID)
	return l.persist(ctx)
}

// Validate checks whether a user may run extractions. The operator
// bypasses every check. An expired grant is purged together with its
// history as a side effect; the purge is idempotent, so racing callers
// cannot double-delete.
func (l *Ledger) Validate(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if userID == l.operatorID {
		return nil
	}
	if _, ok := l.paused[userID]; ok {
		return model.ErrGrantPaused
	}

	expiresAt, ok := l.grants[userID]
	if !ok {
		return model.ErrGrantMissing
	}
	if !l.now().Before(expiresAt) {
		delete(l.grants, userID)
		delete(l.history, userID)
		if err := l.persist(ctx); err != nil {
			l.logger.Error("failed to persist expiry purge", "user_id", userID, "error", err)
		}
		return model.ErrGrantExpired
	}
	return nil
}

// IsValid is the boolean view of Validate.
func (l *Ledger) IsValid(ctx context.Context, userID int64) bool {
	return l.Validate(ctx, userID) == nil
}

// Remaining returns the time left on a user's grant.
func (l *Ledger) Remaining(userID int64) (model.Remaining, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt, ok := l.grants[userID]
	if !ok {
		return model.Remaining{}, model.ErrGrantMissing
	}
	return duration.Breakdown(expiresAt.Sub(l.now())), nil
}

// RecordUsage bumps a user's generation counters. Called only on
// completed, non-superseded extractions.
func (l *Ledger) RecordUsage(ctx context.Context, userID int64, displayName string, lines int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := l.history[userID]
	stats.DisplayName = displayName
	stats.Generations++
	stats.TotalLines += lines
	l.history[userID] = stats

	return l.persist(ctx)
}

// Stats returns a user's generation counters.
func (l *Ledger) Stats(userID int64) (model.UsageStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats, ok := l.history[userID]
	if !ok {
		return model.UsageStats{}, model.ErrNotFound
	}
	return stats, nil
}

// ActiveGrants lists currently bound grants, soonest expiry first.
func (l *Ledger) ActiveGrants() []ActiveGrant {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ActiveGrant, 0, len(l.grants))
	for userID, expiresAt := range l.grants {
		_, paused := l.paused[userID]
		out = append(out, ActiveGrant{UserID: userID, ExpiresAt: expiresAt, Paused: paused})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// persist writes the current state through the store. Caller holds l.mu.
func (l *Ledger) persist(ctx context.Context) error {
	snapshot := model.LedgerSnapshot{
		Codes:     l.codes,
		Grants:    l.grants,
		UsedCodes: l.usedCodes,
		Paused:    l.paused,
		History:   l.history,
	}
	if err := l.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save ledger snapshot: %w", err)
	}
	return nil
}
