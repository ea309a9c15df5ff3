package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kuichiro/combogen/internal/model"
)

var _ model.LedgerStore = (*LedgerRepository)(nil)

// LedgerRepository implements model.LedgerStore over sqlite.
type LedgerRepository struct {
	db *Connection
}

func NewLedgerRepository(db *Connection) *LedgerRepository {
	return &LedgerRepository{
		db: db,
	}
}

// Load reads the full ledger snapshot. Expiries are stored as unix
// seconds.
func (r *LedgerRepository) Load(ctx context.Context) (model.LedgerSnapshot, error) {
	snapshot := model.NewLedgerSnapshot()

	if err := r.loadCodes(ctx, &snapshot); err != nil {
		return model.LedgerSnapshot{}, err
	}
	if err := r.loadGrants(ctx, &snapshot); err != nil {
		return model.LedgerSnapshot{}, err
	}
	if err := r.loadUsedCodes(ctx, &snapshot); err != nil {
		return model.LedgerSnapshot{}, err
	}
	if err := r.loadPaused(ctx, &snapshot); err != nil {
		return model.LedgerSnapshot{}, err
	}
	if err := r.loadHistory(ctx, &snapshot); err != nil {
		return model.LedgerSnapshot{}, err
	}

	return snapshot, nil
}

// Save replaces the persisted state with the given snapshot in one
// transaction.
func (r *LedgerRepository) Save(ctx context.Context, snapshot model.LedgerSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"codes", "grants", "used_codes", "paused_users", "usage_history"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for code, expiresAt := range snapshot.Codes {
		if _, err := tx.ExecContext(ctx, "INSERT INTO codes (code, expires_at) VALUES (?, ?)", code, expiresAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert code: %w", err)
		}
	}
	for userID, expiresAt := range snapshot.Grants {
		if _, err := tx.ExecContext(ctx, "INSERT INTO grants (user_id, expires_at) VALUES (?, ?)", userID, expiresAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert grant: %w", err)
		}
	}
	for code := range snapshot.UsedCodes {
		if _, err := tx.ExecContext(ctx, "INSERT INTO used_codes (code) VALUES (?)", code); err != nil {
			return fmt.Errorf("failed to insert used code: %w", err)
		}
	}
	for userID := range snapshot.Paused {
		if _, err := tx.ExecContext(ctx, "INSERT INTO paused_users (user_id) VALUES (?)", userID); err != nil {
			return fmt.Errorf("failed to insert paused user: %w", err)
		}
	}
	for userID, stats := range snapshot.History {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO usage_history (user_id, display_name, generations, total_lines) VALUES (?, ?, ?, ?)",
			userID, stats.DisplayName, stats.Generations, stats.TotalLines,
		); err != nil {
			return fmt.Errorf("failed to insert usage history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (r *LedgerRepository) loadCodes(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	rows, err := r.db.QueryContext(ctx, "SELECT code, expires_at FROM codes")
	if err != nil {
		return fmt.Errorf("failed to query codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code    string
			expires int64
		)
		if err := rows.Scan(&code, &expires); err != nil {
			return err
		}
		snapshot.Codes[code] = time.Unix(expires, 0)
	}
	return rows.Err()
}

func (r *LedgerRepository) loadGrants(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id, expires_at FROM grants")
	if err != nil {
		return fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID  int64
			expires int64
		)
		if err := rows.Scan(&userID, &expires); err != nil {
			return err
		}
		snapshot.Grants[userID] = time.Unix(expires, 0)
	}
	return rows.Err()
}

func (r *LedgerRepository) loadUsedCodes(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	rows, err := r.db.QueryContext(ctx, "SELECT code FROM used_codes")
	if err != nil {
		return fmt.Errorf("failed to query used codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return err
		}
		snapshot.UsedCodes[code] = struct{}{}
	}
	return rows.Err()
}

func (r *LedgerRepository) loadPaused(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM paused_users")
	if err != nil {
		return fmt.Errorf("failed to query paused users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return err
		}
		snapshot.Paused[userID] = struct{}{}
	}
	return rows.Err()
}

func (r *LedgerRepository) loadHistory(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id, display_name, generations, total_lines FROM usage_history")
	if err != nil {
		return fmt.Errorf("failed to query usage history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			stats  model.UsageStats
		)
		if err := rows.Scan(&userID, &stats.DisplayName, &stats.Generations, &stats.TotalLines); err != nil {
			return err
		}
		snapshot.History[userID] = stats
	}
	return rows.Err()
}
