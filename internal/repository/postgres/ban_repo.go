package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/modguard/internal/domain"
)

// GetBan возвращает (nil, nil) при отсутствии записи — маппинг на 404/allowed
// делает вызывающий слой.
func (r *Repo) GetBan(ctx context.Context, identity string) (*domain.BanRecord, error) {
	query := `SELECT identity, status, until, reason, last_updated FROM bans WHERE identity = $1`

	rec := &domain.BanRecord{}
	err := r.pool.QueryRow(ctx, query, identity).Scan(
		&rec.Identity, &rec.Status, &rec.Until, &rec.Reason, &rec.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get ban: %w", err)
	}
	return rec, nil
}

// UpsertBan — инвариант «не больше одной активной записи на identity»
// обеспечивается ON CONFLICT по первичному ключу, без read-then-write.
func (r *Repo) UpsertBan(ctx context.Context, rec domain.BanRecord) error {
	query := `
		INSERT INTO bans (identity, status, until, reason, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity) DO UPDATE
		SET status = EXCLUDED.status,
		    until = EXCLUDED.until,
		    reason = EXCLUDED.reason,
		    last_updated = EXCLUDED.last_updated`

	_, err := r.pool.Exec(ctx, query, rec.Identity, rec.Status, rec.Until, rec.Reason, rec.LastUpdated)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert ban: %w", err)
	}
	return nil
}

// DeleteBan идемпотентен: ноль затронутых строк — штатный результат
// (lazy expiry и sweep могли успеть раньше).
func (r *Repo) DeleteBan(ctx context.Context, identity string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM bans WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete ban: %w", err)
	}
	return nil
}

// DeleteExpiredBans убирает все временные записи, пережившие свой until.
func (r *Repo) DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM bans WHERE until IS NOT NULL AND until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to sweep expired bans: %w", err)
	}
	return ct.RowsAffected(), nil
}

// CountActiveBans — для дашборда Console API.
func (r *Repo) CountActiveBans(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bans WHERE until IS NULL OR until > $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count active bans: %w", err)
	}
	return n, nil
}
