package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/modguard/internal/domain"
)

// InsertInfraction пишет одну неизменяемую запись леджера.
// UPDATE/DELETE для этой таблицы в коде движка не существует намеренно.
func (r *Repo) InsertInfraction(ctx context.Context, rec domain.InfractionRecord) error {
	query := `INSERT INTO infractions (id, identity, severity, category, reason, ts)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, rec.ID, rec.Identity, rec.Severity, rec.Category, rec.Reason, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert infraction: %w", err)
	}
	return nil
}

// CountInfractionsSince — строгое неравенство ts > $3: запись с ts == since
// в окно НЕ попадает. Severity не смешиваются между собой.
func (r *Repo) CountInfractionsSince(ctx context.Context, identity string, sev domain.Severity, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM infractions WHERE identity = $1 AND severity = $2 AND ts > $3`

	var n int
	if err := r.pool.QueryRow(ctx, query, identity, sev, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: failed to count infractions: %w", err)
	}
	return n, nil
}
