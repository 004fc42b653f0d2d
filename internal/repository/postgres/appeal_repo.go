package postgres

/*
Файл appeal_repo.go содержит персистентность Appeal Workflow.
Ключевой момент — ResolveAppeal: условный UPDATE по статусу pending
предотвращает Double Decision при конкурентных ревьюерах, а RETURNING
отдает identity автора за один проход (без предварительного SELECT
и связанного с ним Race Condition).
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/modguard/internal/domain"
)

const appealColumns = `id, identity, message, status, reviewer_id, reviewer_note, created_at, updated_at`

func scanAppeal(row pgx.Row) (*domain.Appeal, error) {
	var a domain.Appeal
	var reviewerID, note sql.NullString // Обработка NULL из БД

	err := row.Scan(
		&a.ID, &a.Identity, &a.Message, &a.Status,
		&reviewerID, &note, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reviewerID.Valid {
		val := reviewerID.String
		a.ReviewerID = &val
	}
	if note.Valid {
		val := note.String
		a.ReviewerNote = &val
	}
	return &a, nil
}

func (r *Repo) InsertAppeal(ctx context.Context, a domain.Appeal) error {
	query := `INSERT INTO appeals (id, identity, message, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, a.ID, a.Identity, a.Message, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert appeal: %w", err)
	}
	return nil
}

func (r *Repo) GetAppealByID(ctx context.Context, id string) (*domain.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = $1`

	a, err := scanAppeal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get appeal: %w", err)
	}
	return a, nil
}

// LatestAppealByIdentity — самая свежая апелляция identity ЛЮБОГО статуса
// (от нее отсчитывается 7-дневный кулдаун). (nil, nil) — апелляций не было.
func (r *Repo) LatestAppealByIdentity(ctx context.Context, identity string) (*domain.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals
	          WHERE identity = $1 ORDER BY created_at DESC LIMIT 1`

	a, err := scanAppeal(r.pool.QueryRow(ctx, query, identity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get latest appeal: %w", err)
	}
	return a, nil
}

// ResolveAppeal атомарно переводит pending-заявку в терминальный статус.
// WHERE status = 'pending' исключает повторное решение; ноль строк означает
// «нет такой заявки или уже решена» — оба случая наружу идут как ErrNotFound.
func (r *Repo) ResolveAppeal(ctx context.Context, id string, status domain.AppealStatus, reviewerID, note string) (string, error) {
	var identity string
	query := `
		UPDATE appeals
		SET status = $1,
		    reviewer_id = $2,
		    reviewer_note = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = 'pending'
		RETURNING identity`

	err := r.pool.QueryRow(ctx, query, status, reviewerID, note, id).Scan(&identity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: appeal %s missing or already processed", domain.ErrNotFound, id)
		}
		return "", fmt.Errorf("postgres: failed to resolve appeal: %w", err)
	}
	return identity, nil
}

// FindAppeals — очередь ревьюеров (Decision Queue); status == "" — все.
func (r *Repo) FindAppeals(ctx context.Context, status domain.AppealStatus, limit int) ([]*domain.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals`

	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query appeals: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.Appeal, 0)
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan appeal: %w", err)
		}
		results = append(results, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return results, nil
}

// CountAppealsByStatus — для дашборда Console API.
func (r *Repo) CountAppealsByStatus(ctx context.Context, status domain.AppealStatus) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appeals WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count appeals: %w", err)
	}
	return n, nil
}
