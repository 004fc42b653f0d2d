package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/modguard/internal/domain"
)

// GetModerationStats собирает агрегаты для дашборда Console API.
// Считаем по живым таблицам; при росте нагрузки сюда напрашивается
// кэш в Redis на минуту, чтобы не гонять аналитические запросы на каждый рендер.
func (r *Repo) GetModerationStats(ctx context.Context) (*domain.ModerationStats, error) {
	s := &domain.ModerationStats{TopCategories: make(map[string]int64)}

	// 1. Сводка по аудиту за последние 24 часа
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE action_taken <> 'none' AND action_taken <> 'unrecorded')
		FROM audit_log
		WHERE ts > NOW() - INTERVAL '24 hours'`).Scan(&s.TotalChecks, &s.FlaggedChecks)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect audit stats: %w", err)
	}
	if s.TotalChecks > 0 {
		s.FlaggedRatio = float64(s.FlaggedChecks) / float64(s.TotalChecks)
	}

	// 2. Состояние enforcement и очереди ревьюеров
	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bans WHERE until IS NULL OR until > NOW()),
			(SELECT COUNT(*) FROM appeals WHERE status = 'pending')`).Scan(&s.ActiveBans, &s.PendingAppeals)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect enforcement stats: %w", err)
	}

	// 3. Топ категорий за сутки
	rows, err := r.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM audit_log
		WHERE ts > NOW() - INTERVAL '24 hours'
		GROUP BY category ORDER BY COUNT(*) DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect category stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan category stat: %w", err)
		}
		s.TopCategories[cat] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	// 4. Почасовая активность за сутки
	hours, err := r.pool.Query(ctx, `
		SELECT to_char(date_trunc('hour', ts), 'HH24:00'), COUNT(*)
		FROM audit_log
		WHERE ts > NOW() - INTERVAL '24 hours'
		GROUP BY 1 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect hourly stats: %w", err)
	}
	defer hours.Close()
	s.HourlyActivity = make([]domain.ActivityPoint, 0)
	for hours.Next() {
		var p domain.ActivityPoint
		if err := hours.Scan(&p.Hour, &p.Count); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan activity point: %w", err)
		}
		s.HourlyActivity = append(s.HourlyActivity, p)
	}
	if err = hours.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return s, nil
}
