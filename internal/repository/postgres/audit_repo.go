package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/modguard/internal/audit"
)

// WriteBatch — пакетная вставка записей аудита (вызывает воркер Trail).
// Таблица append-only: никаких UPDATE/DELETE из кода движка.
func (r *Repo) WriteBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_log
	numFields := 9
	placeholderStr := ""
	vals := make([]interface{}, 0, len(entries)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range entries {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9)

		vals = append(vals,
			e.EventID, e.TraceID, e.Identity, e.Category, e.Severity,
			e.ActionTaken, e.ContentFingerprint, e.RedactedExcerpt, e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO audit_log (event_id, trace_id, identity, category, severity, action_taken, content_fingerprint, redacted_excerpt, ts) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

// FetchEntries возвращает журнал по убыванию времени; identity == "" — без фильтра.
func (r *Repo) FetchEntries(ctx context.Context, identity string, limit int) ([]audit.Entry, error) {
	query := `SELECT event_id, trace_id, identity, category, severity, action_taken, content_fingerprint, redacted_excerpt, ts
	          FROM audit_log`

	var args []interface{}
	if identity != "" {
		query += " WHERE identity = $1"
		args = append(args, identity)
	}
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query audit log: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	results := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.EventID, &e.TraceID, &e.Identity, &e.Category, &e.Severity,
			&e.ActionTaken, &e.ContentFingerprint, &e.RedactedExcerpt, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit entry: %w", err)
		}
		results = append(results, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return results, nil
}
