package sqlite

/*
Встроенный однонодовый бэкенд на SQLite (чистый Go, без cgo).
Реализует те же контракты хранилища, что и repository/postgres:
выбирается через storage.driver = "sqlite" и используется тестами
движка (":memory:").
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

// OpenDB открывает (или создает) базу и накатывает схему.
// Путь ":memory:" дает чистую БД на процесс — режим тестов.
func OpenDB(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Infraction{}, &AuditRecord{}, &Ban{}, &AppealRow{}, &ReviewerRow{}); err != nil {
		return nil, fmt.Errorf("sqlite: migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// --- Infraction Ledger ---

func (s *Store) InsertInfraction(ctx context.Context, rec domain.InfractionRecord) error {
	row := Infraction{
		ID:        rec.ID,
		Identity:  rec.Identity,
		Severity:  string(rec.Severity),
		Category:  rec.Category,
		Reason:    rec.Reason,
		Timestamp: rec.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlite: failed to insert infraction: %w", err)
	}
	return nil
}

func (s *Store) CountInfractionsSince(ctx context.Context, identity string, sev domain.Severity, since time.Time) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Infraction{}).
		Where("identity = ? AND severity = ? AND timestamp > ?", identity, string(sev), since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count infractions: %w", err)
	}
	return int(n), nil
}

// --- Audit Trail ---

func (s *Store) WriteBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]AuditRecord, len(entries))
	for i, e := range entries {
		rows[i] = AuditRecord{
			EventID:            e.EventID,
			TraceID:            e.TraceID,
			Identity:           e.Identity,
			Category:           e.Category,
			Severity:           e.Severity,
			ActionTaken:        e.ActionTaken,
			ContentFingerprint: e.ContentFingerprint,
			RedactedExcerpt:    e.RedactedExcerpt,
			Timestamp:          e.Timestamp,
		}
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("sqlite: failed to write audit batch: %w", err)
	}
	return nil
}

func (s *Store) FetchEntries(ctx context.Context, identity string, limit int) ([]audit.Entry, error) {
	q := s.db.WithContext(ctx).Model(&AuditRecord{}).Order("timestamp DESC").Limit(limit)
	if identity != "" {
		q = q.Where("identity = ?", identity)
	}

	var rows []AuditRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite: failed to query audit log: %w", err)
	}

	results := make([]audit.Entry, len(rows))
	for i, r := range rows {
		results[i] = audit.Entry{
			EventID:            r.EventID,
			TraceID:            r.TraceID,
			Identity:           r.Identity,
			Category:           r.Category,
			Severity:           r.Severity,
			ActionTaken:        r.ActionTaken,
			ContentFingerprint: r.ContentFingerprint,
			RedactedExcerpt:    r.RedactedExcerpt,
			Timestamp:          r.Timestamp,
		}
	}
	return results, nil
}

// --- Ban Lifecycle ---

func (s *Store) GetBan(ctx context.Context, identity string) (*domain.BanRecord, error) {
	var row Ban
	err := s.db.WithContext(ctx).First(&row, "identity = ?", identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: failed to get ban: %w", err)
	}
	return &domain.BanRecord{
		Identity:    row.Identity,
		Status:      domain.BanStatus(row.Status),
		Until:       row.Until,
		Reason:      row.Reason,
		LastUpdated: row.LastUpdated,
	}, nil
}

func (s *Store) UpsertBan(ctx context.Context, rec domain.BanRecord) error {
	row := Ban{
		Identity:    rec.Identity,
		Status:      string(rec.Status),
		Until:       rec.Until,
		Reason:      rec.Reason,
		LastUpdated: rec.LastUpdated,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert ban: %w", err)
	}
	return nil
}

func (s *Store) DeleteBan(ctx context.Context, identity string) error {
	if err := s.db.WithContext(ctx).Delete(&Ban{}, "identity = ?", identity).Error; err != nil {
		return fmt.Errorf("sqlite: failed to delete ban: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&Ban{}, "until IS NOT NULL AND until <= ?", now)
	if res.Error != nil {
		return 0, fmt.Errorf("sqlite: failed to sweep expired bans: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) CountActiveBans(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Ban{}).
		Where("until IS NULL OR until > ?", now).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count active bans: %w", err)
	}
	return n, nil
}

// --- Appeal Workflow ---

func appealFromRow(r AppealRow) *domain.Appeal {
	return &domain.Appeal{
		ID:           r.ID,
		Identity:     r.Identity,
		Message:      r.Message,
		Status:       domain.AppealStatus(r.Status),
		ReviewerID:   r.ReviewerID,
		ReviewerNote: r.ReviewerNote,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *Store) InsertAppeal(ctx context.Context, a domain.Appeal) error {
	row := AppealRow{
		ID:        a.ID,
		Identity:  a.Identity,
		Message:   a.Message,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlite: failed to insert appeal: %w", err)
	}
	return nil
}

func (s *Store) GetAppealByID(ctx context.Context, id string) (*domain.Appeal, error) {
	var row AppealRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: failed to get appeal: %w", err)
	}
	return appealFromRow(row), nil
}

func (s *Store) LatestAppealByIdentity(ctx context.Context, identity string) (*domain.Appeal, error) {
	var row AppealRow
	err := s.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: failed to get latest appeal: %w", err)
	}
	return appealFromRow(row), nil
}

func (s *Store) ResolveAppeal(ctx context.Context, id string, status domain.AppealStatus, reviewerID, note string) (string, error) {
	// Условный UPDATE защищает от Double Decision так же,
	// как WHERE status = 'pending' в postgres-реализации
	res := s.db.WithContext(ctx).Model(&AppealRow{}).
		Where("id = ? AND status = ?", id, string(domain.AppealPending)).
		Updates(map[string]interface{}{
			"status":        string(status),
			"reviewer_id":   reviewerID,
			"reviewer_note": note,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return "", fmt.Errorf("sqlite: failed to resolve appeal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("%w: appeal %s missing or already processed", domain.ErrNotFound, id)
	}

	// identity иммутабелен, так что дочитывание после UPDATE безгоночно
	var row AppealRow
	if err := s.db.WithContext(ctx).Select("identity").First(&row, "id = ?", id).Error; err != nil {
		return "", fmt.Errorf("sqlite: failed to read resolved appeal: %w", err)
	}
	return row.Identity, nil
}

func (s *Store) FindAppeals(ctx context.Context, status domain.AppealStatus, limit int) ([]*domain.Appeal, error) {
	q := s.db.WithContext(ctx).Model(&AppealRow{}).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var rows []AppealRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite: failed to query appeals: %w", err)
	}

	results := make([]*domain.Appeal, len(rows))
	for i, r := range rows {
		results[i] = appealFromRow(r)
	}
	return results, nil
}

func (s *Store) CountAppealsByStatus(ctx context.Context, status domain.AppealStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&AppealRow{}).
		Where("status = ?", string(status)).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count appeals: %w", err)
	}
	return n, nil
}

// --- Reviewers / Dashboard ---

func (s *Store) GetReviewerByUsername(ctx context.Context, username string) (*domain.Reviewer, error) {
	var row ReviewerRow
	err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: failed to get reviewer: %w", err)
	}

	scopes := make(map[string]bool)
	if row.Scopes != "" {
		_ = json.Unmarshal([]byte(row.Scopes), &scopes)
	}

	return &domain.Reviewer{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
		Scopes:       scopes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (s *Store) GetModerationStats(ctx context.Context) (*domain.ModerationStats, error) {
	stats := &domain.ModerationStats{TopCategories: make(map[string]int64)}
	dayAgo := time.Now().Add(-24 * time.Hour)

	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Where("timestamp > ?", dayAgo).Count(&stats.TotalChecks).Error; err != nil {
		return nil, fmt.Errorf("sqlite: failed to collect audit stats: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Where("timestamp > ? AND action_taken NOT IN ?", dayAgo, []string{"none", "unrecorded"}).
		Count(&stats.FlaggedChecks).Error; err != nil {
		return nil, fmt.Errorf("sqlite: failed to collect action stats: %w", err)
	}
	if stats.TotalChecks > 0 {
		stats.FlaggedRatio = float64(stats.FlaggedChecks) / float64(stats.TotalChecks)
	}

	var err error
	if stats.ActiveBans, err = s.CountActiveBans(ctx, time.Now()); err != nil {
		return nil, err
	}
	if stats.PendingAppeals, err = s.CountAppealsByStatus(ctx, domain.AppealPending); err != nil {
		return nil, err
	}

	type catCount struct {
		Category string
		N        int64
	}
	var cats []catCount
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Select("category, COUNT(*) as n").
		Where("timestamp > ?", dayAgo).
		Group("category").Order("n DESC").Limit(10).
		Scan(&cats).Error; err != nil {
		return nil, fmt.Errorf("sqlite: failed to collect category stats: %w", err)
	}
	for _, c := range cats {
		stats.TopCategories[c.Category] = c.N
	}

	type hourCount struct {
		Hour string
		N    int64
	}
	var hoursAgg []hourCount
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Select("strftime('%H:00', timestamp) as hour, COUNT(*) as n").
		Where("timestamp > ?", dayAgo).
		Group("hour").Order("hour").
		Scan(&hoursAgg).Error; err != nil {
		return nil, fmt.Errorf("sqlite: failed to collect hourly stats: %w", err)
	}
	stats.HourlyActivity = make([]domain.ActivityPoint, len(hoursAgg))
	for i, h := range hoursAgg {
		stats.HourlyActivity[i] = domain.ActivityPoint{Hour: h.Hour, Count: h.N}
	}

	return stats, nil
}
