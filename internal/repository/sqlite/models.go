package sqlite

import "time"

// Модели gorm. Таблицы совпадают по смыслу с postgres/schema.sql,
// схему накатывает AutoMigrate при открытии.

type Infraction struct {
	ID        string    `gorm:"primaryKey"`
	Identity  string    `gorm:"index:idx_infractions_window,priority:1;not null"`
	Severity  string    `gorm:"index:idx_infractions_window,priority:2;not null"`
	Category  string    `gorm:"not null"`
	Reason    string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index:idx_infractions_window,priority:3;not null"`
}

type AuditRecord struct {
	EventID            string `gorm:"primaryKey"`
	TraceID            string
	Identity           string `gorm:"index;not null"`
	Category           string
	Severity           string
	ActionTaken        string `gorm:"not null"`
	ContentFingerprint string `gorm:"not null"`
	RedactedExcerpt    string `gorm:"type:text"`
	Timestamp          time.Time `gorm:"index;not null"`
}

func (AuditRecord) TableName() string { return "audit_log" }

type Ban struct {
	Identity    string `gorm:"primaryKey"`
	Status      string `gorm:"not null"`
	Until       *time.Time
	Reason      string `gorm:"type:text"`
	LastUpdated time.Time
}

type AppealRow struct {
	ID           string `gorm:"primaryKey"`
	Identity     string `gorm:"index;not null"`
	Message      string `gorm:"type:text"` // уже redacted
	Status       string `gorm:"index;default:pending"`
	ReviewerID   *string
	ReviewerNote *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AppealRow) TableName() string { return "appeals" }

type ReviewerRow struct {
	ID           string `gorm:"primaryKey"`
	Email        string
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:reviewer"`
	Scopes       string `gorm:"type:text"` // JSON map[string]bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ReviewerRow) TableName() string { return "reviewers" }
