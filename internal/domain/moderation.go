package domain

import "time"

// Severity — ступень эскалации. Определяет длину окна подсчета,
// порог срабатывания и тяжесть последствий.
type Severity string

const (
	SeverityL1 Severity = "L1" // Бытовая грубость, спам
	SeverityL2 Severity = "L2" // Язык вражды, целевая травля
	SeverityL3 Severity = "L3" // Прямые угрозы — бан с первого раза
)

// Action — мера воздействия, которую вычисляет Escalation Policy.
type Action string

const (
	ActionNone     Action = ""
	ActionCooldown Action = "cooldown"
	ActionSuspend  Action = "suspend"
	ActionBan      Action = "ban"
)

// BanStatus — текущий статус принудительной меры в Ban Lifecycle.
type BanStatus string

const (
	BanStatusCooldown  BanStatus = "cooldown"
	BanStatusSuspended BanStatus = "suspended"
	BanStatusBanned    BanStatus = "banned"
)

// StatusFor переводит вычисленную меру в статус записи BanRecord.
func StatusFor(a Action) BanStatus {
	switch a {
	case ActionCooldown:
		return BanStatusCooldown
	case ActionSuspend:
		return BanStatusSuspended
	default:
		return BanStatusBanned
	}
}

// ContentSubmission — входная единица работы движка.
// Identity — непрозрачный стабильный ключ автора (аккаунт, sender ID бота).
type ContentSubmission struct {
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

// InfractionRecord — одна запись в леджере нарушений.
// Неизменяема после записи; удаляется только ретеншн-политикой (вне движка).
type InfractionRecord struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Severity  Severity  `json:"severity"`
	Category  string    `json:"category"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BanRecord — текущее принудительное состояние identity.
// Until == nil означает перманентную меру. Ровно одна активная запись
// на identity — это гарантирует upsert по уникальному ключу.
type BanRecord struct {
	Identity    string     `json:"identity"`
	Status      BanStatus  `json:"status"`
	Until       *time.Time `json:"until,omitempty"`
	Reason      string     `json:"reason"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Expired сообщает, истекла ли временная мера к моменту now.
// Перманентные записи (Until == nil) не истекают никогда.
func (b *BanRecord) Expired(now time.Time) bool {
	return b.Until != nil && !b.Until.After(now)
}

// Verdict — ответ движка на checkContent.
// Action заполняется при пересечении порога независимо от того,
// включен ли enforcement: рубильник влияет только на персистентность
// BanRecord и на блокировку в getStatus.
type Verdict struct {
	Flagged    bool     `json:"flagged"`
	Category   string   `json:"category,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	Action     Action   `json:"action,omitempty"`
	DurationMs int64    `json:"durationMs,omitempty"` // 0 = перманентно (для action=ban)
	EventID    string   `json:"eventId,omitempty"`
}

// IdentityStatus — ответ getUserStatus.
type IdentityStatus struct {
	Allowed bool       `json:"allowed"`
	Status  BanStatus  `json:"status,omitempty"`
	Until   *time.Time `json:"until,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}
