package domain

import "time"

// Статусы State Machine апелляции
type AppealStatus string

const (
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealDenied   AppealStatus = "denied"
)

// AppealCooldown — не чаще одной апелляции на identity за окно,
// независимо от исхода предыдущей.
const AppealCooldown = 7 * 24 * time.Hour

// Appeal — запрос наказанного identity на пересмотр меры.
// Message хранится уже в отредактированном (redacted) виде.
type Appeal struct {
	ID       string       `json:"id"`
	Identity string       `json:"identity"`
	Message  string       `json:"message"`
	Status   AppealStatus `json:"status"`

	ReviewerID   *string `json:"reviewer_id,omitempty"`
	ReviewerNote *string `json:"reviewer_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal сообщает, достигла ли апелляция конечного состояния.
// Из approved/denied переходов больше нет.
func (a *Appeal) Terminal() bool {
	return a.Status == AppealApproved || a.Status == AppealDenied
}
