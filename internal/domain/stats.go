package domain

// ModerationStats — агрегаты для дашборда Console API.
type ModerationStats struct {
	TotalChecks    int64            `json:"total_checks"`    // Событий аудита всего
	FlaggedChecks  int64            `json:"flagged_checks"`  // Из них с сработавшим правилом
	FlaggedRatio   float64          `json:"flagged_ratio"`   // Доля сработок
	ActiveBans     int64            `json:"active_bans"`     // Живых записей Ban Lifecycle
	PendingAppeals int64            `json:"pending_appeals"` // Очередь ревьюеров
	TopCategories  map[string]int64 `json:"top_categories"`
	HourlyActivity []ActivityPoint  `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}
