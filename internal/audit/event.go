package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MaxExcerptLen — потолок длины отредактированного фрагмента в записи аудита.
const MaxExcerptLen = 200

// Entry — одна append-only запись аудита. Пишется на КАЖДЫЙ сработавший
// сабмит, независимо от того, дошло ли дело до enforcement. Сырой контент
// не хранится никогда: только fingerprint и отредактированный фрагмент.
type Entry struct {
	EventID  string `json:"event_id"` // UUID события
	TraceID  string `json:"trace_id"` // Сквозной ID запроса
	Identity string `json:"identity"` // Чей контент

	Category string `json:"category"`
	Severity string `json:"severity"`

	// ActionTaken — что реально произошло: "none", "cooldown", "suspend",
	// "ban" или "unrecorded" (леджер был недоступен, нарушение не засчитано).
	ActionTaken string `json:"action_taken"`

	// ContentFingerprint — односторонний дайджест ОРИГИНАЛЬНОГО текста.
	// Позволяет проверять равенство контента, не восстанавливая его.
	ContentFingerprint string `json:"content_fingerprint"`
	RedactedExcerpt    string `json:"redacted_excerpt"` // <= MaxExcerptLen символов

	Timestamp time.Time `json:"timestamp"`
}

// Fingerprint — детерминированный SHA-256 от исходного текста.
// Один и тот же вход всегда дает один и тот же дайджест.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Excerpt обрезает отредактированный текст до MaxExcerptLen рун.
// Режем по рунам, а не по байтам, чтобы не ломать многобайтовые символы.
func Excerpt(redacted string) string {
	runes := []rune(redacted)
	if len(runes) <= MaxExcerptLen {
		return redacted
	}
	return string(runes[:MaxExcerptLen])
}
