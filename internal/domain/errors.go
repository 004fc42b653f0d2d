package domain

import "errors"

// Таксономия ошибок движка (см. поведение в engine и appeal):
//   - ErrStorageUnavailable при записи нарушения = fail-closed для эскалации,
//     но вердикт классификации все равно возвращается вызывающему;
//   - отказ хранилища при проверке статуса = fail-open (allowed: true) —
//     осознанный выбор доступности, не «чинить» без пересмотра трейдоффа;
//   - ошибки аудита всегда проглатываются (логируются, наружу не выходят).
var (
	ErrValidation          = errors.New("validation failed")
	ErrRateLimited         = errors.New("rate limited")
	ErrNotFound            = errors.New("not found")
	ErrInvalidDecision     = errors.New("invalid decision")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrPolicyMisconfigured = errors.New("escalation policy misconfigured")
)
