package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/modguard/internal/console/service"
)

type AuditHandler struct {
	service *service.AdminService
}

func NewAuditHandler(s *service.AdminService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает список событий аудита с поддержкой фильтрации
// GET /v1/audit?identity=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	// Извлекаем фильтры из Query-параметров
	identity := r.URL.Query().Get("identity")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.service.FetchAuditLogs(r.Context(), identity, limit)
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}
