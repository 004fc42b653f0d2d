package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/modguard/internal/console/service"
)

// AdminHandler — операционные рычаги: рубильник enforcement,
// ручной sweep, просмотр и снятие банов, дашборд.
type AdminHandler struct {
	service *service.AdminService
}

func NewAdminHandler(s *service.AdminService) *AdminHandler {
	return &AdminHandler{service: s}
}

type enforcementRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnforcement переключает рубильник на всех инстансах движка.
// POST /v1/enforcement {"enabled": true}
func (h *AdminHandler) SetEnforcement(w http.ResponseWriter, r *http.Request) {
	var req enforcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetEnforcement(r.Context(), req.Enabled); err != nil {
		http.Error(w, "failed to toggle enforcement", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"enabled": req.Enabled})
}

// Sweep запускает уборку истекших банов вручную.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.Sweep(r.Context())
	if err != nil {
		http.Error(w, "sweep failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"removed": removed})
}

// GetBan показывает фактическую запись Ban Lifecycle (включая истекшие).
func (h *AdminHandler) GetBan(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	rec, err := h.service.GetBan(r.Context(), identity)
	if err != nil {
		http.Error(w, "failed to fetch ban", http.StatusServiceUnavailable)
		return
	}
	if rec == nil {
		http.Error(w, "no ban record", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// LiftBan снимает меру вручную. Идемпотентно: повторный вызов — тоже 204.
func (h *AdminHandler) LiftBan(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	if err := h.service.LiftBan(r.Context(), identity); err != nil {
		http.Error(w, "failed to lift ban", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetModerationStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
