package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/infra/auth"
)

// AppealService Описываем, что нам нужно от сервиса
type AppealService interface {
	Create(ctx context.Context, identity, message string) (*domain.Appeal, error)
	Get(ctx context.Context, id string) (*domain.Appeal, error)
	List(ctx context.Context, status domain.AppealStatus, limit int) ([]*domain.Appeal, error)
	Resolve(ctx context.Context, appealID, decision, reviewerID, note string) error
}

type AppealHandler struct {
	service AppealService
}

func NewAppealHandler(s AppealService) *AppealHandler {
	return &AppealHandler{service: s}
}

func (h *AppealHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "appeal not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}

func (h *AppealHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status") // Достаем из ?status=...
	if status == "" {
		status = string(domain.AppealPending) // Дефолт для удобства очереди ревьюеров
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.service.List(r.Context(), domain.AppealStatus(status), limit)
	if err != nil {
		http.Error(w, "failed to fetch appeals", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

type createAppealRequest struct {
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

// Create регистрирует апелляцию от имени identity (операторский ввод —
// например, жалоба пришла через саппорт, а не через публичный API движка).
func (h *AppealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := h.service.Create(r.Context(), req.Identity, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrRateLimited):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		default:
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

type decideRequest struct {
	Decision string `json:"decision"` // approved | denied
	Note     string `json:"note"`
}

func (h *AppealHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// ReviewerID берем из токена: решение всегда атрибутировано
	reviewerID := auth.UserIDFromContext(r.Context())
	if reviewerID == "" {
		http.Error(w, "reviewer identity missing", http.StatusUnauthorized)
		return
	}

	err := h.service.Resolve(r.Context(), id, req.Decision, reviewerID, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidDecision):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrNotFound):
			// Заявки нет либо решение уже принято (Double Decision)
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
