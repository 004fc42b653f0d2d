package engine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/modguard/internal/appeal"
	"github.com/xela07ax/modguard/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server — публичный HTTP-фасад движка (Hot Path + прием апелляций).
// Админские операции (решения по апелляциям, аудит, рубильник) живут
// в Console API, здесь их нет.
type Server struct {
	router  *chi.Mux
	core    *Core
	appeals *appeal.Service
	logger  *zap.Logger
}

func NewServer(core *Core, appeals *appeal.Service, limiter *rate.Limiter, logger *zap.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		core:    core,
		appeals: appeals,
		logger:  logger.Named("engine-api"),
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Горячий путь под глобальным лимитером
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))
		r.Post("/v1/check", s.handleCheck)
	})

	r.Get("/v1/status/{identity}", s.handleStatus)
	r.Post("/v1/appeals", s.handleCreateAppeal)

	return s
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req domain.ContentSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	verdict, err := s.core.CheckContent(r.Context(), req.Identity, req.Text)
	if err != nil {
		// Единственная наружная ошибка горячего пути — невалидный вход;
		// внутренние отказы уже деградированы в allow-and-log
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}

	status := s.core.Status(r.Context(), identity)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

type createAppealRequest struct {
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

func (s *Server) handleCreateAppeal(w http.ResponseWriter, r *http.Request) {
	var req createAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := s.appeals.Create(r.Context(), req.Identity, req.Message)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case errors.Is(err, domain.ErrValidation):
			w.WriteHeader(http.StatusBadRequest)
		case errors.Is(err, domain.ErrRateLimited):
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			// Внутренности наружу не отдаем
			s.logger.Error("appeal creation failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "temporarily unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "id": a.ID})
}
