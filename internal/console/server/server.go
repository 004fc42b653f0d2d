package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/modguard/internal/console/handler"
	"github.com/xela07ax/modguard/internal/infra"
	"github.com/xela07ax/modguard/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	// Реализуется через embedding BaseValidator в AdminService
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler   *handler.AuthHandler   // /auth/token
	appealHandler *handler.AppealHandler // /v1/appeals (очередь ревьюеров)
	adminHandler  *handler.AdminHandler  // /v1/enforcement, /v1/bans, /v1/sweep, dashboard
	auditHandler  *handler.AuditHandler  // /v1/audit (Logs)
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	appealH *handler.AppealHandler,
	adminH *handler.AdminHandler,
	auditH *handler.AuditHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		cfg:           cfg,
		authValidator: validator,
		authHandler:   authH,
		appealHandler: appealH,
		adminHandler:  adminH,
		auditHandler:  auditH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Опционально: Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Dashboard & Stats
		r.Get("/api/v1/dashboard/stats", s.adminHandler.GetStats)

		// Очередь апелляций (State Machine: pending -> approved | denied)
		r.Route("/v1/appeals", func(r chi.Router) {
			r.Get("/", s.appealHandler.List)    // Очередь на пересмотр
			r.Post("/", s.appealHandler.Create) // Регистрация от имени identity
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.appealHandler.GetDetails)
				r.Post("/decide", s.appealHandler.Decide) // Approve снимает бан
			})
		})

		// Ban Lifecycle: просмотр и ручное снятие мер
		r.Route("/v1/bans/{identity}", func(r chi.Router) {
			r.Get("/", s.adminHandler.GetBan)
			r.Delete("/", s.adminHandler.LiftBan)
		})

		// Рубильник enforcement (Redis Set + Publish на все инстансы движка)
		r.Post("/v1/enforcement", s.adminHandler.SetEnforcement)

		// Ручная уборка истекших банов
		r.Post("/v1/sweep", s.adminHandler.Sweep)

		// Аудит и Логи (Observability)
		r.Get("/v1/audit", s.auditHandler.GetLogs)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
