// Package rostersync собирает приложение синхронизации ростера:
// маршруты, HTTP-сервер и фоновый планировщик.
package rostersync

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/prosperspot/roster-sync/internal/http/handlers/cron"
	"github.com/prosperspot/roster-sync/internal/http/handlers/health"
	webhookhandler "github.com/prosperspot/roster-sync/internal/http/handlers/webhook"
	syncservice "github.com/prosperspot/roster-sync/internal/services/sync"
	webhookservice "github.com/prosperspot/roster-sync/internal/services/webhook"
)

// RegisterRoutes регистрирует все маршруты приложения.
//
// Контракт входящей поверхности: любой POST на любой путь — это доставка
// webhook, GET /cron — ручной запуск синхронизации, всё остальное — 404
// "Not found", включая неподдерживаемые методы.
func RegisterRoutes(r chi.Router, logger *slog.Logger, syncService *syncservice.SyncService, webhookService *webhookservice.WebhookService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	webhookHandler := webhookhandler.New(logger, webhookService)

	// POST перехватывается до маршрутизации по пути: провайдер шлёт события
	// на произвольный путь.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodPost {
				webhookHandler.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/cron", cron.New(logger, syncService).ServeHTTP)
	r.Get("/health", health.New(logger).ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)

	notFound := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not found"))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
}
