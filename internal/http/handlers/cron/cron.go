// Package cron реализует HTTP-обработчик ручного запуска синхронизации ростера.
//
// GET /cron выполняет тот же прогон, что и планировщик: при успехе возвращает
// сводку в JSON, при любой ошибке (включая отсутствующие настройки) — 500
// с текстом причины.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/prosperspot/roster-sync/internal/lib/sl"
	"github.com/prosperspot/roster-sync/internal/models"
)

// Service описывает интерфейс операции синхронизации.
type Service interface {
	Run(ctx context.Context) (*models.SyncSummary, error)
}

// Handler управляет ручным запуском синхронизации.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить синхронизацию ростера вручную
// @Description Выполняет полный прогон синхронизации биллинг-ростера с чат-платформой.
// @Tags Sync
// @Produce json
// @Success 200 {object} models.SyncSummary "Сводка синхронизации"
// @Failure 500 {string} string "Текст ошибки"
// @Router /cron [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cron"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	summary, err := h.service.Run(r.Context())
	if err != nil {
		log.Error("manual sync failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.PlainText(w, r, fmt.Sprintf("cron error: %s", err))
		return
	}

	log.Info("manual sync completed",
		slog.Int("fetched", summary.Fetched),
		slog.Int("posted", summary.Posted),
	)
	render.JSON(w, r, summary)
}
