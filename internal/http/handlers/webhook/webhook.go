// Package webhook реализует HTTP-обработчик входящих webhook-событий
// платёжного провайдера. Провайдер доставляет события POST-запросом
// на произвольный путь, поэтому обработчик вешается как catch-all на POST.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/prosperspot/roster-sync/internal/lib/httpjson"
	"github.com/prosperspot/roster-sync/internal/lib/sl"
	"github.com/prosperspot/roster-sync/internal/models"
)

// Service описывает интерфейс обработки webhook-события.
type Service interface {
	ProcessEvent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookOutcome, error)
}

// Handler управляет HTTP-приёмом webhook-событий.
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
// @Summary Принять webhook платёжного провайдера
// @Description Обрабатывает событие жизненного цикла подписки и синхронизирует одного пользователя с чат-платформой.
// @Tags Webhook
// @Accept json
// @Produce plain
// @Success 200 {string} string "Webhook OK либо ignored"
// @Failure 400 {string} string "Invalid JSON или Missing email"
// @Failure 500 {string} string "Ошибка синхронизации с чат-платформой"
// @Router / [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var event models.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		// Валидный JSON не того типа (строка, число, массив) — это
		// событие без распознанного имени, а не мусор в теле
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			log.Info("ignored non-object webhook body")
			render.PlainText(w, r, "ignored")
			return
		}
		log.Error("failed to decode webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, "Invalid JSON")
		return
	}

	outcome, err := h.service.ProcessEvent(r.Context(), &event)
	if err != nil {
		if errors.Is(err, models.ErrMissingEmail) {
			log.Error("webhook event without usable email")
			render.Status(r, http.StatusBadRequest)
			render.PlainText(w, r, "Missing email")
			return
		}

		log.Error("failed to process webhook event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		var apiErr *httpjson.Error
		if errors.As(err, &apiErr) {
			render.PlainText(w, r, fmt.Sprintf("Webhook ERR %d\n%s", apiErr.StatusCode, apiErr.Body))
			return
		}
		render.PlainText(w, r, fmt.Sprintf("webhook error: %s", err))
		return
	}

	if outcome.Ignored {
		render.PlainText(w, r, "ignored")
		return
	}

	log.Info("webhook handled",
		slog.String("email", outcome.Email),
		slog.String("group", outcome.Group),
	)
	render.PlainText(w, r, "Webhook OK\n"+outcome.ChatResponse)
}
