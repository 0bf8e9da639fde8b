// Package services содержит бизнес-логику пакетной синхронизации ростера:
// выборка всех записей биллинга, преобразование в wire-записи чат-платформы
// и один batch-POST на sync-эндпоинт. Без ретраев, разбиения и пагинации —
// ростер ожидаемо мал.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/prosperspot/roster-sync/internal/cache"
	"github.com/prosperspot/roster-sync/internal/config"
	"github.com/prosperspot/roster-sync/internal/lib/sl"
	"github.com/prosperspot/roster-sync/internal/metrics"
	"github.com/prosperspot/roster-sync/internal/models"
	"github.com/prosperspot/roster-sync/internal/tiermap"
)

// BillingStore определяет чтение ростера из хранилища биллинга.
type BillingStore interface {
	// ListUsers возвращает весь ростер, только email и tier.
	ListUsers(ctx context.Context) ([]models.BillingRecord, error)
}

// ChatSync определяет отправку batch-записей на чат-платформу.
type ChatSync interface {
	SyncUsers(ctx context.Context, users []models.SyncUser) (*models.SyncResult, error)
}

// SummaryCache описывает запись сводки в кеш.
type SummaryCache interface {
	Set(key string, value any, expiration time.Duration) error
}

// SyncService реализует операцию полной синхронизации ростера.
type SyncService struct {
	cfg      *config.Config
	groups   tiermap.Mapping
	billing  BillingStore
	chat     ChatSync
	cache    SummaryCache
	log      *slog.Logger
	validate *validator.Validate
}

// NewSyncService создает новый SyncService. cache может быть nil —
// тогда сводка последнего запуска не сохраняется.
func NewSyncService(cfg *config.Config, groups tiermap.Mapping, billing BillingStore, chat ChatSync, summaryCache SummaryCache, log *slog.Logger) *SyncService {
	return &SyncService{
		cfg:      cfg,
		groups:   groups,
		billing:  billing,
		chat:     chat,
		cache:    summaryCache,
		log:      log,
		validate: validator.New(),
	}
}

// Run выполняет один запуск синхронизации и возвращает сводку.
//
// Порядок: проверка настроек, выборка ростера, преобразование записей
// (пустые email отбрасываются молча), один batch-POST, сборка сводки из
// ответа платформы. Пустой ростер и ростер без валидных email — нормальные
// исходы с нулевым числом отправленных записей, без обращения к платформе.
func (s *SyncService) Run(ctx context.Context) (*models.SyncSummary, error) {
	const op = "services.sync.Run"

	runID := uuid.NewString()
	log := s.log.With(
		slog.String("op", op),
		slog.String("run_id", runID),
	)

	if err := s.validate.Struct(s.cfg.BillingStore); err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: missing billing store settings: %w", op, err)
	}
	if err := s.validate.Struct(s.cfg.ChatSync); err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: missing chat sync settings: %w", op, err)
	}

	records, err := s.billing.ListUsers(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: fetch billing users: %w", op, err)
	}
	log.Info("fetched billing users", slog.Int("count", len(records)))

	if len(records) == 0 {
		summary := &models.SyncSummary{RunID: runID, Note: "no users"}
		s.storeSummary(log, summary)
		metrics.SyncRuns.WithLabelValues("ok").Inc()
		return summary, nil
	}

	users := make([]models.SyncUser, 0, len(records))
	for _, record := range records {
		email := tiermap.NormalizeEmail(record.Email)
		if email == "" {
			continue
		}
		users = append(users, models.SyncUser{
			Email: email,
			Name:  tiermap.LocalPart(email),
			Role:  models.RoleUser,
			Group: s.groups.Group(record.Tier),
		})
	}

	if len(users) == 0 {
		summary := &models.SyncSummary{RunID: runID, Fetched: len(records), Note: "no valid emails"}
		s.storeSummary(log, summary)
		metrics.SyncRuns.WithLabelValues("ok").Inc()
		return summary, nil
	}

	result, err := s.chat.SyncUsers(ctx, users)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: post users: %w", op, err)
	}

	summary := &models.SyncSummary{
		RunID:    runID,
		Fetched:  len(records),
		Posted:   len(users),
		Received: intOr(result.Received, len(users)),
		Created:  intOr(result.Created, 0),
		Updated:  intOr(result.Updated, 0),
		Failed:   intOr(result.Failed, 0),
		Results:  result.Results,
		Raw:      result.Raw,
	}
	s.storeSummary(log, summary)

	metrics.SyncRuns.WithLabelValues("ok").Inc()
	metrics.UsersPosted.Add(float64(len(users)))
	log.Info("sync completed",
		slog.Int("fetched", summary.Fetched),
		slog.Int("posted", summary.Posted),
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

// storeSummary сохраняет сводку в кеш best-effort: ошибка логируется и не
// влияет на результат запуска.
func (s *SyncService) storeSummary(log *slog.Logger, summary *models.SyncSummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(cache.LastSummaryKey, summary, 24*time.Hour); err != nil {
		log.Warn("failed to cache sync summary", sl.Err(err))
	}
}

func intOr(value *int, fallback int) int {
	if value != nil {
		return *value
	}
	return fallback
}
