// Package services содержит бизнес-логику обработки webhook-событий
// платёжного провайдера: классификация тарифа по variant_id, upsert записи
// биллинга, best-effort заведение auth-аккаунта с приглашением и точечная
// синхронизация одного пользователя с чат-платформой.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator"

	"github.com/prosperspot/roster-sync/internal/authadmin"
	"github.com/prosperspot/roster-sync/internal/config"
	"github.com/prosperspot/roster-sync/internal/lib/sl"
	"github.com/prosperspot/roster-sync/internal/metrics"
	"github.com/prosperspot/roster-sync/internal/models"
	"github.com/prosperspot/roster-sync/internal/tiermap"
)

// Распознаваемые события жизненного цикла подписки.
// Всё остальное игнорируется без побочных эффектов.
const (
	EventSubscriptionCreated = "subscription_created"
	EventSubscriptionUpdated = "subscription_updated"
)

// BillingStore определяет запись в хранилище биллинга.
type BillingStore interface {
	// UpsertUser вставляет или обновляет запись по email и возвращает сохранённое представление.
	UpsertUser(ctx context.Context, record models.BillingRecord) (*models.BillingRecord, error)
	// SetAuthUID проставляет auth_uid на запись биллинга.
	SetAuthUID(ctx context.Context, email, authUID string) error
}

// AuthAdmin определяет best-effort операции над auth-аккаунтами.
type AuthAdmin interface {
	CreateUser(ctx context.Context, email string) (*authadmin.User, error)
	Invite(ctx context.Context, email, redirectTo string) error
}

// ChatSync определяет отправку batch-записей на чат-платформу.
type ChatSync interface {
	SyncUsers(ctx context.Context, users []models.SyncUser) (*models.SyncResult, error)
}

// WebhookService реализует обработку одного webhook-события.
type WebhookService struct {
	cfg      *config.Config
	groups   tiermap.Mapping
	billing  BillingStore
	auth     AuthAdmin
	chat     ChatSync
	log      *slog.Logger
	validate *validator.Validate
}

// NewWebhookService создает новый WebhookService.
func NewWebhookService(cfg *config.Config, groups tiermap.Mapping, billing BillingStore, auth AuthAdmin, chat ChatSync, log *slog.Logger) *WebhookService {
	return &WebhookService{
		cfg:      cfg,
		groups:   groups,
		billing:  billing,
		auth:     auth,
		chat:     chat,
		log:      log,
		validate: validator.New(),
	}
}

// ProcessEvent обрабатывает webhook-событие и возвращает исход для HTTP-слоя.
//
// Нераспознанные события возвращаются с Ignored без побочных эффектов.
// Отсутствие email после нормализации — models.ErrMissingEmail (у обработчика 400).
// Шаги с хранилищем биллинга и auth best-effort: их ошибки логируются и не
// меняют итоговый статус; недоступность настроек хранилища деградирует до
// тарифа, вычисленного по variant_id. Ошибка финального POST на чат-платформу —
// единственная, которая возвращается наружу.
func (s *WebhookService) ProcessEvent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookOutcome, error) {
	const op = "services.webhook.ProcessEvent"
	log := s.log.With(slog.String("op", op))

	switch event.Meta.EventName {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
	default:
		log.Info("ignored webhook event", slog.String("event", event.Meta.EventName))
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		return &models.WebhookOutcome{Ignored: true}, nil
	}

	attrs := event.Data.Attributes
	email := tiermap.NormalizeEmail(attrs.UserEmail)
	if email == "" {
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%s: %w", op, models.ErrMissingEmail)
	}
	name := attrs.UserName
	if name == "" {
		name = tiermap.LocalPart(email)
	}
	if name == "" {
		name = "Unknown"
	}
	log = log.With(slog.String("email", email), slog.String("event", event.Meta.EventName))

	tier := classifyTier(s.cfg.TierVariants, attrs.VariantID.String())
	log.Info("classified webhook event", slog.String("tier", tier), slog.String("variant_id", attrs.VariantID.String()))

	tier = s.upsertAndProvision(ctx, log, event, email, tier)

	group := s.groups.Group(tier)

	if err := s.validate.Struct(s.cfg.ChatSync); err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: missing chat sync settings: %w", op, err)
	}

	user := models.SyncUser{
		Email: email,
		Name:  name,
		Role:  models.RoleUser,
		Group: group,
	}
	result, err := s.chat.SyncUsers(ctx, []models.SyncUser{user})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: post user: %w", op, err)
	}

	metrics.WebhookEvents.WithLabelValues("processed").Inc()
	log.Info("webhook processed", slog.String("group", group))
	return &models.WebhookOutcome{
		Email:        email,
		Tier:         tier,
		Group:        group,
		ChatResponse: result.Body,
	}, nil
}

// upsertAndProvision выполняет шаги с хранилищем биллинга и auth и возвращает
// итоговый тариф: из сохранённой записи, если upsert удался, иначе исходный.
// Ни одна ошибка отсюда не прерывает обработку события.
func (s *WebhookService) upsertAndProvision(ctx context.Context, log *slog.Logger, event *models.WebhookEvent, email, tier string) string {
	if err := s.validate.Struct(s.cfg.BillingStore); err != nil {
		log.Warn("billing store is not configured, skipping upsert", sl.Err(err))
		return tier
	}

	attrs := event.Data.Attributes
	record := models.BillingRecord{
		Email:               email,
		Tier:                tier,
		LemonCustomerID:     stringOrNil(attrs.CustomerID.String()),
		LemonSubscriptionID: stringOrNil(event.Data.ID),
		Status:              stringOrNil(attrs.Status),
	}

	stored, err := s.billing.UpsertUser(ctx, record)
	if err != nil {
		log.Error("failed to upsert billing user", sl.Err(err))
	} else if stored.Tier != "" {
		tier = stored.Tier
	}

	user, err := s.auth.CreateUser(ctx, email)
	if err != nil {
		log.Warn("failed to create auth user", sl.Err(err))
	}

	if err := s.auth.Invite(ctx, email, s.cfg.Sync.InviteRedirectURL); err != nil {
		log.Warn("failed to send invite email", sl.Err(err))
	}

	if user != nil && user.ID != "" {
		if err := s.billing.SetAuthUID(ctx, email, user.ID); err != nil {
			log.Warn("failed to set auth uid on billing user", sl.Err(err))
		}
	}
	return tier
}

// classifyTier сопоставляет variant_id события с настроенными идентификаторами
// тарифов. Пустые настройки не сравниваются, нераспознанный id — это free.
func classifyTier(variants config.TierVariants, variantID string) string {
	if variantID == "" {
		return tiermap.TierFree
	}
	switch variantID {
	case nonEmpty(variants.Pro):
		return tiermap.TierPro
	case nonEmpty(variants.Standard):
		return tiermap.TierStandard
	case nonEmpty(variants.Free):
		return tiermap.TierFree
	default:
		return tiermap.TierFree
	}
}

// nonEmpty подменяет пустую настройку заведомо несовпадающим значением,
// чтобы пустой variant_id в конфиге не матчился в switch.
func nonEmpty(value string) string {
	if value == "" {
		return "\x00unset"
	}
	return value
}

func stringOrNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
