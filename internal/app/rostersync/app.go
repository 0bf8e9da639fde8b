package rostersync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/prosperspot/roster-sync/internal/authadmin"
	"github.com/prosperspot/roster-sync/internal/billing"
	"github.com/prosperspot/roster-sync/internal/cache"
	"github.com/prosperspot/roster-sync/internal/chat"
	"github.com/prosperspot/roster-sync/internal/config"
	"github.com/prosperspot/roster-sync/internal/lib/sl"
	syncservice "github.com/prosperspot/roster-sync/internal/services/sync"
	webhookservice "github.com/prosperspot/roster-sync/internal/services/webhook"
	"github.com/prosperspot/roster-sync/internal/tiermap"
)

// App приложение синхронизации ростера.
type App struct {
	server       *http.Server
	logger       *slog.Logger
	syncService  *syncservice.SyncService
	syncInterval time.Duration
	cache        *cache.Cache
}

// New собирает приложение из конфига: клиенты внешних API, сервисы,
// маршрутизатор и HTTP-сервер. Отсутствие настроек биллинга или
// чат-платформы не мешает старту — они проверяются при каждом запуске
// операции. Redis подключается только при заданном адресе.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	var summaryCache *cache.Cache
	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		summaryCache = c
	}

	groups := tiermap.New(cfg.Groups.Free, cfg.Groups.Standard, cfg.Groups.Pro)
	billingClient := billing.New(cfg.BillingStore.URL, cfg.BillingStore.ServiceKey)
	authClient := authadmin.New(cfg.BillingStore.URL, cfg.BillingStore.ServiceKey)
	chatClient := chat.New(cfg.ChatSync.Endpoint, cfg.ChatSync.APIKey)

	var cacheForSync syncservice.SummaryCache
	if summaryCache != nil {
		cacheForSync = summaryCache
	}
	syncService := syncservice.NewSyncService(cfg, groups, billingClient, chatClient, cacheForSync, logger)
	webhookService := webhookservice.NewWebhookService(cfg, groups, billingClient, authClient, chatClient, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, syncService, webhookService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:       srv,
		logger:       logger,
		syncService:  syncService,
		syncInterval: cfg.Sync.Interval,
		cache:        summaryCache,
	}, nil
}

// Run запускает HTTP-сервер и, при ненулевом интервале, фоновый планировщик.
// Возвращает после graceful shutdown по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	if a.syncInterval > 0 {
		go a.runScheduler(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.cache != nil {
			_ = a.cache.Db.Close()
		}
		return err
	}
}

// runScheduler запускает синхронизацию сразу и далее по тикеру.
// Ошибка запуска только логируется: ретраев нет, процесс не падает.
func (a *App) runScheduler(ctx context.Context) {
	a.runScheduledSync(ctx)

	ticker := time.NewTicker(a.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runScheduledSync(ctx)
		}
	}
}

func (a *App) runScheduledSync(ctx context.Context) {
	summary, err := a.syncService.Run(ctx)
	if err != nil {
		a.logger.Error("scheduled sync failed", sl.Err(err))
		return
	}
	a.logger.Info("scheduled sync completed",
		slog.Int("fetched", summary.Fetched),
		slog.Int("posted", summary.Posted),
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("failed", summary.Failed),
	)
}
