// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек сервиса синхронизации ростера.
// Параметры billing_store и chat_sync валидируются не при старте, а в момент
// запуска операции: сервис обязан подняться и отвечать 500 на /cron,
// если они отсутствуют.
type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer      `yaml:"http_server"`
	BillingStore    BillingStore `yaml:"billing_store"`
	ChatSync        ChatSync     `yaml:"chat_sync"`
	TierVariants    TierVariants `yaml:"tier_variants"`
	Groups          Groups       `yaml:"groups"`
	Sync            Sync         `yaml:"sync"`
	RedisConnection `yaml:"redis_connection"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// BillingStore настройки REST-хранилища billing_users (Supabase-совместимое API).
// Тот же сервисный ключ используется для admin-эндпоинтов auth.
type BillingStore struct {
	URL        string `yaml:"url" env:"SUPABASE_URL" validate:"required"`
	ServiceKey string `yaml:"service_key" env:"SUPABASE_SERVICE_ROLE_KEY" validate:"required"`
}

// ChatSync настройки batch-эндпоинта синхронизации чат-платформы.
type ChatSync struct {
	Endpoint string `yaml:"endpoint" env:"OWUI_SYNC_ENDPOINT" validate:"required"`
	APIKey   string `yaml:"api_key" env:"OWUI_AUTH_TOKEN" validate:"required"`
}

// TierVariants идентификаторы variant_id платёжного провайдера для каждого тарифа.
// Пустое значение означает, что соответствующий тариф по variant_id не распознаётся
// и событие классифицируется как free.
type TierVariants struct {
	Free     string `yaml:"free" env:"FREE_VARIANT_ID"`
	Standard string `yaml:"standard" env:"STANDARD_VARIANT_ID"`
	Pro      string `yaml:"pro" env:"PRO_VARIANT_ID"`
}

// Groups отображаемые имена групп чат-платформы для каждого тарифа.
type Groups struct {
	Free     string `yaml:"free" env:"FREE_GROUP" env-default:"Student"`
	Standard string `yaml:"standard" env:"STANDARD_GROUP" env-default:"Standard"`
	Pro      string `yaml:"pro" env:"PRO_GROUP" env-default:"Pro"`
}

// Sync параметры планировщика и побочных шагов webhook-обработчика.
// Interval равный нулю отключает фоновую синхронизацию.
type Sync struct {
	Interval          time.Duration `yaml:"interval" env:"SYNC_INTERVAL"`
	InviteRedirectURL string        `yaml:"invite_redirect_url" env:"INVITE_REDIRECT_URL"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш последней сводки синхронизации.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"BillingStore:\n"+
			"  URL: %s\n"+
			"ChatSync:\n"+
			"  Endpoint: %s\n"+
			"Groups:\n"+
			"  Free: %s\n"+
			"  Standard: %s\n"+
			"  Pro: %s\n"+
			"Sync:\n"+
			"  Interval: %s\n"+
			"  InviteRedirectURL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n",
		c.Env,
		c.BillingStore.URL,
		c.ChatSync.Endpoint,
		c.Groups.Free,
		c.Groups.Standard,
		c.Groups.Pro,
		c.Sync.Interval,
		c.Sync.InviteRedirectURL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		c.DB,
	)
}
