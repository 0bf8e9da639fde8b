// Package models содержит доменные структуры сервиса синхронизации ростера:
// запись биллинга, wire-форматы для чат-платформы и webhook-событий,
// а также сводку результата синхронизации.
package models

import (
	"encoding/json"
	"errors"
)

// RoleUser роль, с которой каждый пользователь отправляется на чат-платформу.
const RoleUser = "user"

// ErrMissingEmail возвращается webhook-сервисом, когда после нормализации
// в событии не осталось пригодного email. Обработчик превращает её в 400.
var ErrMissingEmail = errors.New("missing email")

// BillingRecord представляет одного известного клиента в хранилище биллинга.
// Email — натуральный ключ, всегда в нижнем регистре без пробелов.
// Поля-указатели nullable в хранилище.
type BillingRecord struct {
	Email               string  `json:"email"`
	Tier                string  `json:"tier,omitempty"`
	LemonCustomerID     *string `json:"lemon_customer_id,omitempty"`
	LemonSubscriptionID *string `json:"lemon_subscription_id,omitempty"`
	Status              *string `json:"status,omitempty"`
	AuthUID             *string `json:"auth_uid,omitempty"`
}

// SyncUser wire-запись, отправляемая на sync-эндпоинт чат-платформы.
// Name — локальная часть email (до первой @), Role всегда RoleUser.
type SyncUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Group string `json:"group"`
}

// SyncRequest тело batch-запроса к sync-эндпоинту.
type SyncRequest struct {
	Users []SyncUser `json:"users"`
}

// SyncResult разобранный ответ sync-эндпоинта. Все счётчики опциональны:
// nil означает, что платформа поле не вернула. Raw заполняется только когда
// тело ответа не является валидным JSON, Body всегда хранит сырой текст ответа.
type SyncResult struct {
	Received *int            `json:"received"`
	Created  *int            `json:"created"`
	Updated  *int            `json:"updated"`
	Failed   *int            `json:"failed"`
	Results  json.RawMessage `json:"results,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Body     string          `json:"-"`
}

// SyncSummary итог одного запуска синхронизации.
type SyncSummary struct {
	RunID    string          `json:"run_id,omitempty"`
	Fetched  int             `json:"fetched"`
	Posted   int             `json:"posted"`
	Received int             `json:"received"`
	Created  int             `json:"created"`
	Updated  int             `json:"updated"`
	Failed   int             `json:"failed"`
	Results  json.RawMessage `json:"results,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// WebhookEvent входящее событие платёжного провайдера о жизненном цикле подписки.
// json.Number позволяет принимать variant_id и customer_id как числом, так и строкой.
type WebhookEvent struct {
	Meta struct {
		EventName string `json:"event_name"`
	} `json:"meta"`
	Data struct {
		ID         string            `json:"id"`
		Attributes WebhookAttributes `json:"attributes"`
	} `json:"data"`
}

// WebhookAttributes вложенные атрибуты webhook-события.
type WebhookAttributes struct {
	UserEmail  string      `json:"user_email"`
	UserName   string      `json:"user_name"`
	VariantID  json.Number `json:"variant_id"`
	CustomerID json.Number `json:"customer_id"`
	Status     string      `json:"status"`
}

// WebhookOutcome результат обработки webhook-события для HTTP-слоя.
type WebhookOutcome struct {
	Ignored      bool
	Email        string
	Tier         string
	Group        string
	ChatResponse string
}
