// Package billing реализует клиент REST-хранилища биллинга
// (Supabase-совместимое API над таблицей billing_users).
//
// Хранилище внешнее: сервис не владеет базой и не выполняет миграций,
// все операции — аутентифицированные HTTP-вызовы с сервисным ключом.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/prosperspot/roster-sync/internal/lib/httpjson"
	"github.com/prosperspot/roster-sync/internal/models"
)

// Client клиент таблицы billing_users.
type Client struct {
	baseURL    string
	serviceKey string
	http       *httpjson.Client
}

// New создает новый Client для хранилища биллинга.
func New(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       httpjson.New(),
	}
}

func (c *Client) header(prefer string) http.Header {
	h := http.Header{}
	h.Set("apikey", c.serviceKey)
	h.Set("Authorization", "Bearer "+c.serviceKey)
	if prefer != "" {
		h.Set("Prefer", prefer)
	}
	return h
}

// ListUsers возвращает весь ростер биллинга, только email и tier.
// Хранилище может ответить 2xx не списком, а объектом-подсказкой;
// такой ответ означает пустой ростер, а не ошибку.
func (c *Client) ListUsers(ctx context.Context) ([]models.BillingRecord, error) {
	const op = "billing.ListUsers"

	var raw json.RawMessage
	reqURL := c.baseURL + "/rest/v1/billing_users?select=email,tier"
	if err := c.http.DoJSON(ctx, http.MethodGet, reqURL, c.header("count=exact"), nil, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var records []models.BillingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// UpsertUser вставляет или обновляет запись по ключу email и возвращает
// сохранённое представление. Разрешение конфликтов отдано хранилищу
// (merge-duplicates), своих транзакций у сервиса нет.
func (c *Client) UpsertUser(ctx context.Context, record models.BillingRecord) (*models.BillingRecord, error) {
	const op = "billing.UpsertUser"

	var stored []models.BillingRecord
	reqURL := c.baseURL + "/rest/v1/billing_users?on_conflict=email"
	prefer := "resolution=merge-duplicates,return=representation"
	if err := c.http.DoJSON(ctx, http.MethodPost, reqURL, c.header(prefer), []models.BillingRecord{record}, &stored); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%s: empty representation returned", op)
	}
	return &stored[0], nil
}

// SetAuthUID проставляет auth_uid на уже сохранённую запись биллинга.
// Вызывается после создания auth-аккаунта, отдельным PATCH по ключу email.
func (c *Client) SetAuthUID(ctx context.Context, email, authUID string) error {
	const op = "billing.SetAuthUID"

	reqURL := c.baseURL + "/rest/v1/billing_users?email=eq." + url.QueryEscape(email)
	patch := map[string]string{"auth_uid": authUID}
	if err := c.http.DoJSON(ctx, http.MethodPatch, reqURL, c.header(""), patch, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
