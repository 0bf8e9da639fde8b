// Package authadmin клиент admin-эндпоинтов auth-сервиса
// (создание аккаунта, поиск по email, приглашение). Работает под тем же
// сервисным ключом, что и хранилище биллинга.
//
// Все вызовы best-effort по контракту webhook-обработчика: ошибки
// возвращаются явно, но вызывающая сторона их логирует и не прерывает
// основной поток.
package authadmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/prosperspot/roster-sync/internal/lib/httpjson"
	"github.com/prosperspot/roster-sync/internal/tiermap"
)

// User auth-аккаунт, как его возвращает admin API.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client клиент admin-эндпоинтов auth.
type Client struct {
	baseURL    string
	serviceKey string
	http       *httpjson.Client
}

// New создает новый Client.
func New(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       httpjson.New(),
	}
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("apikey", c.serviceKey)
	h.Set("Authorization", "Bearer "+c.serviceKey)
	return h
}

// CreateUser создает auth-аккаунт с подтверждённым email.
// Конфликт (аккаунт уже существует) не считается ошибкой: вместо этого
// выполняется поиск существующего аккаунта и возвращается его идентификатор.
func (c *Client) CreateUser(ctx context.Context, email string) (*User, error) {
	const op = "authadmin.CreateUser"

	body := map[string]any{
		"email":         email,
		"email_confirm": true,
	}
	var user User
	reqURL := c.baseURL + "/auth/v1/admin/users"
	err := c.http.DoJSON(ctx, http.MethodPost, reqURL, c.header(), body, &user)
	if err == nil {
		return &user, nil
	}

	var apiErr *httpjson.Error
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusUnprocessableEntity) {
		return c.FindUserByEmail(ctx, email)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// FindUserByEmail ищет существующий auth-аккаунт по email.
// Возвращает nil без ошибки, если аккаунт не найден.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const op = "authadmin.FindUserByEmail"

	var result struct {
		Users []User `json:"users"`
	}
	reqURL := c.baseURL + "/auth/v1/admin/users?email=" + url.QueryEscape(email)
	if err := c.http.DoJSON(ctx, http.MethodGet, reqURL, c.header(), nil, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, user := range result.Users {
		if tiermap.NormalizeEmail(user.Email) == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// Invite отправляет приглашение на email, чтобы пользователь задал пароль.
// redirectTo опционален — пустая строка означает редирект по умолчанию.
func (c *Client) Invite(ctx context.Context, email, redirectTo string) error {
	const op = "authadmin.Invite"

	body := map[string]any{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}
	reqURL := c.baseURL + "/auth/v1/admin/invite"
	if err := c.http.DoJSON(ctx, http.MethodPost, reqURL, c.header(), body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
