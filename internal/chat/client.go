// Package chat клиент batch-эндпоинта синхронизации пользователей
// чат-платформы. Платформа принимает {"users": [...]} под общим секретом
// в заголовке X-API-KEY и возвращает счётчики created/updated/failed.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prosperspot/roster-sync/internal/lib/httpjson"
	"github.com/prosperspot/roster-sync/internal/models"
)

// Client клиент sync-эндпоинта чат-платформы.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New создает новый Client.
func New(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SyncUsers отправляет batch пользователей одним POST без разбиения и ретраев.
// Не-2xx статус возвращается как *httpjson.Error со статусом и телом ответа.
// Тело успешного ответа разбирается как JSON; если это не JSON, сырой текст
// сохраняется в SyncResult.Raw вместо того, чтобы быть отброшенным.
func (c *Client) SyncUsers(ctx context.Context, users []models.SyncUser) (*models.SyncResult, error) {
	const op = "chat.SyncUsers"

	payload, err := json.Marshal(models.SyncRequest{Users: users})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	text := string(data)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpjson.Error{URL: c.endpoint, StatusCode: resp.StatusCode, Body: text}
	}

	result := &models.SyncResult{Body: text}
	if err := json.Unmarshal(data, result); err != nil {
		result = &models.SyncResult{Raw: text, Body: text}
	}
	return result, nil
}
