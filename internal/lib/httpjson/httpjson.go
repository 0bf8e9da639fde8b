// Package httpjson тонкая обёртка над net/http для JSON-вызовов внешних API.
// Любой не-2xx статус превращается в *Error с URL, кодом и телом ответа,
// чтобы вызывающая сторона могла залогировать или показать причину отказа.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Error ошибка вызова внешнего API с не-2xx статусом.
type Error struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s -> %d %s", e.URL, e.StatusCode, e.Body)
}

// Client клиент для JSON-запросов. Таймаут по умолчанию 10 секунд.
type Client struct {
	httpClient *http.Client
}

// New создает новый Client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// DoJSON выполняет запрос с опциональным JSON-телом и разбирает JSON-ответ в out.
// Заголовок Content-Type выставляется автоматически при наличии тела.
// Не-2xx статус возвращается как *Error; out при этом не заполняется.
// Пустое тело ответа при out == nil или len == 0 не считается ошибкой.
func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &Error{URL: url, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
