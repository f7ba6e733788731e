// Package storage предоставляет клиент объектного хранилища подтверждений.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Client инкапсулирует HTTP-взаимодействие с объектным хранилищем.
// Каждая операция выполняется одной попыткой, без ретраев.
type Client struct {
	baseURL    string
	bucket     string
	httpClient *http.Client
}

// NewClient создаёт клиент хранилища для указанного адреса и бакета.
func NewClient(baseURL, bucket string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		httpClient: &http.Client{},
	}
}

// Upload загружает объект под указанным ключом и возвращает постоянную
// публичную ссылку на него.
func (c *Client) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("storage client not configured")
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.base(), c.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return c.PublicURL(key), nil
}

// PublicURL возвращает публичную ссылку на объект по ключу.
func (c *Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.base(), c.bucket, key)
}

func (c *Client) base() string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}
