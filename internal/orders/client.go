package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	myErr "storefront-cart/internal/types/errors"
)

// Client ходит в order-service
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

func NewClient(baseURL string, httpClient *http.Client, logger *zap.SugaredLogger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

// Submit POST /orders, успехом считается только 201
func (c *Client) Submit(ctx context.Context, token string, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		c.Logger.Errorf("order service unreachable: %v", err)
		return fmt.Errorf("%w: %v", myErr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	c.Logger.Warnw("order rejected",
		"status", resp.StatusCode,
		"body", strings.TrimSpace(string(msg)),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: order service returned %d", myErr.ErrUpstream, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s", myErr.ErrOrderRejected, strings.TrimSpace(string(msg)))
}
