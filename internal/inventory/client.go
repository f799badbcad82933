// Package inventory reads finished computers from the inventory systems and
// queues every component that still lacks an article number.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/service"
)

// ErrNotFoundSerial is returned when the inventory API has no record of a serial.
var ErrNotFoundSerial = errors.New("serial not known to inventory")

// Client queries the inventory search API.
type Client struct {
	http    *http.Client
	baseURL string
	retry   service.RetryOptions
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry sets the retry policy for busy or failing responses.
func WithRetry(opts service.RetryOptions) ClientOption {
	return func(c *Client) {
		c.retry = opts
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: inventory.url", common.ErrMissingConfig)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: inventory.url: %w", common.ErrInvalidConfig, err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   1.5,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// searchResponse mirrors the API payload. A missing components key means the
// inventory database was busy.
type searchResponse struct {
	ArticleNumber *string                     `json:"jtl_article_number"`
	Components    *[]model.InventoryComponent `json:"components"`
	ModelName     string                      `json:"model_name"`
}

// Search fetches the inventory record of one computer.
func (c *Client) Search(ctx context.Context, serial string) (model.ComputerInventory, error) {
	var result model.ComputerInventory
	err := common.WithRetry(ctx, func() error {
		var err error
		result, err = c.search(ctx, serial)
		return err
	}, c.retry)
	return result, err
}

func (c *Client) search(ctx context.Context, serial string) (model.ComputerInventory, error) {
	endpoint := c.baseURL + "/search?" + url.Values{"customer_serial": {serial}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ComputerInventory{}, common.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.ComputerInventory{}, &common.RetryableError{Err: fmt.Errorf("search %s: %w", serial, err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ComputerInventory{}, common.Permanent(fmt.Errorf("%w: %s", ErrNotFoundSerial, serial))
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.ComputerInventory{}, common.ErrRateLimit
	case resp.StatusCode >= 500:
		return model.ComputerInventory{}, &common.RetryableError{
			Err:       fmt.Errorf("search %s: status %d", serial, resp.StatusCode),
			Retryable: true,
		}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.ComputerInventory{}, common.Permanent(fmt.Errorf("search %s: status %d: %s", serial, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.ComputerInventory{}, common.Permanent(fmt.Errorf("decode search %s: %w", serial, err))
	}
	if payload.Components == nil {
		return model.ComputerInventory{}, fmt.Errorf("search %s: %w", serial, common.ErrInventoryBusy)
	}

	return model.ComputerInventory{
		Serial:        serial,
		ModelName:     payload.ModelName,
		ArticleNumber: payload.ArticleNumber,
		Components:    *payload.Components,
	}, nil
}
