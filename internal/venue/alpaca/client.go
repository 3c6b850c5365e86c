package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/venue"
)

const (
	PaperBaseURL = "https://paper-api.alpaca.markets"
	ordersPath   = "/v2/orders"
)

type Config struct {
	BaseURL           string
	KeyID             string
	Secret            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client is a venue.Client backed by Alpaca. Its own rate limiter keeps
// request bursts within the account's API budget; the dispatcher's throttle
// still governs order spacing.
type Client struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.Secret == "" {
		return nil, errors.New("alpaca: api key and secret are required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = PaperBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		keyID:      cfg.KeyID,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

type createOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Submit places a market day order.
func (c *Client) Submit(ctx context.Context, o venue.Order) (venue.Confirmation, error) {
	req := createOrderRequest{
		Symbol:        o.Symbol,
		Qty:           strconv.Itoa(o.Quantity),
		Side:          string(o.Side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: o.ClientOrderID,
	}

	body, status, err := c.do(ctx, http.MethodPost, ordersPath, req)
	if err != nil {
		return venue.Confirmation{}, err
	}
	if status < 200 || status >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return venue.Confirmation{}, fmt.Errorf("order rejected: status=%d code=%d: %s", status, apiErr.Code, apiErr.Message)
		}
		return venue.Confirmation{}, fmt.Errorf("order rejected: status=%d body=%s", status, strings.TrimSpace(string(body)))
	}

	var conf venue.Confirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		return venue.Confirmation{}, fmt.Errorf("unmarshal order response: %w", err)
	}
	return conf, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	log.WithComponent("alpaca").Debug("request complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return respBody, resp.StatusCode, nil
}
