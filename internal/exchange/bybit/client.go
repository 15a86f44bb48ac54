// Package bybit implements exchange.Connector against the Bybit v5 API
// (USDT linear perpetuals).
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/exchange"
	"adaptive-trend-bot/internal/sizing"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.bybit.com"
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
	DefaultRecvWindow = "5000"

	category = "linear"
)

// Client is a Bybit v5 REST client plus an optional public ticker stream.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration

	stream *TickerStream

	now func() time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint (testnet, httptest).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCredentials sets the API key pair used to sign private calls.
func WithCredentials(key, secret string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
		c.apiSecret = secret
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for read calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTickerStream attaches a ticker stream used by LastPrice.
func WithTickerStream(s *TickerStream) ClientOption {
	return func(c *Client) {
		c.stream = s
	}
}

// NewClient creates a new Bybit client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ exchange.Connector = (*Client)(nil)

// Name identifies the venue.
func (c *Client) Name() string { return "bybit" }

// apiResponse is the v5 envelope around every result.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// get performs a GET with bounded retries and exponential backoff.
// API-level errors (retCode != 0) are not retried.
func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool, result any) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.do(ctx, http.MethodGet, path, query, nil, signed, result)
		if err == nil {
			return nil
		}
		var apiErr *apiError
		if asAPIError(err, &apiErr) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a single POST attempt. Never retried: a transport error
// leaves the order in an unknown state and retrying could double-fill.
func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, true, result)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, signed bool, result any) error {
	var (
		payload []byte
		err     error
	)
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	u := c.baseURL + path
	rawQuery := ""
	if len(query) > 0 {
		rawQuery = query.Encode()
		u += "?" + rawQuery
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.apiKey == "" {
			return fmt.Errorf("signed call %s without credentials", path)
		}
		ts := strconv.FormatInt(c.now().UnixMilli(), 10)
		signPayload := rawQuery
		if method == http.MethodPost {
			signPayload = string(payload)
		}
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", ts)
		req.Header.Set("X-BAPI-RECV-WINDOW", DefaultRecvWindow)
		req.Header.Set("X-BAPI-SIGN", c.sign(ts+c.apiKey+DefaultRecvWindow+signPayload))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if envelope.RetCode != 0 {
		return &apiError{Code: envelope.RetCode, Message: envelope.RetMsg}
	}

	if result != nil && envelope.Result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// sign computes the v5 HMAC-SHA256 request signature.
func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// apiError is a non-zero retCode from the venue.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bybit error %d: %s", e.Code, e.Message)
}

func asAPIError(err error, target **apiError) bool {
	return errors.As(err, target)
}

// intervalFor maps engine timeframes onto Bybit kline intervals.
func intervalFor(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h":
		return "60", nil
	case "4h":
		return "240", nil
	case "1d":
		return "D", nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", timeframe)
}

// FetchBars retrieves up to limit of the most recent bars, oldest first.
func (c *Client) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	interval, err := intervalFor(timeframe)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("category", category)
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		List [][]string `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/kline", query, false, &result); err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, timeframe, err)
	}

	// The venue returns newest first; each row is
	// [startTime, open, high, low, close, volume, turnover].
	bars := make([]domain.Bar, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		if len(row) < 6 {
			return nil, fmt.Errorf("malformed kline row for %s: %d fields", symbol, len(row))
		}
		bar, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline row for %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseKlineRow(row []string) (domain.Bar, error) {
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("start time: %w", err)
	}

	vals := make([]float64, 5)
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s: %w", name, err)
		}
		vals[i] = v
	}

	return domain.Bar{
		Time:   time.UnixMilli(ms).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// PlaceOrder submits a market order. Exit orders set reduceOnly. A fresh
// orderLinkId makes accidental resubmission detectable venue-side.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side domain.Side, qty float64, reduceOnly bool) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("non-positive order qty %v for %s", qty, symbol)
	}

	body := map[string]any{
		"category":    category,
		"symbol":      symbol,
		"side":        orderSide(side),
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"orderLinkId": uuid.NewString(),
	}
	if reduceOnly {
		body["reduceOnly"] = true
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := c.post(ctx, "/v5/order/create", body, &result); err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) {
			return "", fmt.Errorf("%w: %s", exchange.ErrOrderRejected, apiErr.Message)
		}
		return "", fmt.Errorf("place order %s %s: %w", symbol, side, err)
	}
	return result.OrderID, nil
}

func orderSide(side domain.Side) string {
	if side == domain.SideShort {
		return "Sell"
	}
	return "Buy"
}

// LiveQuantity reports the venue-side position size for a symbol.
func (c *Client) LiveQuantity(ctx context.Context, symbol string) (float64, error) {
	query := url.Values{}
	query.Set("category", category)
	query.Set("symbol", symbol)

	var result struct {
		List []struct {
			Size string `json:"size"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/position/list", query, true, &result); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", exchange.ErrUnknownQuantity, symbol, err)
	}
	if len(result.List) == 0 {
		return 0, nil
	}

	size, err := strconv.ParseFloat(result.List[0].Size, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse size for %s: %v", exchange.ErrUnknownQuantity, symbol, err)
	}
	return size, nil
}

// Rules retrieves the lot size constraints for a symbol.
func (c *Client) Rules(ctx context.Context, symbol string) (sizing.VenueRules, error) {
	query := url.Values{}
	query.Set("category", category)
	query.Set("symbol", symbol)

	var result struct {
		List []struct {
			LotSizeFilter struct {
				QtyStep          string `json:"qtyStep"`
				MinOrderQty      string `json:"minOrderQty"`
				MinNotionalValue string `json:"minNotionalValue"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/instruments-info", query, false, &result); err != nil {
		return sizing.VenueRules{}, fmt.Errorf("fetch instrument rules %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return sizing.VenueRules{}, fmt.Errorf("unknown instrument %s", symbol)
	}

	f := result.List[0].LotSizeFilter
	rules := sizing.VenueRules{}
	var err error
	if rules.QtyStep, err = parseOptionalFloat(f.QtyStep); err != nil {
		return sizing.VenueRules{}, fmt.Errorf("parse qtyStep for %s: %w", symbol, err)
	}
	if rules.MinQty, err = parseOptionalFloat(f.MinOrderQty); err != nil {
		return sizing.VenueRules{}, fmt.Errorf("parse minOrderQty for %s: %w", symbol, err)
	}
	if rules.MinNotional, err = parseOptionalFloat(f.MinNotionalValue); err != nil {
		return sizing.VenueRules{}, fmt.Errorf("parse minNotionalValue for %s: %w", symbol, err)
	}
	return rules, nil
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// LastPrice returns the freshest streamed price for a symbol.
func (c *Client) LastPrice(symbol string) (float64, bool) {
	if c.stream == nil {
		return 0, false
	}
	return c.stream.LastPrice(symbol)
}
