package iex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/logging"
	"btscreener/internal/models"
)

const (
	// DefaultBaseURL is the base URL of the public IEX API.
	DefaultBaseURL = "https://api.iextrading.com/1.0"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	// DefaultChartRange is used when Chart is called with an empty range.
	DefaultChartRange = "1m"

	// DefaultDividendRange is used when Dividends is called with an empty range.
	DefaultDividendRange = "1y"
)

// Data types reported in DataError.
const (
	DataTypeChart     = "chart"
	DataTypeEarnings  = "earnings"
	DataTypeDividends = "dividends"
)

// Client is an IEX API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithToken sets the API token sent as the token query parameter.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client. The client is copied, never
// modified.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets a logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new IEX API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	hc := http.Client{}
	if c.httpClient != nil {
		hc = *c.httpClient
	}
	hc.Timeout = c.timeout
	c.httpClient = &hc

	return c
}

// ValidateRange returns a ValidationError unless rng is one of ValidRanges.
func ValidateRange(rng string) error {
	if slices.Contains(ValidRanges, rng) {
		return nil
	}
	return apperrors.NewValidationError("range", rng,
		fmt.Sprintf("must be one of %s", strings.Join(ValidRanges, ", ")))
}

// get performs a GET request and returns the raw body of a 2xx response.
func (c *Client) get(ctx context.Context, dataType, symbol, path string) ([]byte, error) {
	params := url.Values{}
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewDataError(dataType, symbol, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), err)
		return nil, apperrors.NewDataError(dataType, symbol, "request failed",
			fmt.Errorf("%w: %w", apperrors.ErrConnectionFailed, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), err)
		return nil, apperrors.NewDataError(dataType, symbol, "reading response",
			fmt.Errorf("%w: %w", apperrors.ErrConnectionFailed, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
		logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), apiErr)
		return nil, apperrors.NewDataError(dataType, symbol, "unexpected status", apiErr)
	}

	logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), nil)
	return body, nil
}

func parseError(dataType, symbol string, err error) error {
	return apperrors.NewDataError(dataType, symbol, "failed to decode response",
		fmt.Errorf("%w: %w", apperrors.ErrParse, err))
}

func symbolPath(symbol string) string {
	return "/stock/" + url.PathEscape(strings.ToLower(strings.TrimSpace(symbol)))
}

// Chart retrieves OHLC bars for symbol over rng, oldest first.
func (c *Client) Chart(ctx context.Context, symbol, rng string) ([]models.Candle, error) {
	if rng == "" {
		rng = DefaultChartRange
	}
	if err := ValidateRange(rng); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, DataTypeChart, symbol, symbolPath(symbol)+"/chart/"+rng)
	if err != nil {
		return nil, err
	}
	if isBlank(body) {
		return nil, nil
	}

	var records []chartRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, parseError(DataTypeChart, symbol, err)
	}

	candles := make([]models.Candle, 0, len(records))
	for _, r := range records {
		candle, err := r.toCandle()
		if err != nil {
			return nil, parseError(DataTypeChart, symbol, err)
		}
		candles = append(candles, candle)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// Earnings retrieves the reported quarters for symbol, oldest first.
// A nil slice with a nil error means the symbol has no earnings history.
func (c *Client) Earnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error) {
	body, err := c.get(ctx, DataTypeEarnings, symbol, symbolPath(symbol)+"/earnings")
	if err != nil {
		return nil, err
	}
	if isBlank(body) {
		return nil, nil
	}

	var records []earningsRecord
	switch firstByte(body) {
	case '[':
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, parseError(DataTypeEarnings, symbol, err)
		}
	case '{':
		var envelope earningsResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, parseError(DataTypeEarnings, symbol, err)
		}
		records = envelope.Earnings
	default:
		return nil, parseError(DataTypeEarnings, symbol, fmt.Errorf("unexpected body %q", truncate(body)))
	}

	var out []models.EarningsRecord
	for _, r := range records {
		if strings.TrimSpace(r.EPSReportDate) == "" {
			continue
		}
		rec, err := r.toModel()
		if err != nil {
			return nil, parseError(DataTypeEarnings, symbol, err)
		}
		out = append(out, rec)
	}

	models.SortEarnings(out)
	return out, nil
}

// Dividends retrieves the dividends declared for symbol over rng, oldest first.
// A nil slice with a nil error means the symbol paid no dividends in the range.
func (c *Client) Dividends(ctx context.Context, symbol, rng string) ([]models.DividendRecord, error) {
	if rng == "" {
		rng = DefaultDividendRange
	}
	if err := ValidateRange(rng); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, DataTypeDividends, symbol, symbolPath(symbol)+"/dividends/"+rng)
	if err != nil {
		return nil, err
	}
	if isBlank(body) {
		return nil, nil
	}

	var records []dividendRecord
	if firstByte(body) == '{' {
		// Some deployments answer an unknown range or symbol with {}.
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(body, &probe); err != nil || len(probe) > 0 {
			return nil, parseError(DataTypeDividends, symbol, fmt.Errorf("unexpected body %q", truncate(body)))
		}
		return nil, nil
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, parseError(DataTypeDividends, symbol, err)
	}

	var out []models.DividendRecord
	for _, r := range records {
		if strings.TrimSpace(r.ExDate) == "" {
			continue
		}
		rec, err := r.toModel()
		if err != nil {
			return nil, parseError(DataTypeDividends, symbol, err)
		}
		out = append(out, rec)
	}

	models.SortDividends(out)
	return out, nil
}

func isBlank(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0
}

func firstByte(body []byte) byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func truncate(body []byte) string {
	const limit = 64
	s := string(bytes.TrimSpace(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
