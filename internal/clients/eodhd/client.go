// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// Empty, null and unparseable values decode as missing.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = flexFloat64(models.Missing)
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || s == "N/A" {
			*f = flexFloat64(models.Missing)
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

func (f flexFloat64) value() float64 {
	return float64(f)
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client fetches raw bars and fundamentals from EODHD.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig builds a client from the [clients.eodhd] section.
func NewClientFromConfig(cfg common.EODHDConfig, logger *common.Logger) *Client {
	opts := []ClientOption{
		WithLogger(logger),
		WithRateLimit(cfg.RateLimit),
		WithTimeout(cfg.GetTimeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return NewClient(cfg.APIKey, opts...)
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// classify maps transport and API failures onto the error taxonomy.
func classify(op, symbol string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return common.NewNotFoundError(op, symbol, err)
	}
	return common.NewExternalServiceError(op, symbol, err)
}

// ticker maps simtrade symbols onto EODHD exchange codes: Shanghai is "SHG"
// and Shenzhen "SHE".
func ticker(symbol string) string {
	code := models.BaseCode(symbol)
	switch models.InferMarket(symbol) {
	case models.MarketSS:
		return code + ".SHG"
	case models.MarketSZ:
		return code + ".SHE"
	}
	return symbol
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

// intradayBarResponse represents the API response for intraday data
type intradayBarResponse struct {
	Timestamp int64       `json:"timestamp"`
	Datetime  string      `json:"datetime"`
	Open      flexFloat64 `json:"open"`
	High      flexFloat64 `json:"high"`
	Low       flexFloat64 `json:"low"`
	Close     flexFloat64 `json:"close"`
	Volume    flexFloat64 `json:"volume"`
}

var eodPeriods = map[models.Frequency]string{
	models.Freq1d: "d",
	models.Freq1w: "w",
	models.Freq1M: "m",
}

var intradayIntervals = map[models.Frequency]string{
	models.Freq5m:  "5m",
	models.Freq60m: "1h",
}

// FetchBars retrieves raw bars for [start, end] in ascending date order.
func (c *Client) FetchBars(ctx context.Context, symbol string, start, end time.Time, freq models.Frequency) ([]models.Bar, error) {
	if period, ok := eodPeriods[freq]; ok {
		return c.fetchEOD(ctx, symbol, start, end, freq, period)
	}
	if interval, ok := intradayIntervals[freq]; ok {
		return c.fetchIntraday(ctx, symbol, start, end, freq, interval)
	}
	return nil, common.Errorf(common.KindValidation, "fetch_bars", symbol, "frequency %q not supported by EODHD", freq)
}

func (c *Client) fetchEOD(ctx context.Context, symbol string, start, end time.Time, freq models.Frequency, period string) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("period", period)
	params.Set("order", "a")
	params.Set("from", models.DateKey(start))
	params.Set("to", models.DateKey(end))

	var raw []eodBarResponse
	if err := c.get(ctx, "/eod/"+ticker(symbol), params, &raw); err != nil {
		return nil, classify("fetch_bars", symbol, err)
	}

	defaults := models.DefaultBarDefaults()
	defaults.Frequency = freq

	bars := make([]models.Bar, 0, len(raw))
	for _, r := range raw {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			c.logger.Warn().Str("symbol", symbol).Str("date", r.Date).Msg("Skipping EOD bar with invalid date")
			continue
		}
		b := models.NewBar(symbol, date, defaults)
		b.Open, b.High, b.Low, b.Close = r.Open.value(), r.High.value(), r.Low.value(), r.Close.value()
		b.Volume = r.Volume.value()
		b.Price = r.AdjustedClose.value()
		bars = append(bars, b)
	}
	sortBars(bars)
	return bars, nil
}

func (c *Client) fetchIntraday(ctx context.Context, symbol string, start, end time.Time, freq models.Frequency, interval string) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("interval", interval)
	params.Set("from", strconv.FormatInt(models.TruncateDay(start).Unix(), 10))
	params.Set("to", strconv.FormatInt(models.TruncateDay(end).AddDate(0, 0, 1).Unix()-1, 10))

	var raw []intradayBarResponse
	if err := c.get(ctx, "/intraday/"+ticker(symbol), params, &raw); err != nil {
		return nil, classify("fetch_bars", symbol, err)
	}

	defaults := models.DefaultBarDefaults()
	defaults.Frequency = freq

	bars := make([]models.Bar, 0, len(raw))
	for _, r := range raw {
		ts := time.Unix(r.Timestamp, 0).UTC()
		b := models.NewBar(symbol, ts, defaults)
		b.TradeTime = ts.Format("15:04:05")
		b.Open, b.High, b.Low, b.Close = r.Open.value(), r.High.value(), r.Low.value(), r.Close.value()
		b.Volume = r.Volume.value()
		bars = append(bars, b)
	}
	sortBars(bars)
	return bars, nil
}

func sortBars(bars []models.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].TradeDate.Equal(bars[j].TradeDate) {
			return bars[i].TradeDate.Before(bars[j].TradeDate)
		}
		return bars[i].TradeTime < bars[j].TradeTime
	})
}

// fundamentalsResponse holds the parts of /fundamentals used for quarterly records.
type fundamentalsResponse struct {
	OutstandingShares struct {
		Quarterly map[string]struct {
			DateFormatted string      `json:"dateFormatted"`
			Shares        flexFloat64 `json:"shares"`
		} `json:"quarterly"`
	} `json:"outstandingShares"`
	Financials struct {
		BalanceSheet struct {
			Quarterly map[string]struct {
				TotalAssets            flexFloat64 `json:"totalAssets"`
				TotalStockholderEquity flexFloat64 `json:"totalStockholderEquity"`
			} `json:"quarterly"`
		} `json:"Balance_Sheet"`
		IncomeStatement struct {
			Quarterly map[string]struct {
				TotalRevenue flexFloat64 `json:"totalRevenue"`
				NetIncome    flexFloat64 `json:"netIncome"`
			} `json:"quarterly"`
		} `json:"Income_Statement"`
	} `json:"Financials"`
}

// FetchFundamentals retrieves quarterly share counts and statement items.
// Share counts are converted to units of 100 million shares. EODHD has no
// quarterly float history, so FloatShares is left missing.
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, "/fundamentals/"+ticker(symbol), nil, &resp); err != nil {
		return nil, classify("fetch_fundamentals", symbol, err)
	}

	byDate := make(map[string]*models.FundamentalRecord)
	record := func(date string) *models.FundamentalRecord {
		if r, ok := byDate[date]; ok {
			return r
		}
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil
		}
		r := models.NewFundamentalRecord(symbol, d)
		byDate[date] = &r
		return &r
	}

	for _, q := range resp.OutstandingShares.Quarterly {
		if r := record(q.DateFormatted); r != nil {
			shares := q.Shares.value()
			if !models.IsMissing(shares) {
				r.TotalShares = shares / 1e8
			}
		}
	}
	for date, q := range resp.Financials.BalanceSheet.Quarterly {
		if r := record(date); r != nil {
			r.TotalAssets = q.TotalAssets.value()
			r.TotalEquity = q.TotalStockholderEquity.value()
		}
	}
	for date, q := range resp.Financials.IncomeStatement.Quarterly {
		if r := record(date); r != nil {
			r.Revenue = q.TotalRevenue.value()
			r.NetProfit = q.NetIncome.value()
		}
	}

	out := make([]models.FundamentalRecord, 0, len(byDate))
	for _, r := range byDate {
		if usable(r.NetProfit) && usable(r.TotalEquity) && r.TotalEquity != 0 {
			r.ROE = r.NetProfit * 100 / r.TotalEquity
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.Before(out[j].ReportDate) })

	c.logger.Debug().Str("symbol", symbol).Int("records", len(out)).Msg("EODHD fundamentals fetched")
	return out, nil
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ensure Client implements RawDataSource
var _ interfaces.RawDataSource = (*Client)(nil)
