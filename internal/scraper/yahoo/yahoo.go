// Package yahoo reads daily price history from the Yahoo Finance v8 chart API.
// It authenticates with a session cookie and a crumb token, the way the
// yfinance library does, and paces requests with a token bucket.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"b3collect/internal/config"
	"b3collect/internal/errors"
	"b3collect/internal/market"
)

const (
	defaultChartEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL     = "https://fc.yahoo.com"
	defaultCrumbURL      = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	priceDecimals        = 2
)

// Client fetches daily bars. It implements market.HistoryFetcher.
type Client struct {
	client        *http.Client
	chartEndpoint string
	cookieURL     string
	crumbURL      string
	userAgent     string
	limiter       *rate.Limiter
	logger        *slog.Logger

	mu    sync.Mutex
	crumb string
}

var _ market.HistoryFetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithClient sets the HTTP client. The client should have a cookie jar.
func WithClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithChartEndpoint overrides the default chart API endpoint.
func WithChartEndpoint(ep string) Option {
	return func(cl *Client) { cl.chartEndpoint = ep }
}

// WithCookieURL overrides the URL used to obtain the session cookie.
func WithCookieURL(u string) Option {
	return func(cl *Client) { cl.cookieURL = u }
}

// WithCrumbURL overrides the URL used to obtain the crumb token.
func WithCrumbURL(u string) Option {
	return func(cl *Client) { cl.crumbURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithRate limits requests to rps per second. Zero or less disables pacing.
func WithRate(rps float64) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		client:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		chartEndpoint: defaultChartEndpoint,
		cookieURL:     defaultCookieURL,
		crumbURL:      defaultCrumbURL,
		userAgent:     defaultUserAgent,
		limiter:       rate.NewLimiter(rate.Limit(2), 1),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig creates a Client from the yahoo and browser sections of the configuration.
func NewFromConfig(cfg config.YahooConfig, userAgent string, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return New(
		WithClient(&http.Client{Jar: jar, Timeout: cfg.Timeout}),
		WithChartEndpoint(cfg.ChartEndpoint),
		WithCookieURL(cfg.CookieURL),
		WithCrumbURL(cfg.CrumbURL),
		WithUserAgent(userAgent),
		WithRate(cfg.RequestsPerSecond),
		WithLogger(logger),
	)
}

// chartResponse represents the Yahoo Finance v8 chart API response.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchHistory returns the daily bars of symbol from from to to, both
// inclusive, with dividends joined on their ex-date. A symbol Yahoo does not
// know, or one without trades in the range, yields an empty slice.
func (c *Client) FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]market.Bar, error) {
	if symbol == "" {
		return nil, errors.NewAppValidationError("symbol cannot be empty", nil)
	}
	if to.Before(from) {
		return nil, errors.NewAppValidationError("start date cannot be after end date", nil).
			WithContext("from", from.Format(time.DateOnly)).
			WithContext("to", to.Format(time.DateOnly))
	}

	if err := c.ensureCrumb(ctx); err != nil {
		return nil, err
	}

	bars, retry, err := c.fetchChart(ctx, symbol, from, to)
	if retry {
		// the crumb expired; authenticate again once
		if err := c.ensureCrumb(ctx); err != nil {
			return nil, err
		}
		bars, _, err = c.fetchChart(ctx, symbol, from, to)
	}
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "Retrieved yahoo data",
		slog.String("symbol", symbol),
		slog.String("from", from.Format(time.DateOnly)),
		slog.String("to", to.Format(time.DateOnly)),
		slog.Int("count", len(bars)))
	return bars, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.client.Do(req) //nolint:gosec // URL from configuration
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (c *Client) ensureCrumb(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" {
		return nil
	}

	// the cookie endpoint answers 404 but sets the session cookie in the jar
	cookieRes, err := c.get(ctx, c.cookieURL)
	if err != nil {
		return errors.NewNetworkError("fetch yahoo session cookie", err)
	}
	_ = cookieRes.Body.Close()

	crumbRes, err := c.get(ctx, c.crumbURL)
	if err != nil {
		return errors.NewNetworkError("fetch yahoo crumb", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode != http.StatusOK {
		return errors.NewNetworkError(fmt.Sprintf("crumb endpoint returned HTTP %d", crumbRes.StatusCode), nil)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return errors.NewNetworkError("read yahoo crumb", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return errors.NewParsingError("empty crumb received", nil)
	}

	c.crumb = crumb
	c.logger.InfoContext(ctx, "Obtained yahoo crumb", slog.Int("crumb_len", len(crumb)))
	return nil
}

func (c *Client) invalidateCrumb() {
	c.mu.Lock()
	c.crumb = ""
	c.mu.Unlock()
}

// fetchChart reads one chart. retry reports an authentication failure that a
// fresh crumb may fix.
func (c *Client) fetchChart(ctx context.Context, symbol string, from, to time.Time) (bars []market.Bar, retry bool, err error) {
	c.mu.Lock()
	crumb := c.crumb
	c.mu.Unlock()

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div")
	q.Set("includeAdjustedClose", "false")
	q.Set("crumb", crumb)
	reqURL := fmt.Sprintf("%s/%s?%s", c.chartEndpoint, url.PathEscape(symbol), q.Encode())

	res, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, false, errors.NewNetworkError("chart request failed", err).WithContext("symbol", symbol)
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// unknown or delisted symbol
		return []market.Bar{}, false, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.invalidateCrumb()
		return nil, true, errors.NewNetworkError(fmt.Sprintf("yahoo returned HTTP %d", res.StatusCode), nil).
			WithContext("symbol", symbol)
	default:
		return nil, false, errors.NewNetworkError(fmt.Sprintf("yahoo returned HTTP %d", res.StatusCode), nil).
			WithContext("symbol", symbol)
	}

	var resp chartResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, false, errors.NewParsingError("parse yahoo response", err).WithContext("symbol", symbol)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return []market.Bar{}, false, nil
		}
		return nil, false, errors.NewParsingError(
			fmt.Sprintf("yahoo chart error: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description), nil).
			WithContext("symbol", symbol)
	}
	if len(resp.Chart.Result) == 0 {
		return []market.Bar{}, false, nil
	}

	return toBars(resp.Chart.Result[0], from, to), false, nil
}

// toBars converts a chart result into bars dated in the exchange's calendar.
// Rows without a close are dropped.
func toBars(r chartResult, from, to time.Time) []market.Bar {
	bars := []market.Bar{}
	if len(r.Indicators.Quote) == 0 {
		return bars
	}
	loc := exchangeLocation(r.Meta.ExchangeTimezoneName)

	dividends := make(map[string]decimal.Decimal, len(r.Events.Dividends))
	for _, d := range r.Events.Dividends {
		day := tradingDay(d.Date, loc).Format(time.DateOnly)
		dividends[day] = dividends[day].Add(round(d.Amount))
	}

	first := dateOnly(from)
	last := dateOnly(to)

	q := r.Indicators.Quote[0]
	for i, ts := range r.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice == nil {
			continue
		}
		day := tradingDay(ts, loc)
		if day.Before(first) || day.After(last) {
			continue
		}
		bar := market.Bar{
			Date:     day,
			Open:     roundPtr(at(q.Open, i)),
			High:     roundPtr(at(q.High, i)),
			Low:      roundPtr(at(q.Low, i)),
			Close:    round(*closePrice),
			Dividend: dividends[day.Format(time.DateOnly)],
		}
		if v := at(q.Volume, i); v != nil {
			bar.Volume = *v
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

func at[T any](values []*T, i int) *T {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(priceDecimals)
}

func roundPtr(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return round(*v)
}

func exchangeLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// tradingDay is midnight UTC of the exchange-local date of ts
func tradingDay(ts int64, loc *time.Location) time.Time {
	t := time.Unix(ts, 0).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
