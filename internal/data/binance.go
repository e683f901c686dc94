package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultFuturesBaseURL = "https://dapi.binance.com"
	defaultSpotBaseURL    = "https://api.binance.com"

	fundingPath    = "/dapi/v1/fundingRate"
	markKlinesPath = "/dapi/v1/markPriceKlines"
	spotKlinesPath = "/api/v3/klines"

	// Max page size both endpoint families accept.
	pageLimit = 1000

	maxAttempts = 4
)

// BinanceClient fetches funding-rate history and klines from the
// coin-margined futures and spot REST APIs. Requests go through a shared
// rate limiter and retry transient failures with backoff.
type BinanceClient struct {
	FuturesBaseURL string
	SpotBaseURL    string
	Client         *http.Client

	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func NewBinanceClient(log logrus.FieldLogger) *BinanceClient {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BinanceClient{
		FuturesBaseURL: defaultFuturesBaseURL,
		SpotBaseURL:    defaultSpotBaseURL,
		Client:         &http.Client{Timeout: 30 * time.Second},
		limiter:        rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
		log:            log,
	}
}

// BinanceError represents a non-2xx response from the exchange.
type BinanceError struct {
	StatusCode int
	Message    string
	RetryAfter string // set on 429
}

func (e *BinanceError) Error() string {
	return fmt.Sprintf("binance: status %d: %s", e.StatusCode, e.Message)
}

// FundingRate is one settled funding observation.
type FundingRate struct {
	Symbol string
	Time   time.Time
	Rate   float64
}

// Kline is a single candle reduced to what the backtest needs: its open
// time and close price.
type Kline struct {
	OpenTime time.Time
	Close    float64
}

type fundingRecord struct {
	Symbol      string `json:"symbol"`
	FundingTime int64  `json:"fundingTime"`
	FundingRate string `json:"fundingRate"`
}

// FundingHistory fetches the funding-rate history for symbol over
// [start, end], paging forward until the endpoint runs dry or returns a
// short page. Results outside the requested window are dropped.
func (c *BinanceClient) FundingHistory(ctx context.Context, symbol string, start, end time.Time) ([]FundingRate, error) {
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var out []FundingRate
	cursor := startMs
	for {
		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("startTime", strconv.FormatInt(cursor, 10))
		q.Set("endTime", strconv.FormatInt(endMs, 10))
		q.Set("limit", strconv.Itoa(pageLimit))

		var page []fundingRecord
		if err := c.getJSON(ctx, c.FuturesBaseURL+fundingPath, q, &page); err != nil {
			return nil, fmt.Errorf("funding history %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			if rec.FundingTime < startMs || rec.FundingTime > endMs {
				continue
			}
			r, err := strconv.ParseFloat(rec.FundingRate, 64)
			if err != nil {
				return nil, fmt.Errorf("funding history %s: bad rate %q: %w", symbol, rec.FundingRate, err)
			}
			out = append(out, FundingRate{
				Symbol: rec.Symbol,
				Time:   time.UnixMilli(rec.FundingTime).UTC(),
				Rate:   r,
			})
		}

		last := page[len(page)-1].FundingTime
		if last >= endMs || len(page) < pageLimit {
			break
		}
		cursor = last + 1
	}

	c.log.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(out),
	}).Info("fetched funding history")
	return out, nil
}

// KlineMarket selects which kline endpoint to hit.
type KlineMarket int

const (
	SpotMarket KlineMarket = iota
	MarkPriceMarket
)

// Klines fetches candles for symbol at the given interval over
// [start, end], paging the same way as FundingHistory.
func (c *BinanceClient) Klines(ctx context.Context, market KlineMarket, symbol, interval string, start, end time.Time) ([]Kline, error) {
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var out []Kline
	cursor := startMs
	for {
		page, err := c.klinesPage(ctx, market, symbol, interval, cursor, endMs, pageLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)

		last := page[len(page)-1].OpenTime.UnixMilli()
		if last >= endMs || len(page) < pageLimit {
			break
		}
		cursor = last + 1
	}

	c.log.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": interval,
		"count":    len(out),
	}).Info("fetched klines")
	return out, nil
}

// klinesPage fetches one raw kline page. Kline rows arrive as
// heterogeneous JSON arrays; only the open time (index 0) and close
// price (index 4) are kept.
func (c *BinanceClient) klinesPage(ctx context.Context, market KlineMarket, symbol, interval string, startMs, endMs int64, limit int) ([]Kline, error) {
	base := c.SpotBaseURL + spotKlinesPath
	if market == MarkPriceMarket {
		base = c.FuturesBaseURL + markKlinesPath
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	if endMs > 0 {
		q.Set("endTime", strconv.FormatInt(endMs, 10))
	}
	q.Set("limit", strconv.Itoa(limit))

	var raw [][]json.RawMessage
	if err := c.getJSON(ctx, base, q, &raw); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	out := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			return nil, fmt.Errorf("klines %s: short row with %d fields", symbol, len(row))
		}
		var openMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, fmt.Errorf("klines %s: bad open time: %w", symbol, err)
		}
		var closeStr string
		if err := json.Unmarshal(row[4], &closeStr); err != nil {
			return nil, fmt.Errorf("klines %s: bad close: %w", symbol, err)
		}
		closePx, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return nil, fmt.Errorf("klines %s: bad close %q: %w", symbol, closeStr, err)
		}
		out = append(out, Kline{OpenTime: time.UnixMilli(openMs).UTC(), Close: closePx})
	}
	return out, nil
}

// getJSON performs one rate-limited GET with retries and decodes the
// response body into dst.
func (c *BinanceClient) getJSON(ctx context.Context, rawURL string, q url.Values, dst any) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.Client.Do(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).WithField("attempt", attempt).Warn("request failed, retrying")
			if !sleepCtx(ctx, time.Duration(attempt)*2*time.Second) {
				return ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			lastErr = &BinanceError{
				StatusCode: resp.StatusCode,
				Message:    "rate limit exceeded",
				RetryAfter: retryAfter,
			}
			wait := time.Duration(attempt) * 5 * time.Second
			if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
			c.log.WithField("retry_after", retryAfter).Warn("rate limited")
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return &BinanceError{
				StatusCode: resp.StatusCode,
				Message:    resp.Status,
			}
		}

		err = json.NewDecoder(resp.Body).Decode(dst)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
