// Package binance fetches klines from the Binance public market-data
// API, over REST for backfill and over websocket for live bars. Only
// the candle store depends on it; the engine sees candles through the
// provider interface.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
)

// DefaultBaseURL is the public Binance REST endpoint
const DefaultBaseURL = "https://api.binance.com"

// maxKlinesPerRequest is the API's per-call limit
const maxKlinesPerRequest = 1000

// Client is a Binance market-data REST client
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a Binance client. An empty baseURL selects the
// public endpoint.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "binance").Logger(),
	}
}

// FetchKlines returns up to limit closed candles for the symbol and
// timeframe ending at or before end, in ascending time order.
func (c *Client) FetchKlines(ctx context.Context, symbol string, timeframe domain.Timeframe, end time.Time, limit int) ([]domain.Candle, error) {
	if limit > maxKlinesPerRequest {
		limit = maxKlinesPerRequest
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(timeframe))
	params.Set("endTime", strconv.FormatInt(end.UTC().UnixMilli(), 10))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build klines request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("klines request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read klines response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines request returned %d: %s", resp.StatusCode, string(body))
	}

	// Each kline is a JSON array:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode klines response: %w", err)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("malformed kline with %d fields", len(k))
		}
		var openMs int64
		if err := json.Unmarshal(k[0], &openMs); err != nil {
			return nil, fmt.Errorf("malformed kline open time: %w", err)
		}
		candle := domain.Candle{Time: time.UnixMilli(openMs).UTC()}
		for i, dst := range []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume} {
			var s string
			if err := json.Unmarshal(k[i+1], &s); err != nil {
				return nil, fmt.Errorf("malformed kline field %d: %w", i+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed kline number %q: %w", s, err)
			}
			*dst = v
		}
		candles = append(candles, candle)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("timeframe", string(timeframe)).
		Int("count", len(candles)).
		Msg("Fetched klines")

	return candles, nil
}

// Backfill ensures the store holds at least lookback bars for each
// symbol, fetching what is missing. Best effort: a failing symbol is
// logged and skipped so the others still fill.
func (c *Client) Backfill(ctx context.Context, store CandleSink, symbols []string, timeframe domain.Timeframe, lookback int) {
	now := time.Now().UTC()
	for _, symbol := range symbols {
		candles, err := c.FetchKlines(ctx, symbol, timeframe, now, lookback)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Backfill fetch failed")
			continue
		}
		if err := store.UpsertCandles(ctx, symbol, timeframe, candles); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Backfill store failed")
			continue
		}
		c.log.Info().Str("symbol", symbol).Int("count", len(candles)).Msg("Backfilled candles")
	}
}

// CandleSink receives fetched candles (implemented by the candle store)
type CandleSink interface {
	UpsertCandles(ctx context.Context, instrument string, timeframe domain.Timeframe, candles []domain.Candle) error
}
