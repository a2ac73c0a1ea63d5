package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/cache"
	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/engine"
	"github.com/aristath/advisor/internal/regime"
	"github.com/aristath/advisor/internal/strategy"
)

// stubProvider serves one fixed series, or fails when series is nil
type stubProvider struct {
	series *domain.CandleSeries
}

func (p *stubProvider) GetCandles(ctx context.Context, instrument string, timeframe domain.Timeframe, end time.Time, lookback int) (*domain.CandleSeries, error) {
	if p.series == nil {
		return nil, domain.ErrDataUnavailable
	}
	return p.series, nil
}

type alwaysLong struct{}

func (alwaysLong) Metadata() strategy.Metadata {
	return strategy.Metadata{Name: "stub", Style: strategy.StyleTrend, DefaultWeight: 1.0}
}

func (alwaysLong) RequiredHistory() int { return 1 }

func (alwaysLong) Evaluate(series *domain.CandleSeries) (domain.StrategySignal, error) {
	last, _ := series.Last()
	return domain.StrategySignal{
		StrategyName: "stub",
		Direction:    domain.DirectionLong,
		Strength:     1.0,
		Confidence:   1.0,
		Reasons:      []string{"always long"},
		AsOf:         last.Time,
	}, nil
}

func flatBars(t *testing.T, n int) *domain.CandleSeries {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		candles[i] = domain.Candle{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   10000,
			High:   10050,
			Low:    9950,
			Close:  10000,
			Volume: 100,
		}
	}
	s, err := domain.NewCandleSeries("BTCUSDT", domain.Timeframe1d, candles)
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, provider domain.MarketDataProvider) (*Server, *strategy.Registry) {
	t.Helper()
	registry := strategy.NewRegistry(zerolog.Nop())
	registry.Register(alwaysLong{})

	eng := engine.New(engine.Config{
		Provider:  provider,
		Registry:  registry,
		Detector:  regime.NewDetector(zerolog.Nop()),
		Timeframe: domain.Timeframe1d,
		Log:       zerolog.Nop(),
	})

	srv := New(Config{
		Port:        0,
		Log:         zerolog.Nop(),
		DevMode:     true,
		Instruments: []string{"BTCUSDT", "ETHUSDT"},
		Engine:      eng,
		Cache:       cache.New(time.Hour, nil, zerolog.Nop()),
		Registry:    registry,
	})
	return srv, registry
}

func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, engine.Version, body["version"])
}

func TestHandleInstruments(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/api/v1/instruments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var instruments []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instruments))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, instruments)
}

func TestHandleGetRecommendation_OK(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/api/v1/recommendations/BTCUSDT", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var r domain.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "BTCUSDT", r.Instrument)
	assert.Equal(t, domain.ActionBuy, r.Decision.Action)
	assert.Equal(t, engine.Version, r.EngineVersion)
}

func TestHandleGetRecommendation_AsOfQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/api/v1/recommendations/BTCUSDT?as_of=2025-06-01T12:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var r domain.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), r.AsOf)
}

func TestHandleGetRecommendation_BadAsOf(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/api/v1/recommendations/BTCUSDT?as_of=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body["error"])
}

func TestHandleGetRecommendation_NotTracked(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/api/v1/recommendations/DOGEUSDT", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_tracked", body["error"])
}

func TestHandleGetRecommendation_NoData(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: nil})

	rec := doRequest(srv, http.MethodGet, "/api/v1/recommendations/BTCUSDT", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no_data", body["error"])
}

func TestHandleRefreshRecommendation(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	// Prime the cache, then force a rebuild
	rec := doRequest(srv, http.MethodGet, "/api/v1/recommendations/BTCUSDT", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/v1/recommendations/BTCUSDT/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var r domain.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "BTCUSDT", r.Instrument)
}

func TestHandleRefreshRecommendation_NotTracked(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodPost, "/api/v1/recommendations/DOGEUSDT/refresh", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListStrategies(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodGet, "/api/v1/strategies/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []strategyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "stub", records[0].Name)
	assert.True(t, records[0].Enabled)
	assert.Equal(t, 1.0, records[0].Weight)
}

func TestHandleUpdateStrategy(t *testing.T) {
	srv, registry := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	body := []byte(`{"enabled": false, "weight": 2.5}`)
	rec := doRequest(srv, http.MethodPut, "/api/v1/strategies/stub", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var record strategyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.False(t, record.Enabled)
	assert.Equal(t, 2.5, record.Weight)

	e, ok := registry.Get("stub")
	require.True(t, ok)
	assert.False(t, e.Enabled)
	assert.Equal(t, 2.5, e.Weight)
}

func TestHandleUpdateStrategy_Unknown(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodPut, "/api/v1/strategies/missing", []byte(`{"enabled": true}`))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateStrategy_BadInput(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{series: flatBars(t, 40)})

	rec := doRequest(srv, http.MethodPut, "/api/v1/strategies/stub", []byte(`not json`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPut, "/api/v1/strategies/stub", []byte(`{"weight": -1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
