package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/advisor/internal/domain"
)

// DefaultStreamURL is the public Binance combined-stream endpoint
const DefaultStreamURL = "wss://stream.binance.com:9443"

const (
	dialTimeout          = 30 * time.Second
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// KlineStream subscribes to kline events for a set of symbols and
// writes each closed bar into the candle sink. Reconnects with
// exponential backoff; Stop shuts the stream down for good.
type KlineStream struct {
	url       string
	symbols   []string
	timeframe domain.Timeframe
	sink      CandleSink
	observer  domain.Observer
	log       zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	stopChan chan struct{}
	stopped  bool
}

// NewKlineStream creates a stream client. An empty streamURL selects
// the public endpoint.
func NewKlineStream(streamURL string, symbols []string, timeframe domain.Timeframe, sink CandleSink, observer domain.Observer, log zerolog.Logger) *KlineStream {
	if streamURL == "" {
		streamURL = DefaultStreamURL
	}
	if observer == nil {
		observer = domain.NopObserver{}
	}
	return &KlineStream{
		url:       streamURL,
		symbols:   symbols,
		timeframe: timeframe,
		sink:      sink,
		observer:  observer,
		log:       log.With().Str("client", "binance_stream").Logger(),
		stopChan:  make(chan struct{}),
	}
}

// Run connects and consumes kline events until Stop is called or the
// context is cancelled. Intended to run in its own goroutine.
func (s *KlineStream) Run(ctx context.Context) {
	attempts := 0
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.consume(ctx); err != nil {
			attempts++
			if attempts > maxReconnectAttempts {
				s.log.Error().Err(err).Msg("Giving up on kline stream after max reconnect attempts")
				return
			}
			delay := time.Duration(math.Min(
				float64(baseReconnectDelay)*math.Pow(2, float64(attempts-1)),
				float64(maxReconnectDelay),
			))
			s.log.Warn().Err(err).Dur("retry_in", delay).Int("attempt", attempts).Msg("Kline stream disconnected")
			select {
			case <-time.After(delay):
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
			continue
		}
		// Clean shutdown
		return
	}
}

// Stop closes the stream; safe to call more than once
func (s *KlineStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopChan)
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
}

func (s *KlineStream) consume(ctx context.Context) error {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.timeframe)
	}
	endpoint := fmt.Sprintf("%s/stream?streams=%s", s.url, strings.Join(streams, "/"))

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial kline stream: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	s.log.Info().Strs("streams", streams).Msg("Kline stream connected")

	for {
		select {
		case <-s.stopChan:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			if s.isStopped() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kline stream read failed: %w", err)
		}
		s.handleMessage(ctx, data)
	}
}

func (s *KlineStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// klineEvent is the combined-stream kline payload
type klineEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime int64  `json:"t"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

func (s *KlineStream) handleMessage(ctx context.Context, data []byte) {
	var event klineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.log.Debug().Err(err).Msg("Ignoring unparseable stream message")
		return
	}
	// Only closed bars enter the store; the forming bar would violate
	// the series ordering contract on every tick.
	if !event.Data.Kline.Closed || event.Data.Symbol == "" {
		return
	}

	candle, err := parseKline(event)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", event.Data.Symbol).Msg("Dropping malformed kline")
		return
	}

	if err := s.sink.UpsertCandles(ctx, event.Data.Symbol, s.timeframe, []domain.Candle{candle}); err != nil {
		s.log.Warn().Err(err).Str("symbol", event.Data.Symbol).Msg("Failed to store streamed candle")
		return
	}

	s.observer.OnEvent(domain.Event{
		Type:       domain.EventStreamCandle,
		Instrument: event.Data.Symbol,
		Fields: map[string]interface{}{
			"time":  candle.Time.Format(time.RFC3339),
			"close": candle.Close,
		},
	})
}

func parseKline(event klineEvent) (domain.Candle, error) {
	k := event.Data.Kline
	candle := domain.Candle{Time: time.UnixMilli(k.OpenTime).UTC()}
	for _, f := range []struct {
		raw string
		dst *float64
	}{
		{k.Open, &candle.Open},
		{k.High, &candle.High},
		{k.Low, &candle.Low},
		{k.Close, &candle.Close},
		{k.Volume, &candle.Volume},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("malformed kline number %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return candle, candle.Validate()
}
