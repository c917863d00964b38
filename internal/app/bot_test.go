package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkeller/signalgram/config"
	"github.com/mkeller/signalgram/internal/clients/telegram"
	"github.com/mkeller/signalgram/internal/domain"
	"github.com/mkeller/signalgram/internal/services/market/collector"
	"github.com/mkeller/signalgram/internal/services/signal"
	"github.com/mkeller/signalgram/internal/storage/alerts"
	"github.com/mkeller/signalgram/internal/storage/state"
)

type fakeMessenger struct {
	sentChat []int64
	sentText []string
	updates  []telegram.Update
	maxID    int
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string) error {
	f.sentChat = append(f.sentChat, chatID)
	f.sentText = append(f.sentText, text)
	return nil
}

func (f *fakeMessenger) Updates(_ context.Context, _ int) ([]telegram.Update, int, error) {
	return f.updates, f.maxID, nil
}

type fakeKlines struct {
	candles []domain.Candle
}

func (f *fakeKlines) GetKlines(_ context.Context, _ domain.Instrument, _ string, _ int) ([]domain.Candle, error) {
	return f.candles, nil
}

// steadyCandles returns n flat-ish 15m candles ending now.
func steadyCandles(n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	start := time.Now().UTC().Add(-time.Duration(n) * 15 * time.Minute)
	for i := range candles {
		price := decimal.NewFromInt(int64(100 + i))
		openTime := start.Add(time.Duration(i) * 15 * time.Minute)
		candles[i] = domain.Candle{
			OpenTime:  openTime,
			CloseTime: openTime.Add(15 * time.Minute),
			Open:      price,
			High:      price.Add(decimal.NewFromInt(1)),
			Low:       price.Sub(decimal.NewFromInt(1)),
			Close:     price,
			Volume:    decimal.NewFromInt(10),
		}
	}
	return candles
}

// crashCandles falls hard over the last few candles so the hourly move
// crosses the alert threshold.
func crashCandles(n, crashFrom int) []domain.Candle {
	candles := steadyCandles(n)
	price := candles[crashFrom-1].Close
	for i := crashFrom; i < n; i++ {
		price = price.Sub(decimal.NewFromInt(25))
		candles[i].Open = price.Add(decimal.NewFromInt(25))
		candles[i].Close = price
		candles[i].High = candles[i].Open
		candles[i].Low = price
	}
	return candles
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Source: config.SourceCoinGecko,
		Instruments: []domain.Instrument{
			{Symbol: "BTC", MarketID: "bitcoin", Name: "Bitcoin"},
		},
		PollInterval:   15 * time.Minute,
		CandleInterval: "15m",
		Lookback:       96,
		RSIBuy:         decimal.NewFromInt(30),
		RSISell:        decimal.NewFromInt(70),
		DipPct:         decimal.NewFromInt(3),
		RunPct:         decimal.NewFromInt(5),
		AlertMovePct:   decimal.NewFromInt(5),
		Cooldown:       2 * time.Hour,
		StateDir:       t.TempDir(),
		Telegram:       config.Telegram{Token: "test", ChatID: 42},
	}
}

func testBot(t *testing.T, cfg config.Config, messenger Messenger, klines collector.KlineProvider) *Bot {
	t.Helper()

	stateStore, err := state.NewStore(cfg.StateDir)
	require.NoError(t, err)

	journal, err := alerts.NewJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	coll := collector.New(klines, nil, cfg.CandleInterval, cfg.Lookback)
	evaluator := signal.NewEvaluator(coll, signal.Thresholds{
		RSIBuy:       cfg.RSIBuy,
		RSISell:      cfg.RSISell,
		DipPct:       cfg.DipPct,
		RunPct:       cfg.RunPct,
		AlertMovePct: cfg.AlertMovePct,
	}, signal.NewCooldownGate(cfg.Cooldown), zap.NewNop())

	return newWithDeps(cfg, zap.NewNop(), messenger, evaluator, stateStore, journal)
}

func TestBot_Broadcast(t *testing.T) {
	cfg := testConfig(t)
	messenger := &fakeMessenger{}
	b := testBot(t, cfg, messenger, &fakeKlines{candles: steadyCandles(96)})

	require.NoError(t, b.Broadcast(context.Background()))

	require.Len(t, messenger.sentText, 1)
	assert.Equal(t, int64(42), messenger.sentChat[0])
	assert.Contains(t, messenger.sentText[0], "Signal Snapshot")
	assert.Contains(t, messenger.sentText[0], "Bitcoin (BTC)")
	assert.Equal(t, messenger.sentText[0], b.Latest())
}

func TestBot_BuildSnapshot_PersistsState(t *testing.T) {
	cfg := testConfig(t)
	b := testBot(t, cfg, &fakeMessenger{}, &fakeKlines{candles: steadyCandles(96)})

	_, err := b.BuildSnapshot(context.Background())
	require.NoError(t, err)

	stateStore, err := state.NewStore(cfg.StateDir)
	require.NoError(t, err)
	st := stateStore.Load().Get("BTC")
	assert.False(t, st.LastPrice.IsZero())
	require.NotNil(t, st.MACDAbove)
}

func TestBot_AlertJournaledAndCooledDown(t *testing.T) {
	cfg := testConfig(t)
	messenger := &fakeMessenger{}
	b := testBot(t, cfg, messenger, &fakeKlines{candles: crashCandles(96, 92)})

	_, err := b.BuildSnapshot(context.Background())
	require.NoError(t, err)

	records, err := b.journal.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "BTC", records[0].Event.Symbol)
	assert.Equal(t, "ALERT", records[0].Event.Signal)
	assert.NotEmpty(t, records[0].Event.ID)

	// the cooldown gate suppresses the repeat within the window
	_, err = b.BuildSnapshot(context.Background())
	require.NoError(t, err)

	records, err = b.journal.EventsAfter(0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBot_ConcurrentSnapshotsJournalOnce(t *testing.T) {
	cfg := testConfig(t)
	b := testBot(t, cfg, &fakeMessenger{}, &fakeKlines{candles: crashCandles(96, 92)})

	// the broadcast loop and the /status handler can overlap; only the
	// first cycle inside the cooldown window may journal the alert
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.BuildSnapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := b.journal.EventsAfter(0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBot_PollCommands(t *testing.T) {
	cfg := testConfig(t)
	messenger := &fakeMessenger{
		updates: []telegram.Update{{ID: 41, ChatID: 42, Text: "/help"}},
		maxID:   41,
	}
	b := testBot(t, cfg, messenger, &fakeKlines{candles: steadyCandles(96)})

	require.NoError(t, b.PollCommands(context.Background()))

	require.Len(t, messenger.sentText, 1)
	assert.Contains(t, messenger.sentText[0], "/status")

	id, ok := b.state.LoadUpdateID()
	require.True(t, ok)
	assert.Equal(t, 41, id)
}

func TestDelayToNextRun(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		want     time.Duration
	}{
		{
			name:     "mid window aligns to the quarter hour",
			now:      time.Date(2026, 1, 2, 12, 7, 0, 0, time.UTC),
			interval: 15 * time.Minute,
			want:     8 * time.Minute,
		},
		{
			name:     "on the boundary waits a full interval",
			now:      time.Date(2026, 1, 2, 12, 15, 0, 0, time.UTC),
			interval: 15 * time.Minute,
			want:     15 * time.Minute,
		},
		{
			name:     "hourly and longer fall back to the interval",
			now:      time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC),
			interval: 2 * time.Hour,
			want:     2 * time.Hour,
		},
		{
			name:     "non-divisor of the hour falls back",
			now:      time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
			interval: 25 * time.Minute,
			want:     25 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, delayToNextRun(tt.now, tt.interval))
		})
	}
}

func TestBot_RunOnce(t *testing.T) {
	cfg := testConfig(t)
	messenger := &fakeMessenger{}
	b := testBot(t, cfg, messenger, &fakeKlines{candles: steadyCandles(96)})

	require.NoError(t, b.RunOnce(context.Background()))

	require.Len(t, messenger.sentText, 1)
	assert.Contains(t, messenger.sentText[0], "Signal Snapshot")
}
