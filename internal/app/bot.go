// Package app wires the collectors, classifier, storage and chat client
// into one bot and drives the poll/report cycle.
package app

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mkeller/signalgram/config"
	"github.com/mkeller/signalgram/internal/clients/coingecko"
	"github.com/mkeller/signalgram/internal/clients/telegram"
	"github.com/mkeller/signalgram/internal/domain"
	botcmd "github.com/mkeller/signalgram/internal/services/bot"
	"github.com/mkeller/signalgram/internal/services/market/collector"
	"github.com/mkeller/signalgram/internal/services/report"
	"github.com/mkeller/signalgram/internal/services/signal"
	"github.com/mkeller/signalgram/internal/storage/alerts"
	"github.com/mkeller/signalgram/internal/storage/state"
	"github.com/mkeller/signalgram/internal/web"
)

// commandPollInterval is how often watch mode checks for new commands.
const commandPollInterval = 5 * time.Second

// Messenger is the chat surface the bot talks through.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
	Updates(ctx context.Context, offset int) ([]telegram.Update, int, error)
}

// Bot is a single bot instance.
type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	evaluator *signal.Evaluator
	state     *state.Store
	journal   *alerts.Journal
	messenger Messenger
	handler   *botcmd.Handler
	latest    atomic.Value // string

	// mu serializes the load-evaluate-save cycle; the broadcast loop
	// and the command handler both call BuildSnapshot concurrently.
	mu sync.Mutex
}

// New creates a bot with real clients wired according to the config.
func New(cfg config.Config, logger *zap.Logger) (*Bot, error) {
	messenger, err := telegram.New(cfg.Telegram.Token, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram client")
	}

	klines, quotes, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	stateStore, err := state.NewStore(cfg.StateDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create state store")
	}

	journal, err := alerts.NewJournal(filepath.Join(cfg.StateDir, "alerts"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create alert journal")
	}

	coll := collector.New(klines, quotes, cfg.CandleInterval, cfg.Lookback)
	evaluator := signal.NewEvaluator(coll, signal.Thresholds{
		RSIBuy:       cfg.RSIBuy,
		RSISell:      cfg.RSISell,
		DipPct:       cfg.DipPct,
		RunPct:       cfg.RunPct,
		AlertMovePct: cfg.AlertMovePct,
	}, signal.NewCooldownGate(cfg.Cooldown), logger)

	return newWithDeps(cfg, logger, messenger, evaluator, stateStore, journal), nil
}

// newWithDeps assembles a bot from prebuilt parts. Tests use it to
// substitute fakes.
func newWithDeps(cfg config.Config, logger *zap.Logger, messenger Messenger,
	evaluator *signal.Evaluator, stateStore *state.Store, journal *alerts.Journal) *Bot {

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		evaluator: evaluator,
		state:     stateStore,
		journal:   journal,
		messenger: messenger,
	}
	b.handler = botcmd.NewHandler(messenger, b.BuildSnapshot, cfg.Telegram.OwnerChatID, cfg.PollInterval, logger)
	return b
}

func buildProviders(cfg config.Config) (collector.KlineProvider, collector.QuoteProvider, error) {
	switch cfg.Source {
	case config.SourceCoinGecko:
		p := collector.NewCoinGeckoProvider(coingecko.New())
		return p, p, nil
	case config.SourceBinance:
		// kline and ticker endpoints are public, keys are not needed
		p := collector.NewBinanceKlineProvider(binance.NewClient("", ""))
		return p, p, nil
	case config.SourceBybit:
		return collector.NewBybitKlineProvider(bybit.NewClient()), nil, nil
	default:
		return nil, nil, errors.Errorf("unsupported source %q", cfg.Source)
	}
}

// BuildSnapshot runs one evaluation cycle over the whole watchlist,
// persists state and alert events, and returns the rendered report.
func (b *Bot) BuildSnapshot(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	snap := b.state.Load()

	evals := make([]domain.Evaluation, 0, len(b.cfg.Instruments))
	for _, inst := range b.cfg.Instruments {
		prior := snap.Get(inst.Symbol)
		outcome := b.evaluator.Evaluate(ctx, inst, signal.PriorState{
			MACDAbove: prior.MACDAbove,
			LastFired: prior.LastFired,
		})
		evals = append(evals, outcome.Evaluation)

		b.applyOutcome(&snap, inst, outcome, now)
	}

	rendered := report.Render(evals, now)
	b.latest.Store(rendered)

	if err := b.state.Save(snap); err != nil {
		b.logger.Error("failed to persist state snapshot", zap.Error(err))
	}

	return rendered, nil
}

func (b *Bot) applyOutcome(snap *state.Snapshot, inst domain.Instrument, outcome signal.Outcome, now time.Time) {
	st := snap.Get(inst.Symbol)

	if !outcome.Evaluation.Failed {
		st.LastPrice = outcome.Evaluation.Quote.Price
	}
	if outcome.MACDAbove != nil {
		st.MACDAbove = outcome.MACDAbove
	}

	if outcome.Fired {
		if st.LastFired == nil {
			st.LastFired = make(map[string]time.Time)
		}
		st.LastFired[outcome.Evaluation.Signal.String()] = now

		event := domain.AlertEvent{
			ID:             uuid.NewString(),
			Symbol:         inst.Symbol,
			Signal:         outcome.Evaluation.Signal.String(),
			Price:          outcome.Evaluation.Quote.Price,
			ShortChangePct: outcome.Evaluation.ShortChangePct,
			LongChangePct:  outcome.Evaluation.LongChangePct,
			RSI14:          outcome.Evaluation.Indicators.RSI14,
			Reason:         outcome.Evaluation.Reason,
			Time:           now,
		}
		if err := b.journal.Append(event); err != nil {
			b.logger.Error("failed to journal alert event",
				zap.String("symbol", inst.Symbol),
				zap.Error(err))
		}
	}

	snap.Set(inst.Symbol, st)
}

// Latest returns the most recently rendered report, "" before the first cycle.
func (b *Bot) Latest() string {
	if v, ok := b.latest.Load().(string); ok {
		return v
	}
	return ""
}

// Broadcast builds a snapshot and sends it to the configured chat.
func (b *Bot) Broadcast(ctx context.Context) error {
	rendered, err := b.BuildSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to build snapshot")
	}

	if err := b.messenger.Send(ctx, b.cfg.Telegram.ChatID, rendered); err != nil {
		return errors.Wrap(err, "failed to broadcast snapshot")
	}

	b.logger.Info("snapshot broadcast", zap.Int64("chat_id", b.cfg.Telegram.ChatID))
	return nil
}

// PollCommands fetches pending command updates once and handles them.
// The update offset is persisted so repeated invocations never process
// the same command twice.
func (b *Bot) PollCommands(ctx context.Context) error {
	offset := 0
	if id, ok := b.state.LoadUpdateID(); ok {
		offset = id + 1
	}

	updates, maxID, err := b.messenger.Updates(ctx, offset)
	if err != nil {
		return errors.Wrap(err, "failed to poll commands")
	}

	b.handler.Handle(ctx, updates)

	if maxID > 0 {
		if err := b.state.SaveUpdateID(maxID); err != nil {
			return errors.Wrap(err, "failed to persist update offset")
		}
	}

	return nil
}

// RunOnce performs one full cycle: answer pending commands, then
// broadcast the snapshot. This is the cron-triggered mode.
func (b *Bot) RunOnce(ctx context.Context) error {
	if err := b.PollCommands(ctx); err != nil {
		b.logger.Error("command polling failed", zap.Error(err))
	}
	return b.Broadcast(ctx)
}

// Run keeps the bot alive: scheduled broadcasts on the poll interval,
// frequent command polling, and the status web server when configured.
func (b *Bot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		delay := delayToNextRun(time.Now().UTC(), b.cfg.PollInterval)
		b.logger.Info("starting broadcast loop",
			zap.Duration("interval", b.cfg.PollInterval),
			zap.Duration("first_run_in", delay),
			zap.Int("instruments", len(b.cfg.Instruments)))

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err := b.Broadcast(ctx); err != nil {
			b.logger.Error("broadcast failed", zap.Error(err))
		}

		ticker := time.NewTicker(b.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := b.Broadcast(ctx); err != nil {
					b.logger.Error("broadcast failed", zap.Error(err))
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(commandPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := b.PollCommands(ctx); err != nil {
					b.logger.Warn("command polling failed", zap.Error(err))
				}
			}
		}
	})

	if b.cfg.ListenAddr != "" {
		server := web.NewServer(b.cfg.ListenAddr, b.Latest, b.journal, b.logger)
		g.Go(func() error {
			b.logger.Info("starting status server", zap.String("addr", b.cfg.ListenAddr))
			return server.Start(ctx)
		})
	}

	return g.Wait()
}

// delayToNextRun returns the wait until the next wall-clock aligned
// run boundary (:00/:15/:30/:45 for the default 15m interval).
// Intervals that do not divide the hour just wait one interval.
func delayToNextRun(now time.Time, interval time.Duration) time.Duration {
	if interval <= 0 || interval >= time.Hour || time.Hour%interval != 0 {
		return interval
	}
	return now.Truncate(interval).Add(interval).Sub(now)
}

// Close releases the journal.
func (b *Bot) Close() {
	if b.journal != nil {
		if err := b.journal.Close(); err != nil {
			b.logger.Warn("failed to close alert journal", zap.Error(err))
		}
	}
}
