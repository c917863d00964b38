package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mkeller/signalgram/internal/domain"
)

// Market data sources supported for candle history.
const (
	SourceCoinGecko = "coingecko"
	SourceBinance   = "binance"
	SourceBybit     = "bybit"
)

// Config holds everything one bot instance needs.
type Config struct {
	Source         string
	Instruments    []domain.Instrument
	PollInterval   time.Duration
	CandleInterval string
	Lookback       int

	RSIBuy       decimal.Decimal
	RSISell      decimal.Decimal
	DipPct       decimal.Decimal
	RunPct       decimal.Decimal
	AlertMovePct decimal.Decimal
	Cooldown     time.Duration

	StateDir   string
	ListenAddr string

	Telegram Telegram
}

// Telegram holds chat API credentials and addressing.
type Telegram struct {
	Token string
	// ChatID is the chat the scheduled snapshot is broadcast to.
	ChatID int64
	// OwnerChatID, when set, restricts command handling to one chat.
	OwnerChatID int64
}

// ConfigTmp mirrors the YAML layout; decimal fields arrive as strings.
// The setup wizard marshals one of these to produce a config file.
type ConfigTmp struct {
	Source          string              `yaml:"source,omitempty"`
	Instruments     []domain.Instrument `yaml:"instruments"`
	PollInterval    time.Duration       `yaml:"poll_interval,omitempty"`
	CandleInterval  string              `yaml:"candle_interval,omitempty"`
	Lookback        int                 `yaml:"lookback,omitempty"`
	RSIBuyStr       string              `yaml:"rsi_buy,omitempty"`
	RSISellStr      string              `yaml:"rsi_sell,omitempty"`
	DipPctStr       string              `yaml:"dip_pct,omitempty"`
	RunPctStr       string              `yaml:"run_pct,omitempty"`
	AlertMovePctStr string              `yaml:"alert_move_pct,omitempty"`
	Cooldown        time.Duration       `yaml:"cooldown,omitempty"`
	StateDir        string              `yaml:"state_dir,omitempty"`
	ListenAddr      string              `yaml:"listen_addr,omitempty"`
}

// Defaults matching the constants the bot has always run with.
var (
	defaultRSIBuy       = decimal.NewFromInt(30)
	defaultRSISell      = decimal.NewFromInt(70)
	defaultDipPct       = decimal.NewFromInt(3)
	defaultRunPct       = decimal.NewFromInt(5)
	defaultAlertMovePct = decimal.NewFromInt(5)
)

const (
	defaultSource         = SourceCoinGecko
	defaultPollInterval   = 15 * time.Minute
	defaultCandleInterval = "15m"
	defaultLookback       = 96
	defaultCooldown       = 2 * time.Hour
	defaultStateDir       = "./state"
)

// Get resolves the configuration from the optional YAML file given by
// --config, environment variables for credentials and threshold
// overrides, and built-in defaults for everything else.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	return Load(*configPath)
}

// Load builds the configuration from the given YAML path ("" means
// defaults only) plus the environment.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := applyYaml(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Source:         defaultSource,
		Instruments:    DefaultWatchlist(),
		PollInterval:   defaultPollInterval,
		CandleInterval: defaultCandleInterval,
		Lookback:       defaultLookback,
		RSIBuy:         defaultRSIBuy,
		RSISell:        defaultRSISell,
		DipPct:         defaultDipPct,
		RunPct:         defaultRunPct,
		AlertMovePct:   defaultAlertMovePct,
		Cooldown:       defaultCooldown,
		StateDir:       defaultStateDir,
	}
}

// DefaultWatchlist is the coin set broadcast when no YAML config is given.
func DefaultWatchlist() []domain.Instrument {
	return []domain.Instrument{
		{Symbol: "BTC", MarketID: "bitcoin", Name: "Bitcoin"},
		{Symbol: "ETH", MarketID: "ethereum", Name: "Ethereum"},
		{Symbol: "SOL", MarketID: "solana", Name: "Solana"},
		{Symbol: "ADA", MarketID: "cardano", Name: "Cardano"},
		{Symbol: "DOT", MarketID: "polkadot", Name: "Polkadot"},
		{Symbol: "KAS", MarketID: "kaspa", Name: "Kaspa"},
		{Symbol: "RNDR", MarketID: "render-token", Name: "Render"},
		{Symbol: "SUI", MarketID: "sui", Name: "Sui"},
		{Symbol: "FET", MarketID: "fetch-ai", Name: "Fetch.ai"},
		{Symbol: "AVAX", MarketID: "avalanche-2", Name: "Avalanche"},
		{Symbol: "HBAR", MarketID: "hedera-hashgraph", Name: "Hedera"},
		{Symbol: "XRP", MarketID: "ripple", Name: "XRP"},
		{Symbol: "SEI", MarketID: "sei-network", Name: "Sei"},
	}
}

func applyYaml(cfg *Config, path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if tmp.Source != "" {
		cfg.Source = tmp.Source
	}
	if len(tmp.Instruments) > 0 {
		cfg.Instruments = tmp.Instruments
	}
	if tmp.PollInterval > 0 {
		cfg.PollInterval = tmp.PollInterval
	}
	if tmp.CandleInterval != "" {
		cfg.CandleInterval = tmp.CandleInterval
	}
	if tmp.Lookback > 0 {
		cfg.Lookback = tmp.Lookback
	}
	if tmp.Cooldown > 0 {
		cfg.Cooldown = tmp.Cooldown
	}
	if tmp.StateDir != "" {
		cfg.StateDir = tmp.StateDir
	}
	if tmp.ListenAddr != "" {
		cfg.ListenAddr = tmp.ListenAddr
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"rsi_buy", tmp.RSIBuyStr, &cfg.RSIBuy},
		{"rsi_sell", tmp.RSISellStr, &cfg.RSISell},
		{"dip_pct", tmp.DipPctStr, &cfg.DipPct},
		{"run_pct", tmp.RunPctStr, &cfg.RunPct},
		{"alert_move_pct", tmp.AlertMovePctStr, &cfg.AlertMovePct},
	} {
		if d.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(d.raw)
		if err != nil {
			return fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal): %w", d.name, err)
		}
		*d.dst = v
	}

	return nil
}

// applyEnv overlays credentials and threshold overrides from the process
// environment. Credentials only ever come from the environment.
func applyEnv(cfg *Config) error {
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID must be a numeric chat id: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	if raw := os.Getenv("TELEGRAM_OWNER_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_OWNER_CHAT_ID must be a numeric chat id: %w", err)
		}
		cfg.Telegram.OwnerChatID = id
	}

	for _, d := range []struct {
		env string
		dst *decimal.Decimal
	}{
		{"SIGNALGRAM_RSI_BUY", &cfg.RSIBuy},
		{"SIGNALGRAM_RSI_SELL", &cfg.RSISell},
		{"SIGNALGRAM_DIP_PCT", &cfg.DipPct},
		{"SIGNALGRAM_RUN_PCT", &cfg.RunPct},
		{"SIGNALGRAM_ALERT_MOVE_PCT", &cfg.AlertMovePct},
	} {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s must be a decimal: %w", d.env, err)
		}
		*d.dst = v
	}

	return nil
}

func (c Config) validate() error {
	switch c.Source {
	case SourceCoinGecko, SourceBinance, SourceBybit:
	default:
		return fmt.Errorf("unsupported source %q (expected %s, %s or %s)",
			c.Source, SourceCoinGecko, SourceBinance, SourceBybit)
	}

	if len(c.Instruments) == 0 {
		return fmt.Errorf("watchlist is empty")
	}
	for _, inst := range c.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("instrument without symbol in watchlist")
		}
		if c.Source == SourceCoinGecko && inst.MarketID == "" {
			return fmt.Errorf("instrument %s has no market_id, required for coingecko", inst.Symbol)
		}
	}

	if _, err := time.ParseDuration(c.CandleInterval); err != nil {
		return fmt.Errorf("invalid candle_interval %q: %w", c.CandleInterval, err)
	}
	if c.Lookback < 50 {
		return fmt.Errorf("lookback must be at least 50 candles, got %d", c.Lookback)
	}

	if !c.RSIBuy.LessThan(c.RSISell) {
		return fmt.Errorf("rsi_buy (%s) must be below rsi_sell (%s)", c.RSIBuy, c.RSISell)
	}
	for _, p := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"dip_pct", c.DipPct},
		{"run_pct", c.RunPct},
		{"alert_move_pct", c.AlertMovePct},
	} {
		if p.value.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%s must be positive, got %s", p.name, p.value)
		}
	}

	return nil
}

// RequireCredentials checks that the Telegram credentials needed for
// broadcasting are present.
func (c Config) RequireCredentials() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN env is not set")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID env is not set")
	}
	return nil
}

// CandleDuration returns the candle interval as a time.Duration.
func (c Config) CandleDuration() time.Duration {
	d, _ := time.ParseDuration(c.CandleInterval)
	return d
}
