package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mkeller/signalgram/config"
	"github.com/mkeller/signalgram/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the
// resulting YAML config file.
func RunTUI() error {
	var (
		source          string
		watchlistRaw    string
		pollIntervalStr string
		candleInterval  string
		rsiBuyStr       string
		rsiSellStr      string
		dipPctStr       string
		runPctStr       string
		alertMovePctStr string
		cooldownStr     string
		listenAddr      string
		useDefaultCoins bool
		confirm         bool
	)

	// defaults
	pollIntervalStr = "15m"
	candleInterval = "15m"
	rsiBuyStr = "30"
	rsiSellStr = "70"
	dipPctStr = "3"
	runPctStr = "5"
	alertMovePctStr = "5"
	cooldownStr = "2h"
	useDefaultCoins = true

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("SIGNALGRAM CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your signal bot set up.\n"))

	// source
	fmt.Println(stepStyle.Render("STEP 1: MARKET DATA SOURCE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should candle data come from?").
				Options(
					huh.NewOption("CoinGecko (no account needed)", config.SourceCoinGecko),
					huh.NewOption("Binance", config.SourceBinance),
					huh.NewOption("Bybit", config.SourceBybit),
				).
				Value(&source),
		),
	).Run()
	if err != nil {
		return err
	}

	// watchlist
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SIGNALGRAM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: WATCHLIST"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Use the default watchlist?").
				Description("BTC, ETH, SOL, ADA, DOT, KAS, RNDR, SUI, FET, AVAX, HBAR, XRP, SEI").
				Affirmative("Yes").
				Negative("No, let me type tickers").
				Value(&useDefaultCoins),
		),
	).Run()
	if err != nil {
		return err
	}

	if !useDefaultCoins {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Tickers").
					Description("Comma separated, e.g. BTC,ETH,SOL").
					Value(&watchlistRaw).
					Validate(func(s string) error {
						if _, err := parseWatchlist(s, source); err != nil {
							return err
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SIGNALGRAM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Run interval").
				Description("How often the snapshot is broadcast (e.g. 15m, 1h)").
				Value(&pollIntervalStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Candle interval").
				Description("Candle size for the indicators (e.g. 15m, 1h)").
				Value(&candleInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Signal cooldown").
				Description("Quiet period after a BUY/SELL/ALERT fires (e.g. 2h)").
				Value(&cooldownStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	// thresholds
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SIGNALGRAM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: THRESHOLDS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RSI buy level").
				Description("RSI at or below this is oversold (e.g. 30)").
				Value(&rsiBuyStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("RSI sell level").
				Description("RSI at or above this is overbought (e.g. 70)").
				Value(&rsiSellStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Dip % for BUY").
				Description("24h drop that arms the buy signal (e.g. 3)").
				Value(&dipPctStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Run-up % for SELL").
				Description("24h rise that arms the sell signal (e.g. 5)").
				Value(&runPctStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Alert move %").
				Description("Hourly move that triggers an ALERT (e.g. 5)").
				Value(&alertMovePctStr).
				Validate(validateDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	// web
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SIGNALGRAM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: STATUS PAGE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("Leave empty to disable the web status page (e.g. :8080)").
				Value(&listenAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SIGNALGRAM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	watchlistLabel := "default (13 coins)"
	if !useDefaultCoins {
		watchlistLabel = watchlistRaw
	}
	summary := fmt.Sprintf(
		"Source: %s\nWatchlist: %s\nRun interval: %s\nCandles: %s\nRSI: %s/%s\nDip/Run: %s%%/%s%%\nAlert move: %s%%\nCooldown: %s\n",
		source, watchlistLabel, pollIntervalStr, candleInterval,
		rsiBuyStr, rsiSellStr, dipPctStr, runPctStr, alertMovePctStr, cooldownStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	pollInterval, _ := time.ParseDuration(pollIntervalStr)
	cooldown, _ := time.ParseDuration(cooldownStr)

	cfgTmp := config.ConfigTmp{
		Source:          source,
		PollInterval:    pollInterval,
		CandleInterval:  candleInterval,
		RSIBuyStr:       rsiBuyStr,
		RSISellStr:      rsiSellStr,
		DipPctStr:       dipPctStr,
		RunPctStr:       runPctStr,
		AlertMovePctStr: alertMovePctStr,
		Cooldown:        cooldown,
		ListenAddr:      listenAddr,
	}
	if !useDefaultCoins {
		instruments, err := parseWatchlist(watchlistRaw, source)
		if err != nil {
			return err
		}
		cfgTmp.Instruments = instruments
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRun: signalgram --config %s", filename, filename)))
	return nil
}

// parseWatchlist turns "BTC,ETH" into instruments. Known tickers get
// their CoinGecko market id from the default watchlist; unknown ones
// are only accepted for exchange sources, which key by ticker.
func parseWatchlist(raw, source string) ([]domain.Instrument, error) {
	known := make(map[string]domain.Instrument)
	for _, inst := range config.DefaultWatchlist() {
		known[inst.Symbol] = inst
	}

	var instruments []domain.Instrument
	for _, part := range strings.Split(raw, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}
		if inst, ok := known[symbol]; ok {
			instruments = append(instruments, inst)
			continue
		}
		if source == config.SourceCoinGecko {
			return nil, fmt.Errorf("unknown ticker %s: coingecko needs a market_id, add it to the yaml by hand", symbol)
		}
		instruments = append(instruments, domain.Instrument{Symbol: symbol, Name: symbol})
	}

	if len(instruments) == 0 {
		return nil, fmt.Errorf("watchlist cannot be empty")
	}
	return instruments, nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}

func validateDecimal(s string) error {
	if _, err := decimal.NewFromString(s); err != nil {
		return fmt.Errorf("must be a valid number")
	}
	return nil
}
