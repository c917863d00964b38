// Command signalgram watches a crypto watchlist, classifies every coin
// into BUY/SELL/HOLD/INFO/ALERT from EMA/RSI/MACD/ATR readings and
// pushes an HTML snapshot to a Telegram chat.
//
// Usage:
//
//	signalgram setup                        interactive config wizard
//	signalgram --config config.yaml         long-running watch mode
//	signalgram --config config.yaml --once  single run, for cron
//
// Required environment variables:
//
//	TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
//	TELEGRAM_OWNER_CHAT_ID (optional, restricts commands to one chat)
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mkeller/signalgram/config"
	"github.com/mkeller/signalgram/internal/app"
	"github.com/mkeller/signalgram/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	// credentials may live in a local .env during development
	_ = godotenv.Load()

	once := flag.Bool("once", false, "run one cycle and exit (cron mode)")
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if err := cfg.RequireCredentials(); err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	bot, err := app.New(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer bot.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := bot.RunOnce(ctx); err != nil {
			bot.Close()
			logger.Fatal("run failed", zap.Error(err))
		}
		return
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		bot.Close()
		logger.Fatal("bot stopped", zap.Error(err))
	}
}
