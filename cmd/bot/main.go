package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"avt-guide/internal/app"
	"avt-guide/internal/config"
	"avt-guide/internal/logger"
	"avt-guide/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		os.Stderr.WriteString("warning: .env not loaded: " + err.Error() + "\n")
	}

	cfg := config.New()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	a, err := app.Build(cfg, log, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to build app")
	}
	defer a.Close()

	bot, err := telegram.New(cfg.TelegramBotToken, a.Manager, telegram.Options{
		ParseMode:     cfg.MessageParseMode,
		DefaultLocale: cfg.DefaultLocale,
		Operators:     a.Operators,
		Recorder:      a.Recorder,
		Location:      cfg.Location(),
		Log:           log.WithField("component", "telegram"),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create bot")
	}

	sched, err := a.Scheduler(bot.Notify)
	if err != nil {
		log.WithError(err).Fatal("failed to schedule jobs")
	}
	sched.Start()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	bot.Start(ctx)
}
