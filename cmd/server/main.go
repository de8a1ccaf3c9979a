package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"avt-guide/internal/api"
	"avt-guide/internal/app"
	"avt-guide/internal/config"
	"avt-guide/internal/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		os.Stderr.WriteString("warning: .env not loaded: " + err.Error() + "\n")
	}

	cfg := config.New()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.Build(cfg, log, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to build app")
	}
	defer a.Close()

	sched, err := a.Scheduler(nil)
	if err != nil {
		log.WithError(err).Fatal("failed to schedule jobs")
	}
	sched.Start()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(a.Manager, a.Metrics, cfg.DefaultLocale, log)
	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		log.WithError(err).Error("http server stopped")
	}
}
