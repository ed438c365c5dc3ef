package main

import (
	"context"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/emery-Xu/news-aggregator/internal/app"
	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/logging"
)

type options struct {
	Config            string `short:"c" long:"config" description:"Path to the YAML configuration file" default:"config/config.yaml"`
	Once              bool   `long:"once" description:"Run one digest cycle and exit instead of scheduling"`
	ValidateProviders bool   `long:"validate-providers" description:"Health-check the configured AI providers and exit"`
	Debug             bool   `long:"debug" description:"Enable debug logging regardless of configuration"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}

	// A .env file is a development convenience; its absence is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.Debug {
		cfg.Logging.Level = "debug"
	}

	logger := logging.New(cfg.Logging.Level)
	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	switch {
	case opts.ValidateProviders:
		return application.ValidateProviders(ctx)
	case opts.Once:
		return application.RunOnce(ctx)
	default:
		return application.RunScheduled(ctx)
	}
}
