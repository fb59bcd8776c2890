package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThePuug/closed-economy/internal/app"
	"github.com/ThePuug/closed-economy/internal/config"
)

func main() {
	var (
		configPath string
		url        string
		bot        bool
	)
	flag.StringVar(&configPath, "config", "", "path to a TOML configuration file")
	flag.StringVar(&url, "url", "", "host websocket url, overrides the configured one")
	flag.BoolVar(&bot, "bot", false, "walk automatically")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if url != "" {
		cfg.Client.URL = url
	}
	if bot {
		cfg.Client.Bot = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := app.RunClient(ctx, cfg, app.ClientOptions{}); err != nil {
		log.Fatalf("%v", err)
	}
}
