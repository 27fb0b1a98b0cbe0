package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/analysis"
	"github.com/hydrogem/pool-dashboard/services/api/config"
	"github.com/hydrogem/pool-dashboard/services/api/db"
	httpserver "github.com/hydrogem/pool-dashboard/services/api/http"
	"github.com/hydrogem/pool-dashboard/services/api/llm"
	"github.com/hydrogem/pool-dashboard/services/api/weather"
)

const analysisTemperature = 0.3

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection error: %v", err)
	}
	defer store.Close()

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		log.Println("schema migrated")
	}

	feed := db.NewBroadcaster()
	listener := db.NewListener(store, cfg.ReadingsChannel, feed)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("readings listener stopped: %v", err)
		}
	}()

	forecasts := weather.NewClient(&http.Client{Timeout: 15 * time.Second}, cfg.WeatherBaseURL, cfg.WeatherLat, cfg.WeatherLon)
	model := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, analysisTemperature)
	analyzer := analysis.NewService(store, forecasts, model, analysis.WithTimeout(cfg.AnalyzeTimeout))

	srv := httpserver.New(cfg, store, feed, analyzer)
	log.Printf("pool dashboard listening on %s", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
