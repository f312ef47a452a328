package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/pricelens/crawl-engine/internal/api"
	"github.com/pricelens/crawl-engine/internal/config"
	"github.com/pricelens/crawl-engine/internal/db"
	"github.com/pricelens/crawl-engine/internal/digest"
	"github.com/pricelens/crawl-engine/internal/discovery"
	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/internal/extract"
	"github.com/pricelens/crawl-engine/internal/insight"
	"github.com/pricelens/crawl-engine/internal/runner"
)

func main() {
	log.Println("Starting PriceLens Crawl Engine (competitor pricing intelligence)...")

	// Local development reads a .env file; production injects real env vars.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := config.FromEnv()
	if cfg.DatabaseURL == "" {
		log.Fatal("FATAL: Required environment variable DATABASE_URL is not set. " +
			"Copy .env.example to .env and fill in your values: cp .env.example .env")
	}
	if cfg.CronSecret == "" {
		log.Println("Warning: CRON_SECRET is not set; scheduler endpoints are disabled until it is configured")
	}

	store, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: PostgreSQL connection failed: %v", err)
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		log.Printf("Warning: DB schema init failed: %v", err)
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	fetcher := extract.NewFetcher(cfg.FetchTimeout, cfg.MaxHTMLLength)
	extractor := extract.NewExtractor(fetcher)
	discoverer := discovery.New(fetcher, cfg.DiscoveryPrimaryMinConfidence, cfg.DiscoveryPrimaryMinGap)
	resolver := entitlements.NewResolver(entitlements.DefaultRules())
	builder := insight.NewBuilder(resolver)

	crawlRunner := runner.New(store, extractor, discoverer, resolver, builder, wsHub, cfg)
	digestJob := digest.NewJob(store, nil, resolver, cfg)

	server := api.NewServer(store, crawlRunner, digestJob, discoverer, resolver, wsHub, cfg)
	r := api.SetupRouter(server)

	log.Printf("Engine running on :%s (workers=%d, batch limit=%d)\n",
		cfg.Port, cfg.CrawlWorkers, cfg.CrawlBatchLimit)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
