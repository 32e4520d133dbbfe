package main

import (
	"context"
	"flag"
	"log"

	"github.com/pevans/newsvote"
	"github.com/pevans/newsvote/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.newsvote/config.yaml)")
	ingest := flag.Bool("ingest", false, "poll configured feeds into the moderation queue")
	flag.Parse()

	// Load configuration (defaults apply when no file exists)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open the article store
	store, err := newsvote.NewStore(cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Build the moderation engine with the configured policy
	engine, err := newsvote.NewEngine(store, newsvote.Policy{
		MinVotes:         cfg.Moderation.MinVotes,
		ApproveThreshold: cfg.Moderation.ApproveThreshold,
		RejectThreshold:  cfg.Moderation.RejectThreshold,
	})
	if err != nil {
		log.Fatalf("Failed to build moderation engine: %v", err)
	}

	query := newsvote.NewQueryService(store)
	server := newsvote.NewAPIServer(engine, query)

	// Optionally run feed ingestion alongside the API
	if *ingest {
		service := newsvote.NewIngestService(engine, &newsvote.IngestConfig{
			Feeds:        cfg.Ingest.Feeds,
			PollInterval: cfg.Ingest.PollIntervalDuration(),
			Concurrency:  cfg.Ingest.Concurrency,
			FetchTimeout: cfg.Ingest.FetchTimeoutDuration(),
		})
		go func() {
			if err := service.Run(context.Background()); err != nil {
				log.Printf("ERROR: Ingest service exited: %v", err)
			}
		}()
		defer service.Stop()
	}

	log.Printf("Starting moderation API server on http://%s", cfg.Server.Addr)

	if err := server.Start(cfg.Server.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
