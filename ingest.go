package newsvote

import (
	"context"
	"log"
	"sync"
	"time"
)

// IngestService is a background service that pulls articles from external
// feeds into the moderation pipeline. Everything it submits enters as
// pending and faces the same crowd vote as a manual submission; ingestion
// grants no shortcut to approval. Content-hash deduplication in the intake
// makes repeated polls of the same feed idempotent.
type IngestService struct {
	engine *Engine
	config *IngestConfig

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	feedSemaphore chan struct{}
}

// IngestConfig holds configuration for the ingest service.
type IngestConfig struct {
	// Feed URLs to poll.
	Feeds []string
	// Interval between polling rounds.
	PollInterval time.Duration
	// Maximum number of feeds to fetch in parallel.
	Concurrency int
	// Timeout per feed fetch.
	FetchTimeout time.Duration
}

// DefaultIngestConfig returns the default configuration.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		PollInterval: 1 * time.Hour,
		Concurrency:  5,
		FetchTimeout: 60 * time.Second,
	}
}

// NewIngestService creates a new ingest service.
func NewIngestService(engine *Engine, config *IngestConfig) *IngestService {
	if config == nil {
		config = DefaultIngestConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Hour
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}

	return &IngestService{
		engine:        engine,
		config:        config,
		stopChan:      make(chan struct{}),
		feedSemaphore: make(chan struct{}, config.Concurrency),
	}
}

// Run starts the ingest loop. It polls all configured feeds immediately, then
// on every tick, until Stop() is called or the context is cancelled.
func (is *IngestService) Run(ctx context.Context) error {
	if len(is.config.Feeds) == 0 {
		log.Println("INFO: Ingest service has no feeds configured, nothing to do")
		return nil
	}

	log.Printf("INFO: Ingest service starting with %d feeds", len(is.config.Feeds))

	is.pollFeeds(ctx)

	ticker := time.NewTicker(is.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("INFO: Ingest service stopping (context cancelled)")
			is.wg.Wait()
			return ctx.Err()
		case <-is.stopChan:
			log.Println("INFO: Ingest service stopping")
			is.wg.Wait()
			return nil
		case <-ticker.C:
			is.pollFeeds(ctx)
		}
	}
}

// Stop signals the ingest service to stop gracefully.
func (is *IngestService) Stop() {
	is.stopOnce.Do(func() { close(is.stopChan) })
}

// pollFeeds fetches all configured feeds in parallel, bounded by the
// concurrency limit.
func (is *IngestService) pollFeeds(ctx context.Context) {
	for _, feedURL := range is.config.Feeds {
		select {
		case <-ctx.Done():
			return
		case is.feedSemaphore <- struct{}{}:
			is.wg.Add(1)
			go func(url string) {
				defer is.wg.Done()
				defer func() { <-is.feedSemaphore }()

				if err := is.pollFeed(ctx, url); err != nil {
					log.Printf("ERROR: Failed to ingest feed %s: %v", url, err)
				}
			}(feedURL)
		}
	}
}

// pollFeed fetches one feed and submits its items through the intake.
func (is *IngestService) pollFeed(ctx context.Context, url string) error {
	startTime := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, is.config.FetchTimeout)
	defer cancel()

	feed, err := FetchFeed(fetchCtx, url)
	if err != nil {
		return err
	}

	newCount := 0
	for _, sub := range FeedToSubmissions(feed) {
		_, created, err := is.engine.Submit(sub.Headline, sub.Body, sub.Author)
		if err != nil {
			log.Printf("WARN: Skipping feed item %q: %v", sub.Headline, err)
			continue
		}
		if created {
			newCount++
		}
	}

	duration := time.Since(startTime)
	if duration > 30*time.Second {
		log.Printf("WARN: Slow fetch for %s: %d new articles in %v", url, newCount, duration)
	} else {
		log.Printf("INFO: Ingested %s: %d new articles in %v", url, newCount, duration)
	}

	return nil
}
