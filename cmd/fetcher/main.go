package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"mcsr-analyzer/internal/collector"
	"mcsr-analyzer/internal/config"
	"mcsr-analyzer/internal/db"
	"mcsr-analyzer/internal/discord"
	"mcsr-analyzer/internal/mcsr"
	"mcsr-analyzer/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}
}

func run() error {
	if path := config.LoadDotEnv(); path != "" {
		fmt.Printf("Loaded .env from: %s\n", path)
	} else {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	defaults := mcsr.DefaultFetchParams()
	storeName := flag.String("store", "json", "Where to persist matches: json, sqlite, turso or postgres")
	usernamesFile := flag.String("usernames", cfg.UsernamesFile, "File with one username per line")
	count := flag.Int("count", defaults.Count, "Matches to request per user")
	page := flag.Int("page", defaults.Page, "Page of match history to request")
	matchType := flag.Int("type", defaults.Type, "Match type filter (0 for any)")
	tag := flag.String("tag", "", "Match tag filter")
	season := flag.Int("season", 0, "Season filter (0 for current)")
	includeDecay := flag.Bool("include-decay", defaults.IncludeDecay, "Include decay matches")
	flag.Parse()

	usernames, err := config.LoadUsernames(*usernamesFile)
	if err != nil {
		return fmt.Errorf("failed to read usernames: %w", err)
	}
	if len(usernames) == 0 {
		return fmt.Errorf("no usernames found in %s", *usernamesFile)
	}

	ctx := collector.SetupSignalHandler()

	persister, store, err := openPersister(ctx, *storeName, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", *storeName, err)
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("Error closing store: %v", err)
			}
		}()
	}

	client := mcsr.NewClient(
		mcsr.WithBaseURL(cfg.APIBaseURL),
		mcsr.WithMaxAttempts(cfg.MaxAttempts),
		mcsr.WithRetryDelay(cfg.RetryDelay),
		mcsr.WithRateLimit(cfg.RequestsPerSec),
	)

	params := mcsr.FetchParams{
		Page:         *page,
		Count:        *count,
		Type:         *matchType,
		Tag:          *tag,
		Season:       *season,
		IncludeDecay: *includeDecay,
	}

	fmt.Printf("Fetching %d users into %s store...\n", len(usernames), *storeName)
	runner := collector.NewRunner(client, persister, params)
	summary, err := runner.Run(ctx, usernames)
	if err != nil {
		return err
	}

	fmt.Println("\n========== Fetch Complete ==========")
	for _, u := range summary.Users {
		if u.Err != nil {
			fmt.Printf("  %-20s failed\n", u.Username)
			continue
		}
		fmt.Printf("  %-20s %d added\n", u.Username, u.Added)
	}
	fmt.Printf("Users processed: %d/%d\n", len(summary.Users), len(usernames))
	fmt.Printf("Matches added: %d\n", summary.TotalAdded())
	fmt.Printf("Failed users: %d\n", len(summary.FailedUsers()))
	fmt.Printf("Runtime: %s\n", summary.Duration.Round(time.Second))
	if store != nil {
		countCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		total, err := store.MatchCount(countCtx)
		cancel()
		if err != nil {
			log.Printf("[Store] Failed to count matches: %v", err)
		} else {
			fmt.Printf("Matches in %s store: %d\n", *storeName, total)
		}
	}
	if summary.Interrupted {
		fmt.Println("Run was interrupted; remaining users were not fetched")
	}

	if cfg.DiscordWebhookURL != "" {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := discord.NewWebhookClient(cfg.DiscordWebhookURL).SendFetchSummary(notifyCtx, discord.FetchSummary{
			Store:       *storeName,
			Users:       len(summary.Users),
			Added:       summary.TotalAdded(),
			FailedUsers: summary.FailedUsers(),
			Runtime:     summary.Duration,
		})
		if err != nil {
			log.Printf("[Discord] Failed to send summary: %v", err)
		}
	}
	return nil
}

// openPersister picks the JSON file or a relational driver. The store is nil for JSON.
func openPersister(ctx context.Context, name string, cfg config.Config) (collector.Persister, db.Store, error) {
	if name == "json" {
		jsonStore := storage.NewJSONStore(cfg.DataFile)
		if err := jsonStore.SetBackupDir(cfg.BackupDir); err != nil {
			return nil, nil, err
		}
		p, err := collector.NewJSONPersister(jsonStore)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	}

	store, err := db.Open(ctx, name, dbOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	if err := store.CreateTables(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return collector.NewDBPersister(store), store, nil
}

func dbOptions(cfg config.Config) db.Options {
	return db.Options{
		SQLitePath:     cfg.SQLitePath,
		TursoURL:       cfg.TursoURL,
		TursoAuthToken: cfg.TursoAuthToken,
		PostgresURL:    cfg.PostgresURL,
	}
}
