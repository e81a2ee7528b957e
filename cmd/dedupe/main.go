package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"mcsr-analyzer/internal/config"
	"mcsr-analyzer/internal/dedupe"
	"mcsr-analyzer/internal/discord"
	"mcsr-analyzer/internal/storage"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	file := flag.String("file", cfg.DataFile, "JSON collection to deduplicate")
	dryRun := flag.Bool("dry-run", false, "Report duplicates without rewriting the file")
	flag.Parse()

	store := storage.NewJSONStore(*file)
	if err := store.SetBackupDir(cfg.BackupDir); err != nil {
		log.Fatalf("Failed to prepare backups: %v", err)
	}

	data, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *file, err)
	}

	result := dedupe.Deduplicate(data)
	if dedupe.HasDuplicates(data) {
		log.Fatalf("Duplicates remain after dedupe pass; %s left unchanged", *file)
	}

	if *dryRun {
		fmt.Printf("Dry run. Would remove %d duplicate matches\n", result.Removed)
		return
	}

	if err := store.Save(data); err != nil {
		log.Fatalf("Failed to save %s: %v", *file, err)
	}
	fmt.Printf("Done. Removed %d duplicate matches\n", result.Removed)

	if cfg.DiscordWebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := discord.NewWebhookClient(cfg.DiscordWebhookURL).SendDedupeSummary(ctx, result.Scanned, result.Removed); err != nil {
			log.Printf("[Discord] Failed to send summary: %v", err)
		}
	}
}
