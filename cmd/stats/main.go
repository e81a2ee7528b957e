package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"mcsr-analyzer/internal/config"
	"mcsr-analyzer/internal/stats"
	"mcsr-analyzer/internal/storage"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	stat := flag.String("stat", "all", "Stat to print: all, a name, an alias or part of a name")
	country := flag.String("country", cfg.Country, "Country code followed by the forfeit and win-rate stats")
	file := flag.String("file", cfg.DataFile, "JSON collection to read")
	flag.Parse()

	registry := stats.Registry(strings.ToLower(*country))
	selected, err := stats.Select(registry, *stat)
	if errors.Is(err, stats.ErrUnknownStat) {
		fmt.Printf("Unknown stat %q. Available options:\n", *stat)
		for _, opt := range stats.Options(registry) {
			fmt.Printf("  - %s\n", opt)
		}
		os.Exit(1)
	}

	data, err := storage.NewJSONStore(*file).Load()
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *file, err)
	}

	stats.Run(os.Stdout, selected, data)
}
