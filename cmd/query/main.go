package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"mcsr-analyzer/internal/config"
	"mcsr-analyzer/internal/db"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	storeName := flag.String("store", db.DriverSQLite, "Database to query: sqlite, turso or postgres")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage:")
		fmt.Println(`  query [--store=sqlite] "SELECT * FROM matches LIMIT 10"`)
		os.Exit(1)
	}
	sql := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := db.Open(ctx, *storeName, db.Options{
		SQLitePath:     cfg.SQLitePath,
		TursoURL:       cfg.TursoURL,
		TursoAuthToken: cfg.TursoAuthToken,
		PostgresURL:    cfg.PostgresURL,
	})
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", *storeName, err)
	}
	defer store.Close()

	result, err := store.Query(ctx, sql)
	if err != nil {
		fmt.Printf("SQL error: %v\n", err)
		store.Close()
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(result.Columns)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(result.Rows)
	table.Render()
	fmt.Printf("(%d rows)\n", len(result.Rows))
}
