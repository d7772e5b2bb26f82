// Command migrate-gen generates the SQL migration file for the event log
// and outbox tables.
//
// Usage:
//
//	go run github.com/getcask/ledgerbox/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getcask/ledgerbox/cmd/migrate-gen -output migrations
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getcask/ledgerbox/ledger/migrations"
)

func main() {
	var (
		outputFolder   = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		eventsTable    = flag.String("events-table", "events", "Name of events table")
		outboxTable    = flag.String("outbox-table", "outbox", "Name of outbox table")
		partitions     = flag.Int("partitions", 8, "Number of hash partitions for the events table")
	)

	flag.Parse()

	config := migrations.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.EventsTable = *eventsTable
	config.OutboxTable = *outboxTable
	config.Partitions = *partitions

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	if err := migrations.GeneratePostgres(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated migration: %s/%s\n", config.OutputFolder, config.OutputFilename)
}
