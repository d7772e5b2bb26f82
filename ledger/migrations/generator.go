// Package migrations provides SQL migration generation for the event log
// and outbox infrastructure.
package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures migration generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// EventsTable is the name of the partitioned events table
	EventsTable string

	// OutboxTable is the name of the outbox table
	OutboxTable string

	// Partitions is the number of hash partitions for the events table
	Partitions int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_ledger.sql", timestamp),
		EventsTable:    "events",
		OutboxTable:    "outbox",
		Partitions:     8,
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	if config.Partitions <= 0 {
		config.Partitions = 8
	}

	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generatePostgresSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generatePostgresSQL(config *Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, `-- Event Log and Outbox Infrastructure Migration
-- Generated: %s

-- Events table stores all domain events in append-only fashion.
-- Hash-partitioned by stream_id purely for write/read scalability;
-- partitioning is invisible to all logical operations.
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT NOT NULL,
    stream_index BIGINT NOT NULL,
    aggregate TEXT NOT NULL DEFAULT '',
    commit_version BIGINT NOT NULL,
    event_id UUID NOT NULL,
    event_type TEXT NOT NULL,
    payload JSONB NOT NULL,
    committed_at TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (stream_id, stream_index)
) PARTITION BY HASH (stream_id);

`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
	)

	for i := 0; i < config.Partitions; i++ {
		fmt.Fprintf(&b, `CREATE TABLE IF NOT EXISTS %s_p%d PARTITION OF %s
    FOR VALUES WITH (MODULUS %d, REMAINDER %d);
`,
			config.EventsTable, i, config.EventsTable, config.Partitions, i)
	}

	fmt.Fprintf(&b, `
-- Index for commit-version resume reads
CREATE INDEX IF NOT EXISTS idx_%s_commit
    ON %s (stream_id, aggregate, commit_version);

-- Outbox table records one row per committed batch pending publication.
-- The primary key is the store's only concurrency-conflict detector: two
-- commits racing to use the same commit version for the same stream cannot
-- both succeed.
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT NOT NULL,
    aggregate TEXT NOT NULL DEFAULT '',
    commit_version BIGINT NOT NULL,
    committed_at TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (stream_id, aggregate, commit_version)
);

-- Index for age-based sweep scans
CREATE INDEX IF NOT EXISTS idx_%s_committed_at
    ON %s (committed_at);
`,
		config.EventsTable, config.EventsTable,
		config.OutboxTable,
		config.OutboxTable, config.OutboxTable,
	)

	return b.String()
}
