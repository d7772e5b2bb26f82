package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeneratePostgres(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test_migration.sql",
		EventsTable:    "events",
		OutboxTable:    "outbox",
		Partitions:     8,
	}

	err := GeneratePostgres(&config)
	if err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	requiredStrings := []string{
		"CREATE TABLE IF NOT EXISTS events",
		"stream_id TEXT NOT NULL",
		"stream_index BIGINT NOT NULL",
		"aggregate TEXT NOT NULL DEFAULT ''",
		"commit_version BIGINT NOT NULL",
		"event_id UUID NOT NULL",
		"event_type TEXT NOT NULL",
		"payload JSONB NOT NULL",
		"committed_at TIMESTAMPTZ NOT NULL",
		"PRIMARY KEY (stream_id, stream_index)",
		"PARTITION BY HASH (stream_id)",
		"CREATE TABLE IF NOT EXISTS outbox",
		"PRIMARY KEY (stream_id, aggregate, commit_version)",
		"idx_outbox_committed_at",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("Generated SQL missing required string: %s", required)
		}
	}
}

func TestGeneratePostgres_Partitions(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test_migration.sql",
		EventsTable:    "events",
		OutboxTable:    "outbox",
		Partitions:     8,
	}

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	sql := string(content)

	for i := 0; i < 8; i++ {
		partition := fmt.Sprintf("CREATE TABLE IF NOT EXISTS events_p%d PARTITION OF events", i)
		if !strings.Contains(sql, partition) {
			t.Errorf("Generated SQL missing partition %d", i)
		}
		clause := fmt.Sprintf("FOR VALUES WITH (MODULUS 8, REMAINDER %d)", i)
		if !strings.Contains(sql, clause) {
			t.Errorf("Generated SQL missing modulus clause for partition %d", i)
		}
	}

	if strings.Contains(sql, "events_p8") {
		t.Error("Generated SQL has more partitions than configured")
	}
}

func TestGeneratePostgres_DefaultsPartitionCount(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test_migration.sql",
		EventsTable:    "events",
		OutboxTable:    "outbox",
	}

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	if config.Partitions != 8 {
		t.Errorf("Expected partition count defaulted to 8, got %d", config.Partitions)
	}
}

func TestGeneratePostgres_CustomTableNames(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "custom.sql",
		EventsTable:    "company_events",
		OutboxTable:    "company_outbox",
		Partitions:     4,
	}

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	sql := string(content)

	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS company_events") {
		t.Error("Generated SQL missing custom events table name")
	}
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS company_outbox") {
		t.Error("Generated SQL missing custom outbox table name")
	}
	if !strings.Contains(sql, "FOR VALUES WITH (MODULUS 4, REMAINDER 3)") {
		t.Error("Generated SQL missing custom partition count")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OutputFolder != "migrations" {
		t.Errorf("Expected output folder 'migrations', got %s", config.OutputFolder)
	}
	if config.EventsTable != "events" {
		t.Errorf("Expected events table 'events', got %s", config.EventsTable)
	}
	if config.OutboxTable != "outbox" {
		t.Errorf("Expected outbox table 'outbox', got %s", config.OutboxTable)
	}
	if config.Partitions != 8 {
		t.Errorf("Expected 8 partitions, got %d", config.Partitions)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_ledger.sql") {
		t.Errorf("Unexpected output filename: %s", config.OutputFilename)
	}
}
