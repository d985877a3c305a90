package clickhouse

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ReadEmbeddedMigration exposes embedded migration content for tests.
func ReadEmbeddedMigration(name string) (string, error) {
	b, err := migrationFS.ReadFile("migrations/" + name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// renderMigrations writes the embedded migrations into dir with the table
// placeholder replaced by fullTable.
func renderMigrations(dir, fullTable string) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		content := strings.ReplaceAll(string(b), "__TABLE_FULL__", fullTable)
		if err := os.WriteFile(filepath.Join(dir, e.Name()), []byte(content), 0o600); err != nil {
			return err
		}
	}
	return nil
}

// runMigrations creates the transcript table if needed.
func runMigrations(ctx context.Context, opts *ch.Options, fullTable string) error {
	db := ch.OpenDB(opts)
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "nulfwd_ch_mig_*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	if err := renderMigrations(tmpDir, fullTable); err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectClickHouse, db, os.DirFS(tmpDir))
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}
