// Package sqlitemigrate applies embedded SQL migrations to a SQLite
// database, tracking applied files in a schema_migrations table.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	trackingTable = "schema_migrations"
	upMarker      = "-- +migrate Up"
	downMarker    = "-- +migrate Down"
)

// ApplyMigrations runs every pending *.sql file under root in lexical
// order. Each file is applied once; the file's path is the tracking key.
func ApplyMigrations(sqlDB *sql.DB, fsys fs.FS, root string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}

	if err := ensureTrackingTable(sqlDB); err != nil {
		return err
	}

	files, err := migrationFiles(fsys, root)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := applyOne(sqlDB, fsys, file); err != nil {
			return err
		}
	}
	return nil
}

// migrationFiles returns the sorted *.sql paths under root. A "." or empty
// root means the filesystem root; returned paths keep the root prefix so
// tracking keys stay stable.
func migrationFiles(fsys fs.FS, root string) ([]string, error) {
	dir := strings.TrimSpace(root)
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		if dir != "." {
			name = path.Join(dir, name)
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func ensureTrackingTable(sqlDB *sql.DB) error {
	_, err := sqlDB.Exec(`
CREATE TABLE IF NOT EXISTS ` + trackingTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

// applyOne runs a single migration file inside a transaction. The statement
// and the tracking row commit together, so a failed migration leaves no
// record behind.
func applyOne(sqlDB *sql.DB, fsys fs.FS, file string) error {
	applied, err := alreadyApplied(sqlDB, file)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", file, err)
	}
	if applied {
		return nil
	}

	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	upSQL := upSection(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil
	}

	tx, err := sqlDB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", file, err)
	}
	if _, err := tx.Exec(upSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", file, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO "+trackingTable+" (name, applied_at) VALUES (?, ?)",
		file, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

func alreadyApplied(sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRow("SELECT 1 FROM "+trackingTable+" WHERE name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// upSection extracts the SQL between the Up and Down markers. Files without
// markers run whole.
func upSection(content string) string {
	start := strings.Index(content, upMarker)
	if start == -1 {
		return content
	}
	body := content[start+len(upMarker):]
	if end := strings.Index(body, downMarker); end != -1 {
		body = body[:end]
	}
	return body
}
