package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migrations holds the SQL migrations shipped with the binary
//
//go:embed migrations/*.sql
var Migrations embed.FS

// ErrMigrationChanged is returned when an applied migration file no longer
// matches the checksum recorded when it ran
var ErrMigrationChanged = errors.New("applied migration was modified")

// Migration is one versioned schema change
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// MigrationManager applies the migrations found under migrations/ of an fs.FS
type MigrationManager struct {
	db    *sql.DB
	files fs.FS
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB, files fs.FS) *MigrationManager {
	return &MigrationManager{db: db, files: files}
}

func (m *MigrationManager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at_ns INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Applied returns the checksum of every applied migration keyed by version
func (m *MigrationManager) Applied(ctx context.Context) (map[int]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied[version] = sum
	}
	return applied, rows.Err()
}

// Load reads NNN_name.sql files in version order. Duplicate versions are an error.
func (m *MigrationManager) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || path.Ext(file) != ".sql" {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(file, "%d_", &version); err != nil {
			logger.Warnf("Skipping migration file with invalid name: %s", file)
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, file, version)
		}
		seen[version] = file

		content, err := fs.ReadFile(m.files, path.Join("migrations", file))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     strings.TrimSuffix(file, ".sql"),
			SQL:      string(content),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Apply runs one migration and records it in the same transaction
func (m *MigrationManager) Apply(ctx context.Context, mig Migration) error {
	err := Transaction(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, checksum, applied_at_ns) VALUES (?, ?, ?, ?)",
			mig.Version, mig.Name, mig.Checksum, time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("Applied migration %d: %s", mig.Version, mig.Name)
	return nil
}

// Run applies every pending migration. Already applied migrations must be
// unchanged on disk.
func (m *MigrationManager) Run(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	migrations, err := m.Load()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if sum, ok := applied[mig.Version]; ok {
			if sum != mig.Checksum {
				return fmt.Errorf("%w: %s", ErrMigrationChanged, mig.Name)
			}
			continue
		}
		if err := m.Apply(ctx, mig); err != nil {
			return err
		}
	}
	return nil
}
