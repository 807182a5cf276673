package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsTable records which migrations have been applied.
const MigrationsTable = "schema_migrations"

// Migration is a versioned pair of up/down SQL scripts.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// LoadMigrations reads the embedded migration files sorted by version.
// Files are named <version>_<name>.(up|down).sql.
func LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()

		var direction string
		switch {
		case strings.HasSuffix(file, ".up.sql"):
			direction = "up"
		case strings.HasSuffix(file, ".down.sql"):
			direction = "down"
		default:
			continue
		}

		base := strings.TrimSuffix(file, "."+direction+".sql")
		version, name, ok := strings.Cut(base, "_")
		if !ok || version == "" {
			return nil, fmt.Errorf("malformed migration file name %q", file)
		}

		body, err := migrationFiles.ReadFile("migrations/" + file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up script", m.Version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Migrator applies embedded migrations through database/sql.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	table      string
}

// NewMigrator creates a Migrator over an open database handle.
func NewMigrator(db *sql.DB) (*Migrator, error) {
	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}
	return &Migrator{
		db:         db,
		migrations: migrations,
		table:      pq.QuoteIdentifier(MigrationsTable),
	}, nil
}

// Up applies every migration that has not been recorded yet, each in its own
// transaction. It returns the number of migrations applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}
		record := fmt.Sprintf("INSERT INTO %s (version) VALUES ($1)", m.table)
		if err := m.inTx(ctx, migration.Up, record, migration.Version); err != nil {
			return count, fmt.Errorf("apply migration %s_%s: %w", migration.Version, migration.Name, err)
		}
		count++
	}

	return count, nil
}

// Down rolls back every applied migration in reverse order.
func (m *Migrator) Down(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if !applied[migration.Version] {
			continue
		}
		if migration.Down == "" {
			return count, fmt.Errorf("migration %s has no down script", migration.Version)
		}
		forget := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.table)
		if err := m.inTx(ctx, migration.Down, forget, migration.Version); err != nil {
			return count, fmt.Errorf("roll back migration %s_%s: %w", migration.Version, migration.Name, err)
		}
		count++
	}

	return count, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, m.table)

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("SELECT version FROM %s", m.table))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}

	return applied, nil
}

// inTx runs script and then the bookkeeping statement atomically.
func (m *Migrator) inTx(ctx context.Context, script, bookkeeping, version string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Migrate opens databaseURL with the lib/pq driver and applies pending
// migrations.
func Migrate(ctx context.Context, databaseURL string) (int, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		return 0, err
	}
	return migrator.Up(ctx)
}
