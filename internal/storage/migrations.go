package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one schema step; files are named NNN_description.sql and the
// numeric prefix is the schema version the step brings the store to.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// RunMigrations brings the listing schema up to date and returns the schema
// version the store is at afterwards.
func RunMigrations(db *DB) (int, error) {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return 0, fmt.Errorf("creating migrations table: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	steps, err := loadMigrations()
	if err != nil {
		return 0, fmt.Errorf("reading migration files: %w", err)
	}

	from := current
	for _, m := range steps {
		if m.Version <= current {
			continue
		}
		glog.V(1).Infof("Applying migration %s", m.Name)
		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO _migrations (version, name) VALUES (?, ?)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return current, fmt.Errorf("applying migration %s: %w", m.Name, err)
		}
		current = m.Version
	}

	if current != from {
		glog.Infof("Listing schema of %s migrated from version %d to %d", db.Path(), from, current)
	} else {
		glog.V(1).Infof("Listing schema of %s at version %d", db.Path(), current)
	}
	return current, nil
}

// SchemaVersion returns the highest applied migration version, 0 for a fresh store.
func SchemaVersion(ctx context.Context, q Queryable) (int, error) {
	var version sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(version) FROM _migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(version.Int64), nil
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	steps := make([]migration, 0, len(entries))
	seen := make(map[int]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s has no numeric version prefix", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		content, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		steps = append(steps, migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}
