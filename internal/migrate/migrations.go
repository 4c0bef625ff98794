package migrate

import (
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

// Step is one embedded schema file. Files are named NNNN_description.sql and
// applied in version order.
type Step struct {
	Version int
	Name    string
	SQL     string
}

// Applied records a step that has run against a database.
type Applied struct {
	Version   int
	Name      string
	AppliedAt string
}

const historyDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`

func steps() ([]Step, error) {
	entries, err := fs.ReadDir(schemaFiles, "sql")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded schema")
	}
	out := make([]Step, 0, len(entries))
	seen := make(map[int]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return nil, errors.Errorf("schema file %s has no version prefix", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version < 1 {
			return nil, errors.Errorf("schema file %s has an invalid version", entry.Name())
		}
		if other, dup := seen[version]; dup {
			return nil, errors.Errorf("schema files %s and %s share version %d", other, entry.Name(), version)
		}
		seen[version] = entry.Name()
		body, err := schemaFiles.ReadFile("sql/" + entry.Name())
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", entry.Name())
		}
		out = append(out, Step{Version: version, Name: entry.Name(), SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Latest returns the highest embedded schema version.
func Latest() (int, error) {
	all, err := steps()
	if err != nil || len(all) == 0 {
		return 0, err
	}
	return all[len(all)-1].Version, nil
}

// History lists applied steps, oldest first. An empty database has none.
func History(db *sql.DB) ([]Applied, error) {
	if _, err := db.Exec(historyDDL); err != nil {
		return nil, errors.Wrap(err, "create schema_migrations")
	}
	rows, err := db.Query(`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	var out []Applied
	for rows.Next() {
		var a Applied
		if err := rows.Scan(&a.Version, &a.Name, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Current reads the applied schema version. Zero means an empty database.
func Current(db *sql.DB) (int, error) {
	applied, err := History(db)
	if err != nil || len(applied) == 0 {
		return 0, err
	}
	return applied[len(applied)-1].Version, nil
}

// Migrate applies every pending step in one transaction, so a failing file
// leaves the schema untouched.
func Migrate(db *sql.DB) error {
	all, err := steps()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(historyDDL); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}
	var current int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return errors.Wrap(err, "read schema_migrations")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, step := range all {
		if step.Version <= current {
			continue
		}
		if _, err := tx.Exec(step.SQL); err != nil {
			return errors.Wrapf(err, "apply %s", step.Name)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?,?,?)`, step.Version, step.Name, now); err != nil {
			return errors.Wrapf(err, "record %s", step.Name)
		}
	}
	return tx.Commit()
}
