// Package migrate applies the embedded SQL migrations of a store.
package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Migration is one versioned SQL file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Result reports what Run did.
type Result struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

// Target abstracts the driver (pgx vs database/sql).
type Target interface {
	// EnsureTable creates the _migrations tracking table.
	EnsureTable(ctx context.Context) error
	// Applied returns the versions already recorded.
	Applied(ctx context.Context) (map[int]bool, error)
	// Apply runs m and records its version atomically.
	Apply(ctx context.Context, m Migration) error
}

// formato: {version}_{name}.sql
var filePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// Parse reads the migrations under dir, sorted by version. Files that do not
// match the naming pattern are ignored; duplicate versions are an error.
func Parse(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read %s: %w", dir, err)
	}
	seen := map[int]string{}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrate: version %d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: m[2], SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every pending migration in order and stops at the first failure.
func Run(ctx context.Context, t Target, migrations []Migration) (*Result, error) {
	start := time.Now()
	res := &Result{}
	if err := t.EnsureTable(ctx); err != nil {
		return res, fmt.Errorf("migrate: create tracking table: %w", err)
	}
	applied, err := t.Applied(ctx)
	if err != nil {
		return res, fmt.Errorf("migrate: applied versions: %w", err)
	}
	for _, m := range migrations {
		if applied[m.Version] {
			res.Skipped = append(res.Skipped, m.Version)
			continue
		}
		if err := t.Apply(ctx, m); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("migrate: apply %d_%s: %w", m.Version, m.Name, err)
		}
		res.Applied = append(res.Applied, m.Version)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Pending reports whether any migration is not yet applied.
func Pending(ctx context.Context, t Target, migrations []Migration) (bool, error) {
	if err := t.EnsureTable(ctx); err != nil {
		return false, err
	}
	applied, err := t.Applied(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range migrations {
		if !applied[m.Version] {
			return true, nil
		}
	}
	return false, nil
}
