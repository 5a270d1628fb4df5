// Package schema resolves per-table field metadata via DESC queries,
// caching results keyed by table-id under mutex discipline, the way
// explain.Client wraps a *sql.DB for EXPLAIN in the teacher repo.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// Field is one column's declared schema, as read from a DESC row.
type Field struct {
	Name        string
	DeclaredType string
	IsPrimary   bool
}

// unresolvable marks a table whose DESC result could not be reconciled
// with its TABLE_MAP column count; events for it are dropped until a
// later resolution attempt succeeds.
var unresolvable = []Field{}

// Resolver caches DESC-derived field metadata keyed by table-id, with
// its own auxiliary MySQL connection. Per §5, each worker that needs
// DESC lookups owns its own connection — the ingest connection is never
// shared for this purpose.
type Resolver struct {
	db *sql.DB

	mu    sync.Mutex
	cache map[uint64][]Field
}

// NewResolver opens its own connection using dsn (a go-sql-driver/mysql
// data source name) for issuing DESC queries.
func NewResolver(dsn string) (*Resolver, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("schema: open DESC connection: %w", err)
	}
	return &Resolver{db: db, cache: make(map[uint64][]Field)}, nil
}

// Close releases the resolver's connection.
func (r *Resolver) Close() error {
	return r.db.Close()
}

// Resolve returns the cached field list for tableID, querying
// `DESC schema.table` on a cache miss. columnCount is the number of
// columns named in the triggering TABLE_MAP event; if the DESC result's
// length disagrees (or DESC fails), the table is marked unresolvable: an
// empty slice is cached and an error is returned, and later calls return
// the cached empty slice with no error, matching §4.5's
// column-count-mismatch rule.
func (r *Resolver) Resolve(ctx context.Context, tableID uint64, schemaName, tableName string, columnCount int) ([]Field, error) {
	r.mu.Lock()
	cached, ok := r.cache[tableID]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	fields, err := r.describe(ctx, schemaName, tableName)
	if err != nil {
		r.mu.Lock()
		r.cache[tableID] = unresolvable
		r.mu.Unlock()
		return nil, fmt.Errorf("schema: DESC %s.%s: %w", schemaName, tableName, err)
	}

	if len(fields) != columnCount {
		r.mu.Lock()
		r.cache[tableID] = unresolvable
		r.mu.Unlock()
		return nil, fmt.Errorf("schema: DESC %s.%s returned %d columns, TABLE_MAP has %d", schemaName, tableName, len(fields), columnCount)
	}

	r.mu.Lock()
	r.cache[tableID] = fields
	r.mu.Unlock()
	return fields, nil
}

// describe issues `DESC schema.table` and parses each row as
// (name=col0, declared-type=col1, is-pk = col3 starts with "PRI").
func (r *Resolver) describe(ctx context.Context, schemaName, tableName string) ([]Field, error) {
	quoted := fmt.Sprintf("`%s`.`%s`", schemaName, tableName)
	rows, err := r.db.QueryContext(ctx, "DESC "+quoted)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fields []Field
	for rows.Next() {
		var name, declaredType, null, key string
		var def, extra sql.NullString
		if err := rows.Scan(&name, &declaredType, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		fields = append(fields, Field{
			Name:         name,
			DeclaredType: declaredType,
			IsPrimary:    strings.HasPrefix(key, "PRI"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return fields, nil
}

// Invalidate discards the cached entry for tableID, forcing the next
// Resolve call to re-run DESC. Not used by the normal ingest path — the
// cache is never evicted during a session per §4.5 — but available for
// administrative/test use.
func (r *Resolver) Invalidate(tableID uint64) {
	r.mu.Lock()
	delete(r.cache, tableID)
	r.mu.Unlock()
}

// PKNames returns the subset of fields whose IsPrimary is set, or nil
// when there are none (the Canal JSON `pkNames` field is null, not an
// empty array, in that case).
func PKNames(fields []Field) []string {
	var names []string
	for _, f := range fields {
		if f.IsPrimary {
			names = append(names, f.Name)
		}
	}
	return names
}
