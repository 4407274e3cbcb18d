// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pgsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/lib/pq"

	"github.com/multigres/pgdriver/backend"
	"github.com/multigres/pgdriver/log"
)

// conn implements backend.Conn over a *sql.DB pinned to exactly one
// physical connection, matching executor.Executor's sql.Open/Ping pair
// but capped to one conn since pgdriver's Client already owns exclusive
// use of it (spec.md section 2: one Backend per Client, no pooling
// underneath pgdriver's own pooling).
type conn struct {
	dsn    string
	logger log.Logger

	db *sql.DB

	mu      sync.Mutex
	parsers map[int]map[string]backend.TypeParser
}

// Connect opens and pings the single-connection *sql.DB.
func (c *conn) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", c.dsn)
	if err != nil {
		return fmt.Errorf("pgsql: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("pgsql: ping: %w", err)
	}

	c.db = db
	return nil
}

// Query executes sql, dispatching to the select or exec path depending on
// the last statement in a (possibly multi-statement, semicolon-joined)
// blob, the same isSelect sniffing executeQuery uses, generalized to look
// at the statement lib/pq will actually report results for.
func (c *conn) Query(ctx context.Context, query string) (backend.Result, error) {
	if isSelectLike(lastNonEmptyStatement(query)) {
		return c.querySelect(ctx, query)
	}
	return c.queryExec(ctx, query)
}

func (c *conn) querySelect(ctx context.Context, query string) (backend.Result, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return backend.Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return backend.Result{}, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return backend.Result{}, err
	}

	scanValues := make([]any, len(columns))
	scanPointers := make([]any, len(columns))
	for i := range scanValues {
		scanPointers[i] = &scanValues[i]
	}

	var out []backend.Row
	for rows.Next() {
		if err := rows.Scan(scanPointers...); err != nil {
			return backend.Result{}, err
		}
		row := make(backend.Row, len(columns))
		for i, col := range columns {
			row[col] = c.decode(columnTypes[i], scanValues[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return backend.Result{}, err
	}

	return backend.Result{Rows: out, Count: int64(len(out))}, nil
}

func (c *conn) queryExec(ctx context.Context, query string) (backend.Result, error) {
	res, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return backend.Result{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some statements (CREATE TABLE, BEGIN, COMMIT...) don't support
		// RowsAffected; that's not a query failure.
		n = 0
	}
	return backend.Result{Count: n}, nil
}

// decode applies an installed type parser when one matches the column's
// DatabaseTypeName, falling back to the driver-decoded value otherwise.
func (c *conn) decode(ct *sql.ColumnType, v any) any {
	c.mu.Lock()
	byFormat := c.parsers[oidForTypeName(ct.DatabaseTypeName())]
	c.mu.Unlock()
	if byFormat == nil {
		return v
	}
	parser, ok := byFormat["text"]
	if !ok {
		return v
	}
	raw, ok := v.([]byte)
	if !ok {
		raw = []byte(fmt.Sprintf("%v", v))
	}
	decoded, err := parser(raw)
	if err != nil {
		return v
	}
	return decoded
}

// End releases the single connection.
func (c *conn) End() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SetTypeParser registers parser for oid/format, matched back against
// columns at decode time by DatabaseTypeName.
func (c *conn) SetTypeParser(oid int, format string, parser backend.TypeParser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parsers == nil {
		c.parsers = make(map[int]map[string]backend.TypeParser)
	}
	if c.parsers[oid] == nil {
		c.parsers[oid] = make(map[string]backend.TypeParser)
	}
	c.parsers[oid][format] = parser
	return nil
}

// oidForTypeName reverse-looks-up a symbolic type name (as lib/pq's
// DatabaseTypeName reports it, e.g. "JSONB") back to its well-known OID.
func oidForTypeName(name string) int {
	oid, ok := wellKnownOIDs[strings.ToUpper(name)]
	if !ok {
		return -1
	}
	return oid
}

func isSelectLike(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	switch {
	case strings.HasPrefix(upper, "SELECT"),
		strings.HasPrefix(upper, "WITH"),
		strings.HasPrefix(upper, "SHOW"),
		strings.HasPrefix(upper, "EXPLAIN"),
		strings.HasPrefix(upper, "TABLE"):
		return true
	default:
		return false
	}
}

// lastNonEmptyStatement returns the last semicolon-delimited, non-blank
// statement in blob. A Client's committed/rolled-back SQL is always
// multiple statements joined this way (lazy BEGIN prefix, then the
// caller's query, then COMMIT/ROLLBACK); only the last one determines
// whether lib/pq's simple query protocol will hand back a row set.
func lastNonEmptyStatement(blob string) string {
	parts := strings.Split(blob, ";")
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}
