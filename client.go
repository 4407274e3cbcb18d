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

package pgdriver

import (
	"context"

	"github.com/multigres/pgdriver/backend"
)

// Client wraps one Backend connection and mediates its transaction
// state machine (spec.md section 3/4.2). A Client is owned exclusively
// by the Driver's owner goroutine for its entire life; it is never
// shared between concurrent units of work.
type Client struct {
	conn backend.Conn

	// txID is -1 outside a transaction. txState is "" (OPEN_EMPTY),
	// "PENDING" (OPEN_ACTIVE), "COMMIT", or "ROLLBACK" (FINALIZING).
	txID    int64
	txState string

	failed bool
	pooled bool

	// pendingReturnToPool marks a unit of work that should push the
	// Client back to the idle pool on completion: plain standalone
	// queries, commits, and rollbacks. Every query issued through a Tx,
	// the first one included, leaves this false, since the Client stays
	// checked out to its Tx.
	pendingReturnToPool bool

	lastQuery string
}

// Tx is a transaction opened by Driver.Begin, bound to one Client for
// its entire life.
type Tx struct {
	driver *Driver
	client *Client
	id     int64
}

// Query executes q inside tx's transaction. The first call after Begin
// prepends a lazy "BEGIN;\n" to the compiled SQL (spec.md section 4.2);
// subsequent calls do not.
func (tx *Tx) Query(ctx context.Context, q any) (Result, error) {
	sql, err := tx.driver.cfg.builder.Compile(q)
	if err != nil {
		return Result{}, err
	}
	resp := make(chan opResult, 1)
	cmd := &txOpCmd{client: tx.client, txID: tx.id, kind: txQuery, ctx: ctx, sql: sql, resp: resp}
	if !tx.driver.send(cmd) {
		return Result{}, newDriverStateError("query", StatusStopped)
	}
	return tx.driver.waitOp(resp)
}

// Commit finalizes tx. An optional trailing statement q is appended to
// the same round-trip as the COMMIT. If the transaction never emitted
// any SQL and no q is given, nothing is sent to the Backend and Commit
// returns a zero Result.
func (tx *Tx) Commit(ctx context.Context, q ...any) (Result, error) {
	var sql string
	hasSQL := len(q) > 0 && q[0] != nil
	if hasSQL {
		compiled, err := tx.driver.cfg.builder.Compile(q[0])
		if err != nil {
			return Result{}, err
		}
		sql = compiled
	}
	resp := make(chan opResult, 1)
	cmd := &txOpCmd{client: tx.client, txID: tx.id, kind: txCommit, ctx: ctx, sql: sql, hasSQL: hasSQL, resp: resp}
	if !tx.driver.send(cmd) {
		return Result{}, newDriverStateError("commit", StatusStopped)
	}
	return tx.driver.waitOp(resp)
}

// Rollback aborts tx. If the transaction never emitted any SQL, nothing
// is sent to the Backend and Rollback returns a zero Result.
func (tx *Tx) Rollback(ctx context.Context) (Result, error) {
	resp := make(chan opResult, 1)
	cmd := &txOpCmd{client: tx.client, txID: tx.id, kind: txRollback, ctx: ctx, resp: resp}
	if !tx.driver.send(cmd) {
		return Result{}, newDriverStateError("rollback", StatusStopped)
	}
	return tx.driver.waitOp(resp)
}
