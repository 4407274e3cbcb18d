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

// Package pgdriver is a connection pool and query dispatcher sitting in
// front of a pluggable SQL backend. A Driver owns the pool lifecycle,
// admission control, and a FIFO work queue; a Client wraps one
// connection and mediates its transaction state machine. See
// SPEC_FULL.md for the full design.
package pgdriver

import (
	"context"
	"sync/atomic"

	"github.com/multigres/pgdriver/backend"
	"github.com/multigres/pgdriver/dialect"
	"github.com/multigres/pgdriver/internal/idlestack"
	"github.com/multigres/pgdriver/internal/queue"
)

// Driver manages pool lifecycle, admission control, and the work queue
// described in SPEC_FULL.md sections 3-5. All exported methods are safe
// for concurrent use; exactly one owner goroutine (run) mutates every
// field below the cmdCh/done/status line.
type Driver struct {
	cfg     normalized
	factory backend.Factory

	cmdCh chan any
	done  chan struct{}
	status atomic.Int32

	// Touched only by run().
	clientsCount  int
	clientsActive int
	failuresCount int
	idle          *idlestack.Stack[*Client]
	queue         *queue.Queue[*workItem]
	txCounter     int64
	pendingStop   chan error
}

// New constructs a Driver from cfg. Configuration errors (unknown
// engine, unknown compiler, unresolvable type parser names) are
// reported here, eagerly, never once the Driver is running.
func New(cfg Config) (*Driver, error) {
	norm, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	factory := norm.Backend
	if factory == nil {
		params := dialect.ConnParams{
			Host:     norm.Host,
			Port:     norm.Port,
			Username: norm.Username,
			Password: norm.Password,
			Database: norm.Database,
		}
		factory = norm.adapter.NewFactory(params, norm.resolved, norm.Logger)
	}

	d := &Driver{
		cfg:     norm,
		factory: factory,
		cmdCh:   make(chan any),
		done:    make(chan struct{}),
		idle:    &idlestack.Stack[*Client]{},
		queue:   queue.New[*workItem](16),
	}
	d.status.Store(int32(StatusPending))
	go d.run()
	return d, nil
}

// Status reports the Driver's current lifecycle state.
func (d *Driver) Status() Status {
	return Status(d.status.Load())
}

// Dialect reports the configured engine tag (e.g. "pgsql").
func (d *Driver) Dialect() string {
	return d.cfg.Engine
}

// Start transitions the Driver from pending to running. Legal only in
// status pending.
func (d *Driver) Start(ctx context.Context) error {
	resp := make(chan error, 1)
	if !d.send(&startCmd{resp: resp}) {
		return newDriverStateError("start", StatusStopped)
	}
	select {
	case err := <-resp:
		return err
	case <-d.done:
		return newDriverStateError("start", StatusStopped)
	}
}

// Stop begins (or, if no Client is active, completes) an orderly
// shutdown: no new work is admitted, and Stop does not return until
// every active Client has finished its current unit of work.
func (d *Driver) Stop(ctx context.Context) error {
	resp := make(chan error, 1)
	if !d.send(&stopCmd{resp: resp}) {
		return newDriverStateError("stop", StatusStopped)
	}
	select {
	case err := <-resp:
		return err
	case <-d.done:
		return nil
	}
}

// Query compiles q via the configured compiler.Builder and executes it
// as a standalone statement (no transaction). Requires status running.
func (d *Driver) Query(ctx context.Context, q any) (Result, error) {
	sql, err := d.cfg.builder.Compile(q)
	if err != nil {
		return Result{}, err
	}
	resp := make(chan opResult, 1)
	item := &workItem{ctx: ctx, sql: sql, resp: resp}
	if !d.send(&workCmd{item: item}) {
		return Result{}, newDriverStateError("query", StatusStopped)
	}
	return d.waitOp(resp)
}

// Begin opens a transaction on a Client, which is handed to the caller
// for subsequent Tx.Query/Commit/Rollback calls. Requires status
// running.
func (d *Driver) Begin(ctx context.Context) (*Tx, error) {
	resp := make(chan beginOutcome, 1)
	item := &workItem{ctx: ctx, isBegin: true, beginResp: resp}
	if !d.send(&workCmd{item: item}) {
		return nil, newDriverStateError("begin", StatusStopped)
	}
	select {
	case r := <-resp:
		return r.tx, r.err
	case <-d.done:
		return nil, newDriverStateError("begin", StatusStopped)
	}
}

// send delivers cmd to the owner goroutine. It reports false, without
// blocking, if the owner has already exited (Driver reached
// StatusStopped) instead of risking a send on a channel nobody reads.
func (d *Driver) send(cmd any) bool {
	select {
	case d.cmdCh <- cmd:
		return true
	case <-d.done:
		return false
	}
}

// waitOp blocks for resp, unless the owner exits first.
func (d *Driver) waitOp(resp chan opResult) (Result, error) {
	select {
	case r := <-resp:
		return r.result, r.err
	case <-d.done:
		return Result{}, newDriverStateError("operation", StatusStopped)
	}
}
