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

// workItem is one unit of admitted work: either a plain query (isBegin
// false, resp used) or a transaction-open request (isBegin true,
// beginResp used). A nil qs on the source's queue is this repo's
// isBegin == true.
type workItem struct {
	ctx     context.Context
	sql     string
	isBegin bool

	resp      chan opResult
	beginResp chan beginOutcome
}

// opResult is the outcome of a plain query or a Tx operation.
type opResult struct {
	result Result
	err    error
}

// beginOutcome is the outcome of a begin request.
type beginOutcome struct {
	tx  *Tx
	err error
}

// txOpKind distinguishes the three operations a live Tx can send to the
// owner goroutine.
type txOpKind int

const (
	txQuery txOpKind = iota
	txCommit
	txRollback
)

// Command types sent over Driver.cmdCh. Only the owner goroutine
// (Driver.run) ever reads these or touches the state they reference.
type (
	startCmd struct {
		resp chan error
	}

	stopCmd struct {
		resp chan error
	}

	workCmd struct {
		item *workItem
	}

	txOpCmd struct {
		client *Client
		txID   int64
		kind   txOpKind
		ctx    context.Context
		sql    string
		hasSQL bool
		resp   chan opResult
	}

	clientCreatedCmd struct {
		conn backend.Conn
		err  error
	}

	queryDoneCmd struct {
		client *Client
		result backend.Result
		err    error
		resp   chan opResult
	}
)

// run is the Driver's owner goroutine: the sole mutator of status,
// counters, the idle pool, and the work queue (spec.md section 5). It
// exits only once the Driver reaches StatusStopped, at which point every
// future public call observes d.done closed and fails fast with a
// DriverStateError instead of reaching this loop.
func (d *Driver) run() {
	defer close(d.done)
	for cmd := range d.cmdCh {
		if d.dispatch(cmd) {
			return
		}
	}
}

func (d *Driver) dispatch(cmd any) (exit bool) {
	switch c := cmd.(type) {
	case *startCmd:
		d.handleStart(c)
		return false
	case *stopCmd:
		return d.handleStop(c)
	case *workCmd:
		d.handleWork(c.item)
		return false
	case *txOpCmd:
		return d.handleTxOp(c)
	case *clientCreatedCmd:
		return d.handleClientCreated(c)
	case *queryDoneCmd:
		return d.handleQueryDone(c)
	default:
		return false
	}
}

func (d *Driver) handleStart(c *startCmd) {
	st := Status(d.status.Load())
	if st != StatusPending {
		c.resp <- newDriverStateError("start", st)
		return
	}
	d.status.Store(int32(StatusRunning))
	c.resp <- nil
}

func (d *Driver) handleStop(c *stopCmd) bool {
	st := Status(d.status.Load())
	if st != StatusRunning || d.pendingStop != nil {
		c.resp <- newDriverStateError("stop", st)
		return false
	}
	d.status.Store(int32(StatusStopping))
	if d.clientsActive == 0 {
		d.destroyPool()
		d.status.Store(int32(StatusStopped))
		c.resp <- nil
		return true
	}
	d.pendingStop = c.resp
	return false
}

// handleWork implements spec.md section 4.1's top-level query/begin
// admission: an idle Client is served immediately; otherwise the item is
// queued and scheduling is (re)triggered. Only status running admits new
// work; pending/stopping/stopped all reject it immediately.
func (d *Driver) handleWork(item *workItem) {
	if st := Status(d.status.Load()); st != StatusRunning {
		err := newDriverStateError(workItemOpName(item), st)
		if item.isBegin {
			item.beginResp <- beginOutcome{err: err}
		} else {
			item.resp <- opResult{err: err}
		}
		return
	}
	if !d.idle.IsEmpty() {
		c, _ := d.idle.Pop()
		c.pooled = false
		d.clientsActive++
		d.dispatchWorkItem(c, item)
		return
	}
	d.queue.PushBack(item)
	d.scheduleWork()
}

// scheduleWork implements the scheduling algorithm of spec.md section
// 4.1: drain idle-client/queued-item pairs, then, if the queue still has
// work and there is room under PoolMax, request exactly one new Client
// and stop (the newly created Client drives further scheduling itself
// once it reports back via clientCreatedCmd).
func (d *Driver) scheduleWork() {
	for {
		if d.queue.Len() == 0 {
			return
		}
		if !d.idle.IsEmpty() {
			c, _ := d.idle.Pop()
			c.pooled = false
			d.clientsActive++
			item, _ := d.queue.PopFront()
			d.dispatchWorkItem(c, item)
			continue
		}
		if d.clientsCount < d.cfg.PoolMax {
			d.clientsCount++
			d.createClientAsync()
		}
		return
	}
}

// dispatchWorkItem hands a Client (just taken active) either a plain
// query or a begin request.
func (d *Driver) dispatchWorkItem(c *Client, item *workItem) {
	if item.isBegin {
		tx, err := d.beginOnClient(c)
		item.beginResp <- beginOutcome{tx: tx, err: err}
		return
	}
	c.pendingReturnToPool = true
	d.runQuery(c, item.ctx, item.sql, item.resp)
}

// beginOnClient implements Client.begin (spec.md section 4.2). A Client
// taken from the idle pool or freshly created always has txID == -1, so
// the "already in a transaction" branch only guards against internal
// misuse; it is never reachable from the public API.
func (d *Driver) beginOnClient(c *Client) (*Tx, error) {
	if c.txID != -1 {
		d.releaseToIdle(c)
		d.scheduleWork()
		d.checkStopped()
		return nil, newTransactionStateError("begin")
	}
	d.txCounter++
	c.txID = d.txCounter
	c.txState = ""
	return &Tx{driver: d, client: c, id: c.txID}, nil
}

// handleTxOp implements Client.query/commit/rollback while a Tx is open
// (spec.md section 4.2), including the lazy-BEGIN and empty-commit /
// empty-rollback fast paths that never touch the Backend. txID guards
// against a Tx handle used after its transaction already finalized: by
// then the Client may be idle, or even serving a different, newer
// transaction, so the check is against the specific transaction id the
// Tx was issued for, not just "is the Client currently in a
// transaction".
func (d *Driver) handleTxOp(c *txOpCmd) bool {
	cl := c.client
	if cl.txID != c.txID {
		c.resp <- opResult{err: newTransactionStateError(txOpName(c.kind))}
		return false
	}
	switch c.kind {
	case txQuery:
		sql := c.sql
		if cl.txState == "" {
			sql = "BEGIN;\n" + sql
			cl.txState = "PENDING"
		}
		cl.pendingReturnToPool = false
		d.runQuery(cl, c.ctx, sql, c.resp)
		return false

	case txCommit:
		if cl.txState == "" && !c.hasSQL {
			cl.txID = -1
			d.releaseToIdle(cl)
			c.resp <- opResult{}
			d.scheduleWork()
			return d.checkStopped()
		}
		var sql string
		switch {
		case cl.txState == "" && c.hasSQL:
			sql = "BEGIN;\n" + c.sql + "\nCOMMIT;"
		case cl.txState != "" && c.hasSQL:
			sql = c.sql + "\nCOMMIT;"
		default:
			sql = "COMMIT;"
		}
		cl.txState = "COMMIT"
		cl.pendingReturnToPool = true
		d.runQuery(cl, c.ctx, sql, c.resp)
		return false

	case txRollback:
		if cl.txState == "" {
			cl.txID = -1
			d.releaseToIdle(cl)
			c.resp <- opResult{}
			d.scheduleWork()
			return d.checkStopped()
		}
		cl.txState = "ROLLBACK"
		cl.pendingReturnToPool = true
		d.runQuery(cl, c.ctx, "ROLLBACK;", c.resp)
		return false

	default:
		return false
	}
}

// createClientAsync spawns the Backend connect call on its own goroutine
// so the owner loop is never blocked on network I/O, then reports back
// over cmdCh (spec.md section 5's "suspension point").
func (d *Driver) createClientAsync() {
	go func() {
		ctx := context.Background()
		conn, err := d.factory(ctx)
		if err == nil {
			err = conn.Connect(ctx)
		}
		d.cmdCh <- &clientCreatedCmd{conn: conn, err: err}
	}()
}

// handleClientCreated implements spec.md section 4.1's creation and
// failure-budget logic, resolving the terminal case per SPEC_FULL.md
// section 9 (option (i): fail all queued work, transition to stopped).
func (d *Driver) handleClientCreated(c *clientCreatedCmd) bool {
	if c.err != nil {
		d.clientsCount--
		d.failuresCount++
		d.cfg.Logger.Error(context.Background(), "client creation failed", "error", c.err)

		if d.clientsCount > 0 {
			return false
		}
		if d.failuresCount < d.cfg.FailuresMaximum {
			d.scheduleWork()
			return false
		}
		d.failAllQueued(wrapBackendError("", c.err))
		d.destroyPool()
		d.status.Store(int32(StatusStopped))
		if d.pendingStop != nil {
			d.pendingStop <- nil
			d.pendingStop = nil
		}
		return true
	}

	cl := &Client{conn: c.conn, txID: -1}
	d.clientsActive++
	if d.queue.Len() > 0 {
		item, _ := d.queue.PopFront()
		d.dispatchWorkItem(cl, item)
		return d.checkStopped()
	}
	cl.pooled = true
	d.clientsActive--
	d.idle.Push(cl)
	return d.checkStopped()
}

// handleQueryDone implements the per-Client dispatch/report rules and
// the generic "releasing a Client" algorithm of spec.md section 4.1.
func (d *Driver) handleQueryDone(c *queryDoneCmd) bool {
	cl := c.client
	if c.err != nil {
		d.cfg.Logger.Error(context.Background(), "backend query failed", "sql", cl.lastQuery, "error", c.err)
		cl.failed = true
		c.resp <- opResult{err: wrapBackendError(cl.lastQuery, c.err)}
	} else {
		if d.cfg.DebugQueries {
			d.cfg.Logger.Silly(context.Background(), "query executed", "sql", cl.lastQuery)
		}
		if d.cfg.DebugResults {
			d.cfg.Logger.Silly(context.Background(), "query result", "rows", c.result.Rows, "count", c.result.Count)
		}
		c.resp <- opResult{result: toResult(c.result)}
	}

	if cl.failed {
		d.destroyClient(cl)
	} else if cl.pendingReturnToPool {
		d.releaseToIdle(cl)
	}
	cl.pendingReturnToPool = false

	d.scheduleWork()
	return d.checkStopped()
}

// runQuery dispatches sql to cl's Backend connection on its own
// goroutine, reporting completion back to the owner over cmdCh.
func (d *Driver) runQuery(cl *Client, ctx context.Context, sql string, resp chan opResult) {
	cl.lastQuery = sql
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		result, err := cl.conn.Query(ctx, sql)
		d.cmdCh <- &queryDoneCmd{client: cl, result: result, err: err, resp: resp}
	}()
}

// releaseToIdle resets cl's transaction fields and returns it to the
// idle pool, per the "Releasing a Client" algorithm's non-failed branch.
func (d *Driver) releaseToIdle(cl *Client) {
	cl.txID = -1
	cl.txState = ""
	cl.pooled = true
	cl.lastQuery = ""
	d.clientsActive--
	d.idle.Push(cl)
}

// destroyClient implements the failed branch of "Releasing a Client":
// both counters decrement and the Backend connection is released.
func (d *Driver) destroyClient(cl *Client) {
	d.clientsCount--
	d.clientsActive--
	if err := cl.conn.End(); err != nil {
		d.cfg.Logger.Error(context.Background(), "closing backend connection failed", "error", err)
	}
}

// destroyPool empties the idle pool, ending every Backend connection in
// it. Called once, on the transition into StatusStopped.
func (d *Driver) destroyPool() {
	d.idle.Drain(func(cl *Client) {
		if err := cl.conn.End(); err != nil {
			d.cfg.Logger.Error(context.Background(), "closing backend connection failed", "error", err)
		}
	})
}

// failAllQueued drains the work queue, delivering err to every pending
// caller. Used only by the terminal failure-budget path.
func (d *Driver) failAllQueued(err error) {
	d.queue.Drain(func(item *workItem) {
		if item.isBegin {
			item.beginResp <- beginOutcome{err: err}
		} else {
			item.resp <- opResult{err: err}
		}
	})
}

// checkStopped implements the "stopping -> stopped" transition: it fires
// exactly once, when the last active Client is released while the
// Driver is stopping.
func (d *Driver) checkStopped() bool {
	if Status(d.status.Load()) != StatusStopping || d.clientsActive != 0 {
		return false
	}
	d.destroyPool()
	d.status.Store(int32(StatusStopped))
	if d.pendingStop != nil {
		d.pendingStop <- nil
		d.pendingStop = nil
	}
	return true
}

func toResult(r backend.Result) Result {
	return Result{Rows: r.Rows, Count: r.Count}
}

func workItemOpName(item *workItem) string {
	if item.isBegin {
		return "begin"
	}
	return "query"
}

func txOpName(kind txOpKind) string {
	switch kind {
	case txQuery:
		return "query"
	case txCommit:
		return "commit"
	case txRollback:
		return "rollback"
	default:
		return "tx"
	}
}
