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

// Package fakebackend is an in-memory backend.Conn/backend.Factory test
// double: it records every issued statement in arrival order, optionally
// injects latency or failures, and requires no real PostgreSQL server.
package fakebackend

import (
	"context"
	"sync"
	"time"

	"github.com/multigres/pgdriver/backend"
)

// Factory is a backend.Factory whose behavior tests configure before use.
type Factory struct {
	mu sync.Mutex

	// ConnectDelay/ConnectErrs: ConnectErrs[i] (if present) is returned by
	// the i-th Connect call; beyond the slice's length, Connect succeeds.
	ConnectDelay time.Duration
	ConnectErrs  []error

	// QueryDelay is applied before every query completes.
	QueryDelay time.Duration
	// QueryErr, if set, is returned by every query on every connection.
	QueryErr error

	attempts   int
	created    int
	statements []string
}

// New returns a Factory with no injected failures or delay.
func New() *Factory {
	return &Factory{}
}

// Statements returns every SQL statement issued across every connection
// this factory produced, in completion order.
func (f *Factory) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.statements))
	copy(out, f.statements)
	return out
}

// Created reports how many connections were successfully produced.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// AsBackendFactory adapts f to backend.Factory.
func (f *Factory) AsBackendFactory() backend.Factory {
	return func(ctx context.Context) (backend.Conn, error) {
		return &conn{factory: f}, nil
	}
}

type conn struct {
	factory *Factory
}

func (c *conn) Connect(ctx context.Context) error {
	f := c.factory
	f.mu.Lock()
	idx := f.attempts
	f.attempts++
	var err error
	if idx < len(f.ConnectErrs) {
		err = f.ConnectErrs[idx]
	}
	delay := f.ConnectDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	return nil
}

func (c *conn) Query(ctx context.Context, sql string) (backend.Result, error) {
	f := c.factory
	f.mu.Lock()
	delay := f.QueryDelay
	qerr := f.QueryErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if qerr != nil {
		return backend.Result{}, qerr
	}

	f.mu.Lock()
	f.statements = append(f.statements, sql)
	f.mu.Unlock()

	return backend.Result{Rows: nil, Count: 0}, nil
}

func (c *conn) End() error { return nil }

func (c *conn) SetTypeParser(oid int, format string, parser backend.TypeParser) error {
	return backend.ErrUnsupported
}
