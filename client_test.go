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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multigres/pgdriver/internal/fakebackend"

	_ "github.com/multigres/pgdriver/dialect/pgsql"
)

func TestBeginCommitEmptyTransactionEmitsNoSQL(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	res, err := tx.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, fb.Statements())
}

func TestBeginRollbackEmptyTransactionEmitsNoSQL(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	res, err := tx.Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, fb.Statements())
}

func TestBeginQueryCommitEmitsTwoStatements(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.Query(context.Background(), "UPDATE t SET x=1")
	require.NoError(t, err)

	_, err = tx.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BEGIN;\nUPDATE t SET x=1", "COMMIT;"}, fb.Statements())
}

func TestBeginQueryQueryCommitEmitsThreeStatements(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.Query(context.Background(), "X")
	require.NoError(t, err)
	_, err = tx.Query(context.Background(), "Y")
	require.NoError(t, err)

	_, err = tx.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BEGIN;\nX", "Y", "COMMIT;"}, fb.Statements())
}

func TestBeginQueryRollbackEmitsTwoStatements(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.Query(context.Background(), "X")
	require.NoError(t, err)

	_, err = tx.Rollback(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BEGIN;\nX", "ROLLBACK;"}, fb.Statements())
}

func TestCommitWithTrailingQueryImmediatelyAfterBegin(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.Commit(context.Background(), "INSERT INTO t VALUES(1)")
	require.NoError(t, err)

	assert.Equal(t, []string{"BEGIN;\nINSERT INTO t VALUES(1)\nCOMMIT;"}, fb.Statements())
}

func TestCommitOutsideTransactionFails(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	_, err = tx.Commit(context.Background())
	require.NoError(t, err)

	// tx's Client has already returned to idle and reset; a second Commit
	// on the same Tx handle must fail rather than silently re-finalize.
	_, err = tx.Commit(context.Background())
	require.Error(t, err)
	var txErr *TransactionStateError
	require.ErrorAs(t, err, &txErr)
}

func TestClientReturnsToIdlePoolAfterCommit(t *testing.T) {
	fb := fakebackend.New()
	d := newTestDriver(t, fb, func(c *Config) { c.PoolMax = 1 })

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	_, err = tx.Commit(context.Background(), "X")
	require.NoError(t, err)

	// The pool has exactly one Client; a subsequent query must reuse it
	// rather than create a second connection.
	_, err = d.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 1, fb.Created())
}
