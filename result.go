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

// Result is the payload delivered for a successful query. It mirrors the
// source's `{rows, count}` callback argument.
type Result struct {
	// Rows holds one map per returned row, keyed by column name. Empty for
	// statements that return no rows (INSERT/UPDATE/DELETE without RETURNING).
	Rows []map[string]any

	// Count is the number of rows returned (for SELECT-shaped statements)
	// or affected (for INSERT/UPDATE/DELETE).
	Count int64
}
