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

// Package dialect is pgdriver's engine registry: the compile-time
// replacement for the source's dynamic require(engine) named in spec.md
// section 6. Concrete dialects (dialect/pgsql) register themselves under
// an engine tag via an init() side-effect import, the same convention
// database/sql drivers use for themselves.
package dialect

import (
	"sync"

	"github.com/multigres/pgdriver/backend"
	"github.com/multigres/pgdriver/log"
)

// ConnParams are the connection parameters spec.md section 3 lists on the
// Driver: host, port, username, password, database.
type ConnParams struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// TypeParserConfig is one entry of the `pgTypeParsers` configuration list
// from spec.md section 6, before OID normalization. Type may be an int
// OID or a symbolic type name such as "JSONB".
type TypeParserConfig struct {
	Type   any
	Format string
	Parser backend.TypeParser
}

// ResolvedTypeParser is a TypeParserConfig after OID normalization.
type ResolvedTypeParser struct {
	OID    int
	Format string
	Parser backend.TypeParser
}

// Adapter is the "thin layer over Driver" named in spec.md section 4.3:
// it knows how to build a connection URL, how to resolve this dialect's
// symbolic OID names, and how to construct a backend.Factory wired to
// those two things.
type Adapter interface {
	// ConnectionURL builds the dialect's connection URL from params.
	ConnectionURL(params ConnParams) string

	// ResolveTypeParsers turns symbolic/integer OID specs into resolved
	// ones, failing with a *pgdriver.ConfigurationError (returned as a
	// plain error to avoid an import cycle) for unknown symbolic names.
	ResolveTypeParsers(specs []TypeParserConfig) ([]ResolvedTypeParser, error)

	// NewFactory builds a backend.Factory bound to params and resolved,
	// using logger for any connection-level diagnostics.
	NewFactory(params ConnParams, resolved []ResolvedTypeParser, logger log.Logger) backend.Factory
}

var (
	mu       sync.RWMutex
	adapters = map[string]func() Adapter{}
)

// Register makes an Adapter constructor available under tag. Intended to
// be called from a dialect package's init().
func Register(tag string, ctor func() Adapter) {
	mu.Lock()
	defer mu.Unlock()
	adapters[tag] = ctor
}

// Lookup resolves tag to a fresh Adapter instance, if registered.
func Lookup(tag string) (Adapter, bool) {
	mu.RLock()
	ctor, ok := adapters[tag]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(), true
}
