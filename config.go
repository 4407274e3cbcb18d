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
	"regexp"

	"github.com/mitchellh/mapstructure"

	"github.com/multigres/pgdriver/backend"
	"github.com/multigres/pgdriver/compiler"
	"github.com/multigres/pgdriver/dialect"
	"github.com/multigres/pgdriver/log"
)

// engineNamePattern is spec.md section 6's required shape for an engine
// tag: a valid Go/C-style lowercase identifier.
var engineNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// TypeParserSpec configures a single decoder for a column type, by
// integer OID or by symbolic name (e.g. "JSONB"), resolved against the
// chosen dialect's well-known table at normalization time.
type TypeParserSpec struct {
	Type   any    `mapstructure:"type"`
	Format string `mapstructure:"format"`
	Parser backend.TypeParser
}

// Config is the Driver's full configuration surface, corresponding to
// spec.md section 6's construction options. Zero-value fields take the
// documented defaults during Normalize.
type Config struct {
	// Engine selects the dialect.Adapter under which the connection
	// lives. Defaults to "pgsql".
	Engine string `mapstructure:"engine"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// PoolMin/PoolMax bound the number of Clients the Driver may hold
	// concurrently (idle + active), matching spec.md section 6's
	// minConnections (default 0) / maxConnections (default 20). PoolMin
	// is recorded but, per spec.md section 3, never enforced by the core.
	PoolMin int `mapstructure:"minConnections"`
	PoolMax int `mapstructure:"maxConnections"`

	// FailuresMaximum bounds connection-establishment failures: once the
	// failure count reaches it while the Driver holds no Clients, the
	// Driver gives up entirely (spec.md section 4.1). The count is never
	// reset. Defaults to 20, per spec.md section 6's maximumFailures.
	FailuresMaximum int `mapstructure:"maximumFailures"`

	// Compiler names the compiler.Builder to use: "identity" (default) or
	// "xql". "xql" requires CompilerBuilder to be set.
	Compiler string `mapstructure:"compiler"`
	// CompilerBuilder is set programmatically by the hosting application,
	// never decoded from a settings map: mapstructure has no JSON-like
	// interface-value decoding to hang it off of.
	CompilerBuilder compiler.Builder `mapstructure:"-"`

	// TypeParsers installs custom decoders, resolved against the chosen
	// dialect at normalize time. Named pgTypeParsers in spec.md section 6
	// since it is, in the general model, a dialect-specific key.
	TypeParsers []TypeParserSpec `mapstructure:"pgTypeParsers"`

	// Logger receives Error/Silly diagnostics. Defaults to log.Noop.
	Logger log.Logger `mapstructure:"-"`

	// DebugQueries/DebugResults enable Silly-level logging of every
	// dispatched statement and/or result set.
	DebugQueries bool `mapstructure:"debugQueries"`
	DebugResults bool `mapstructure:"debugResults"`

	// Backend, if set, is used instead of the dialect adapter's default
	// factory (spec.md section 6's "backend" key) — the adapter is still
	// consulted for type-parser OID resolution, but never asked to dial
	// a real connection. Tests are the expected caller: a fake in-memory
	// backend.Factory lets the pool/scheduling/transaction logic run
	// without a live PostgreSQL server.
	Backend backend.Factory `mapstructure:"-"`
}

// DecodeConfig decodes a generic settings map into a Config using
// mapstructure, mirroring viperutil's internal decode convention. This is
// the integration point for a hosting application's own config/CLI
// layer (out of scope here per spec.md section 1): it hands pgdriver a
// plain map, never a flag set or file path.
func DecodeConfig(raw map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, wrapConfigurationError("building config decoder", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, wrapConfigurationError("decoding config", err)
	}
	return cfg, nil
}

// normalized is a Config after defaulting and validation, plus the
// resolved dialect.Adapter and compiler.Builder it will run with.
type normalized struct {
	Config
	adapter  dialect.Adapter
	builder  compiler.Builder
	resolved []dialect.ResolvedTypeParser
}

// normalize defaults, validates, and resolves cfg. It is the single
// place ConfigurationError can originate from Driver construction.
func (cfg Config) normalize() (normalized, error) {
	out := cfg

	if out.Engine == "" {
		out.Engine = "pgsql"
	}
	if !engineNamePattern.MatchString(out.Engine) {
		return normalized{}, newConfigurationError("invalid engine name \"" + out.Engine + "\"")
	}
	adapter, ok := dialect.Lookup(out.Engine)
	if !ok {
		return normalized{}, newConfigurationError("unknown engine \"" + out.Engine + "\"")
	}

	if out.PoolMax <= 0 {
		out.PoolMax = 20
	}
	if out.PoolMin < 0 {
		return normalized{}, newConfigurationError("minConnections must not be negative")
	}
	if out.PoolMin > out.PoolMax {
		return normalized{}, newConfigurationError("minConnections must not exceed maxConnections")
	}

	if out.FailuresMaximum <= 0 {
		out.FailuresMaximum = 20
	}

	var builder compiler.Builder
	switch out.Compiler {
	case "", "identity":
		builder = compiler.Identity{}
	case "xql":
		if out.CompilerBuilder == nil {
			return normalized{}, newConfigurationError("compiler \"xql\" requires Config.CompilerBuilder to be set")
		}
		builder = out.CompilerBuilder
	default:
		return normalized{}, newConfigurationError("unknown compiler \"" + out.Compiler + "\"")
	}

	specs := make([]dialect.TypeParserConfig, len(out.TypeParsers))
	for i, tp := range out.TypeParsers {
		specs[i] = dialect.TypeParserConfig{Type: tp.Type, Format: tp.Format, Parser: tp.Parser}
	}
	resolved, err := adapter.ResolveTypeParsers(specs)
	if err != nil {
		return normalized{}, wrapConfigurationError("resolving type parsers", err)
	}

	if out.Logger == nil {
		out.Logger = log.Noop{}
	}

	return normalized{Config: out, adapter: adapter, builder: builder, resolved: resolved}, nil
}
