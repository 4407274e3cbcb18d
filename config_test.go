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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multigres/pgdriver/compiler"
	_ "github.com/multigres/pgdriver/dialect/pgsql"
)

func TestConfigNormalizeDefaults(t *testing.T) {
	norm, err := Config{}.normalize()
	require.NoError(t, err)
	assert.Equal(t, "pgsql", norm.Engine)
	assert.Equal(t, 20, norm.PoolMax)
	assert.Equal(t, 20, norm.FailuresMaximum)
	assert.Equal(t, compiler.Identity{}, norm.builder)
}

func TestConfigNormalizeUnknownEngine(t *testing.T) {
	_, err := Config{Engine: "nosuchengine"}.normalize()
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestConfigNormalizeInvalidEngineName(t *testing.T) {
	_, err := Config{Engine: "Not-Valid"}.normalize()
	require.Error(t, err)
}

func TestConfigNormalizePoolBounds(t *testing.T) {
	_, err := Config{PoolMin: -1}.normalize()
	require.Error(t, err)

	_, err = Config{PoolMin: 5, PoolMax: 2}.normalize()
	require.Error(t, err)
}

func TestConfigNormalizeXQLRequiresBuilder(t *testing.T) {
	_, err := Config{Compiler: "xql"}.normalize()
	require.Error(t, err)
}

func TestConfigNormalizeUnknownCompiler(t *testing.T) {
	_, err := Config{Compiler: "something-else"}.normalize()
	require.Error(t, err)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]any{
		"engine":          "pgsql",
		"host":            "db.internal",
		"port":            "5432",
		"maxConnections":  5,
		"maximumFailures": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "pgsql", cfg.Engine)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 5, cfg.PoolMax)
	assert.Equal(t, 3, cfg.FailuresMaximum)
}
