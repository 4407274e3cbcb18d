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

package idlestack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackLIFOOrder(t *testing.T) {
	var s Stack[int]
	require.True(t, s.IsEmpty())

	s.Push(1)
	s.Push(2)
	s.Push(3)
	require.Equal(t, 3, s.Len())

	v, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, 3, v)

	v, ok = s.Pop()
	require.True(t, ok)
	require.Equal(t, 2, v)

	v, ok = s.Pop()
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = s.Pop()
	require.False(t, ok)
	require.True(t, s.IsEmpty())
}

func TestStackDrain(t *testing.T) {
	var s Stack[string]
	s.Push("a")
	s.Push("b")
	s.Push("c")

	var drained []string
	s.Drain(func(v string) { drained = append(drained, v) })
	require.Equal(t, []string{"c", "b", "a"}, drained)
	require.True(t, s.IsEmpty())
}
