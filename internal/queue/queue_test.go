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

package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := New[int](2)
	for i := 0; i < 10; i++ {
		q.PushBack(i)
	}
	require.Equal(t, 10, q.Len())

	for i := 0; i < 10; i++ {
		v, ok := q.PopFront()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, 0, q.Len())

	_, ok := q.PopFront()
	require.False(t, ok)
}

func TestQueueInterleavedPushPop(t *testing.T) {
	q := New[string](1)
	q.PushBack("a")
	q.PushBack("b")
	v, ok := q.PopFront()
	require.True(t, ok)
	require.Equal(t, "a", v)

	q.PushBack("c")
	q.PushBack("d")

	var got []string
	for {
		v, ok := q.PopFront()
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, []string{"b", "c", "d"}, got)
}

func TestQueueDrainPreservesOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 5; i++ {
		q.PushBack(i)
	}
	var drained []int
	q.Drain(func(v int) { drained = append(drained, v) })
	require.Equal(t, []int{0, 1, 2, 3, 4}, drained)
	require.Equal(t, 0, q.Len())
}
