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

// Status is the Driver's lifecycle state. Transitions are monotonic:
// pending -> starting -> running -> stopping -> stopped.
type Status int32

const (
	// StatusPending is the initial state of a freshly constructed Driver.
	StatusPending Status = iota
	// StatusStarting exists for data-model fidelity with spec.md's state
	// enumeration; this port never actually parks in it, since Start has
	// no suspension point to pause on (see DESIGN.md).
	StatusStarting
	// StatusRunning accepts Query and Begin calls.
	StatusRunning
	// StatusStopping rejects new work while draining active Clients.
	StatusStopping
	// StatusStopped is terminal: the Driver's owner goroutine has exited.
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
