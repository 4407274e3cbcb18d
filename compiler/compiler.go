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

// Package compiler holds the pluggable "turn a query value into SQL text"
// capability named in spec.md section 4.1. pgdriver never parses or
// builds SQL itself; that is always delegated here.
package compiler

import "fmt"

// Compileable is a query value that turns itself into SQL text through a
// Compile method. Identity also accepts CompileQuery and fmt.Stringer
// values, which do not satisfy this interface.
type Compileable interface {
	Compile() (string, error)
}

// Builder compiles an arbitrary query value into SQL text. Builder is the
// extension point an `"xql"`-tagged Config.Compiler must implement; see
// DESIGN.md for why no concrete xql-style builder ships in this repo.
type Builder interface {
	Compile(q any) (string, error)
}

// Identity is the default Builder: a string compiles to itself, anything
// satisfying Compileable or exposing CompileQuery is asked directly, a
// fmt.Stringer yields its String(), and any other value is rejected with
// an error. This matches spec.md's "Default is identity
// (String(query))".
type Identity struct{}

// Compile implements Builder.
func (Identity) Compile(q any) (string, error) {
	switch v := q.(type) {
	case string:
		return v, nil
	case Compileable:
		return v.Compile()
	case interface{ CompileQuery() (string, error) }:
		return v.CompileQuery()
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("compiler: value of type %T has no Compile/CompileQuery/String method", q)
	}
}
