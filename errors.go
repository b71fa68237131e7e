// Copyright 2024 The Pruner Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pruner

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Err*) at call sites
// so errors.Is keeps working through the formatting recursion.
var (
	// ErrParseFailure means the outer parse of a document returned no tree.
	// Fatal for the whole formatting invocation.
	ErrParseFailure = errors.New("pruner: parse failure")

	// ErrFormatterFailure means an external formatter exited non-zero,
	// returned an empty buffer, or (when configured) wrote to stderr.
	ErrFormatterFailure = errors.New("pruner: formatter failure")

	// ErrConfigError means an alias conflict, malformed config, or
	// malformed profile reference.
	ErrConfigError = errors.New("pruner: config error")
)

// FormatterError names the offending formatter command alongside the
// wrapped ErrFormatterFailure.
type FormatterError struct {
	Cmd    string
	Reason string
}

func (e *FormatterError) Error() string {
	if e.Reason == "" {
		return "pruner: formatter " + e.Cmd + " failed"
	}
	return "pruner: formatter " + e.Cmd + " failed: " + e.Reason
}

func (e *FormatterError) Unwrap() error { return ErrFormatterFailure }

// AliasConflictError names both canonical targets a single alias resolved to.
type AliasConflictError struct {
	Alias  string
	First  string
	Second string
}

func (e *AliasConflictError) Error() string {
	return "pruner: alias " + e.Alias + " maps to both " + e.First + " and " + e.Second
}

func (e *AliasConflictError) Unwrap() error { return ErrConfigError }
