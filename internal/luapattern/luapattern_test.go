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

package luapattern

import (
	"regexp"
	"testing"
)

func TestTranslateAndCompile(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		input   string
		match   string
	}{
		{`javascript`, "a javascript b", "javascript"},
		{`%a+`, "  hello2 ", "hello"},
		{`%d+`, "x42y", "42"},
		{`[%w_]+`, "foo_bar!", "foo_bar"},
		{`^%s*(.-)%s*$`, "  trimmed  ", "  trimmed  "},
	} {
		re, err := Translate(tc.pattern)
		if err != nil {
			t.Fatalf("Translate(%q) error: %v", tc.pattern, err)
		}
		compiled, err := regexp.Compile(re)
		if err != nil {
			t.Fatalf("Translate(%q) = %q, did not compile: %v", tc.pattern, re, err)
		}
		got := compiled.FindString(tc.input)
		if got != tc.match {
			t.Errorf("Translate(%q)=%q; FindString(%q) = %q, want %q", tc.pattern, re, tc.input, got, tc.match)
		}
	}
}

func TestTranslateUnsupported(t *testing.T) {
	for _, pattern := range []string{`%f[%w]`, `%bxy`} {
		if _, err := Translate(pattern); err == nil {
			t.Errorf("Translate(%q) expected error, got nil", pattern)
		}
	}
}

func TestTranslateReplacement(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{`%1`, `$1`},
		{`%%`, `%`},
		{`%1-%2`, `$1-$2`},
		{`literal`, `literal`},
		{`cost: $5`, `cost: $$5`},
		{`%x`, `x`},
	} {
		if got := TranslateReplacement(tc.in); got != tc.want {
			t.Errorf("TranslateReplacement(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
