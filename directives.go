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

import (
	"regexp"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/pruner-formatter/pruner/internal/luapattern"
)

// RangeOffset is four signed deltas applied additively to a Range's
// points; a byte offset is then re-derived from source text.
type RangeOffset struct {
	StartRow, StartCol, EndRow, EndCol int64
}

// TrimSpec controls which ends of a byte window get whitespace trimmed,
// and whether that trim is linewise (drop whole blank lines) or charwise
// (drop individual whitespace bytes).
type TrimSpec struct {
	StartLinewise, StartCharwise bool
	EndLinewise, EndCharwise     bool
}

// defaultTrimSpec is installed by the single-argument "#trim!" form: trim
// trailing whitespace-only lines only.
func defaultTrimSpec() TrimSpec {
	return TrimSpec{EndLinewise: true}
}

// GsubRule is a compiled Lua-pattern regex plus its Go-flavored
// replacement template ("$1".."$9", "$$").
type GsubRule struct {
	Regex       *regexp.Regexp
	Replacement string
}

// predicateArgKind distinguishes a query-predicate argument that names a
// capture from one that's a plain string literal.
type predicateArgKind int

const (
	argCapture predicateArgKind = iota
	argString
)

type predicateArg struct {
	kind    predicateArgKind
	capture uint32
	str     string
}

// predicate is a single "#operator! args..." clause attached to a query
// pattern, flattened out of the tree-sitter-style predicate-step vocabulary.
type predicate struct {
	operator string
	args     []predicateArg
}

// predicatesForPattern flattens a query's raw predicate steps for one
// pattern into the predicate/predicateArg vocabulary above. Grammars we
// don't understand (custom predicates with no recognized operator) pass
// through untouched; collectors below simply ignore operators they don't
// recognize.
func predicatesForPattern(q *sitter.Query, patternIndex uint32) []predicate {
	var out []predicate
	for _, steps := range q.PredicatesForPattern(patternIndex) {
		if len(steps) == 0 {
			continue
		}
		p := predicate{operator: q.StringValueForId(steps[0].ValueId)}
		for _, s := range steps[1:] {
			switch s.Type {
			case sitter.QueryPredicateStepTypeCapture:
				p.args = append(p.args, predicateArg{kind: argCapture, capture: s.ValueId})
			case sitter.QueryPredicateStepTypeString:
				p.args = append(p.args, predicateArg{kind: argString, str: q.StringValueForId(s.ValueId)})
			}
		}
		out = append(out, p)
	}
	return out
}

// patternProperties holds the "#set! key value" / "#set! key" properties
// attached to a pattern: injection.language, injection.combined,
// pruner.injection.indented.
type patternProperties map[string]string

func (p patternProperties) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p patternProperties) get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

func collectProperties(preds []predicate) patternProperties {
	props := patternProperties{}
	for _, pr := range preds {
		if pr.operator != "set!" {
			continue
		}
		switch len(pr.args) {
		case 1:
			if pr.args[0].kind == argString {
				props[pr.args[0].str] = ""
			}
		case 2:
			if pr.args[0].kind == argString && pr.args[1].kind == argString {
				props[pr.args[0].str] = pr.args[1].str
			}
		}
	}
	return props
}

// directiveTables is the per-pattern cache of the four directive
// predicates, built once per pattern and reused across all of its matches.
type directiveTables struct {
	offsets map[uint32]RangeOffset
	escapes map[uint32]map[string]struct{}
	gsubs   map[uint32][]GsubRule
	trims   map[uint32]TrimSpec
}

func collectDirectiveTables(preds []predicate) directiveTables {
	return directiveTables{
		offsets: collectOffsets(preds),
		escapes: collectEscapes(preds),
		gsubs:   collectGsubs(preds),
		trims:   collectTrims(preds),
	}
}

// collectOffsets parses "#offset! @capture r0 c0 r1 c1". Malformed
// invocations (wrong arity, non-integer args) are dropped.
func collectOffsets(preds []predicate) map[uint32]RangeOffset {
	out := map[uint32]RangeOffset{}
	for _, pr := range preds {
		if pr.operator != "offset!" || len(pr.args) != 5 {
			continue
		}
		if pr.args[0].kind != argCapture {
			continue
		}
		ints := make([]int64, 4)
		ok := true
		for i, a := range pr.args[1:] {
			if a.kind != argString {
				ok = false
				break
			}
			v, err := strconv.ParseInt(a.str, 10, 64)
			if err != nil {
				ok = false
				break
			}
			ints[i] = v
		}
		if !ok {
			continue
		}
		out[pr.args[0].capture] = RangeOffset{
			StartRow: ints[0],
			StartCol: ints[1],
			EndRow:   ints[2],
			EndCol:   ints[3],
		}
	}
	return out
}

// collectEscapes parses "#escape! @capture s1 s2 ...", unioning strings
// into that capture's escape-char set across repeated directives.
func collectEscapes(preds []predicate) map[uint32]map[string]struct{} {
	out := map[uint32]map[string]struct{}{}
	for _, pr := range preds {
		if pr.operator != "escape!" || len(pr.args) < 2 {
			continue
		}
		if pr.args[0].kind != argCapture {
			continue
		}
		ok := true
		for _, a := range pr.args[1:] {
			if a.kind != argString {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		set := out[pr.args[0].capture]
		if set == nil {
			set = map[string]struct{}{}
			out[pr.args[0].capture] = set
		}
		for _, a := range pr.args[1:] {
			set[a.str] = struct{}{}
		}
	}
	return out
}

// collectGsubs parses "#gsub! @capture pattern replacement". Lua-pattern
// compile failures drop the single directive, not the whole match.
func collectGsubs(preds []predicate) map[uint32][]GsubRule {
	out := map[uint32][]GsubRule{}
	for _, pr := range preds {
		if pr.operator != "gsub!" || len(pr.args) != 3 {
			continue
		}
		if pr.args[0].kind != argCapture || pr.args[1].kind != argString || pr.args[2].kind != argString {
			continue
		}
		reSrc, err := luapattern.Translate(pr.args[1].str)
		if err != nil {
			logWarn("pruner: dropping gsub! directive, pattern %q: %v", pr.args[1].str, err)
			continue
		}
		re, err := regexp.Compile(reSrc)
		if err != nil {
			logWarn("pruner: dropping gsub! directive, compiled regex %q: %v", reSrc, err)
			continue
		}
		rule := GsubRule{
			Regex:       re,
			Replacement: luapattern.TranslateReplacement(pr.args[2].str),
		}
		out[pr.args[0].capture] = append(out[pr.args[0].capture], rule)
	}
	return out
}

// collectTrims parses both the 1-arg and 5-arg "#trim!" forms.
func collectTrims(preds []predicate) map[uint32]TrimSpec {
	out := map[uint32]TrimSpec{}
	for _, pr := range preds {
		if pr.operator != "trim!" {
			continue
		}
		switch len(pr.args) {
		case 1:
			if pr.args[0].kind != argCapture {
				continue
			}
			out[pr.args[0].capture] = defaultTrimSpec()
		case 5:
			if pr.args[0].kind != argCapture {
				continue
			}
			flags := make([]bool, 4)
			ok := true
			for i, a := range pr.args[1:] {
				if a.kind != argString {
					ok = false
					break
				}
				switch a.str {
				case "0":
					flags[i] = false
				case "1":
					flags[i] = true
				default:
					ok = false
				}
				if !ok {
					break
				}
			}
			if !ok {
				continue
			}
			out[pr.args[0].capture] = TrimSpec{
				StartLinewise: flags[0],
				StartCharwise: flags[1],
				EndLinewise:   flags[2],
				EndCharwise:   flags[3],
			}
		default:
			continue
		}
	}
	return out
}

// applyGsub runs every gsub! rule registered for capture, in declaration
// order, over text.
func applyGsub(gsubs map[uint32][]GsubRule, capture uint32, text string) string {
	rules, ok := gsubs[capture]
	if !ok {
		return text
	}
	out := text
	for _, rule := range rules {
		out = rule.Regex.ReplaceAllString(out, rule.Replacement)
	}
	return out
}
