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
	"testing"
)

func TestDefaultTrimSpec(t *testing.T) {
	want := TrimSpec{EndLinewise: true}
	if got := defaultTrimSpec(); got != want {
		t.Errorf("defaultTrimSpec() = %+v, want %+v", got, want)
	}
}

func TestApplyGsubAppliesRulesInOrder(t *testing.T) {
	gsubs := map[uint32][]GsubRule{
		0: {
			{Regex: regexp.MustCompile(`js$`), Replacement: "javascript"},
			{Regex: regexp.MustCompile(`^java`), Replacement: "Java"},
		},
	}
	got := applyGsub(gsubs, 0, "js")
	if got != "Javascript" {
		t.Errorf("applyGsub() = %q, want %q", got, "Javascript")
	}
}

func TestApplyGsubNoRulesForCapture(t *testing.T) {
	gsubs := map[uint32][]GsubRule{}
	if got := applyGsub(gsubs, 3, "unchanged"); got != "unchanged" {
		t.Errorf("applyGsub() = %q, want unchanged", got)
	}
}

func capArg(id uint32) predicateArg { return predicateArg{kind: argCapture, capture: id} }
func strArg(s string) predicateArg  { return predicateArg{kind: argString, str: s} }

func TestCollectOffsetsParsesWellFormed(t *testing.T) {
	preds := []predicate{
		{operator: "offset!", args: []predicateArg{capArg(1), strArg("0"), strArg("1"), strArg("0"), strArg("-1")}},
	}
	out := collectOffsets(preds)
	want := RangeOffset{StartRow: 0, StartCol: 1, EndRow: 0, EndCol: -1}
	if got, ok := out[1]; !ok || got != want {
		t.Errorf("collectOffsets()[1] = %+v, %v, want %+v, true", got, ok, want)
	}
}

func TestCollectOffsetsDropsWrongArity(t *testing.T) {
	preds := []predicate{
		{operator: "offset!", args: []predicateArg{capArg(1), strArg("0"), strArg("1")}},
	}
	if out := collectOffsets(preds); len(out) != 0 {
		t.Errorf("collectOffsets() = %v, want empty", out)
	}
}

func TestCollectOffsetsDropsNonIntegerArgs(t *testing.T) {
	preds := []predicate{
		{operator: "offset!", args: []predicateArg{capArg(1), strArg("x"), strArg("1"), strArg("0"), strArg("-1")}},
	}
	if out := collectOffsets(preds); len(out) != 0 {
		t.Errorf("collectOffsets() = %v, want empty", out)
	}
}

func TestCollectOffsetsDropsNonCaptureFirstArg(t *testing.T) {
	preds := []predicate{
		{operator: "offset!", args: []predicateArg{strArg("not-a-capture"), strArg("0"), strArg("1"), strArg("0"), strArg("-1")}},
	}
	if out := collectOffsets(preds); len(out) != 0 {
		t.Errorf("collectOffsets() = %v, want empty", out)
	}
}

func TestCollectEscapesUnionsAcrossRepeatedDirectives(t *testing.T) {
	preds := []predicate{
		{operator: "escape!", args: []predicateArg{capArg(2), strArg(`\n`)}},
		{operator: "escape!", args: []predicateArg{capArg(2), strArg(`\t`)}},
	}
	out := collectEscapes(preds)
	set, ok := out[2]
	if !ok {
		t.Fatalf("collectEscapes()[2] missing")
	}
	if _, ok := set[`\n`]; !ok {
		t.Errorf("escape set missing \\n")
	}
	if _, ok := set[`\t`]; !ok {
		t.Errorf("escape set missing \\t")
	}
}

func TestCollectEscapesDropsMissingArgs(t *testing.T) {
	preds := []predicate{
		{operator: "escape!", args: []predicateArg{capArg(2)}},
	}
	if out := collectEscapes(preds); len(out) != 0 {
		t.Errorf("collectEscapes() = %v, want empty", out)
	}
}

func TestCollectEscapesDropsNonStringArg(t *testing.T) {
	preds := []predicate{
		{operator: "escape!", args: []predicateArg{capArg(2), capArg(3)}},
	}
	if out := collectEscapes(preds); len(out) != 0 {
		t.Errorf("collectEscapes() = %v, want empty", out)
	}
}

func TestCollectGsubsDropsWrongArity(t *testing.T) {
	preds := []predicate{
		{operator: "gsub!", args: []predicateArg{capArg(0), strArg("pattern")}},
	}
	if out := collectGsubs(preds); len(out) != 0 {
		t.Errorf("collectGsubs() = %v, want empty", out)
	}
}

func TestCollectGsubsDropsBadLuaPattern(t *testing.T) {
	preds := []predicate{
		{operator: "gsub!", args: []predicateArg{capArg(0), strArg("(unbalanced"), strArg("x")}},
	}
	if out := collectGsubs(preds); len(out) != 0 {
		t.Errorf("collectGsubs() = %v, want empty for malformed pattern", out)
	}
}

func TestCollectGsubsKeepsWellFormed(t *testing.T) {
	preds := []predicate{
		{operator: "gsub!", args: []predicateArg{capArg(0), strArg("^js$"), strArg("javascript")}},
	}
	out := collectGsubs(preds)
	rules, ok := out[0]
	if !ok || len(rules) != 1 {
		t.Fatalf("collectGsubs()[0] = %v, %v, want one rule", rules, ok)
	}
	if got := rules[0].Regex.ReplaceAllString("js", rules[0].Replacement); got != "javascript" {
		t.Errorf("compiled rule produced %q, want javascript", got)
	}
}

func TestCollectTrimsSingleArgForm(t *testing.T) {
	preds := []predicate{
		{operator: "trim!", args: []predicateArg{capArg(4)}},
	}
	out := collectTrims(preds)
	if got, ok := out[4]; !ok || got != defaultTrimSpec() {
		t.Errorf("collectTrims()[4] = %+v, %v, want %+v, true", got, ok, defaultTrimSpec())
	}
}

func TestCollectTrimsFiveArgForm(t *testing.T) {
	preds := []predicate{
		{operator: "trim!", args: []predicateArg{capArg(4), strArg("1"), strArg("0"), strArg("1"), strArg("0")}},
	}
	out := collectTrims(preds)
	want := TrimSpec{StartLinewise: true, StartCharwise: false, EndLinewise: true, EndCharwise: false}
	if got, ok := out[4]; !ok || got != want {
		t.Errorf("collectTrims()[4] = %+v, %v, want %+v, true", got, ok, want)
	}
}

func TestCollectTrimsDropsInvalidFlag(t *testing.T) {
	preds := []predicate{
		{operator: "trim!", args: []predicateArg{capArg(4), strArg("yes"), strArg("0"), strArg("1"), strArg("0")}},
	}
	if out := collectTrims(preds); len(out) != 0 {
		t.Errorf("collectTrims() = %v, want empty", out)
	}
}

func TestCollectTrimsDropsWrongArity(t *testing.T) {
	preds := []predicate{
		{operator: "trim!", args: []predicateArg{capArg(4), strArg("1"), strArg("0")}},
	}
	if out := collectTrims(preds); len(out) != 0 {
		t.Errorf("collectTrims() = %v, want empty", out)
	}
}

func TestPatternPropertiesHasAndGet(t *testing.T) {
	props := patternProperties{"injection.language": "go", "injection.combined": ""}
	if !props.has("injection.combined") {
		t.Errorf("has(injection.combined) = false, want true")
	}
	if v, ok := props.get("injection.language"); !ok || v != "go" {
		t.Errorf("get(injection.language) = (%q, %v), want (go, true)", v, ok)
	}
	if _, ok := props.get("missing"); ok {
		t.Errorf("get(missing) ok = true, want false")
	}
}
