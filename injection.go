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
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Grammar bundles the pieces the injection extractor (C4) and ignore
// tracker (C3) need: a compiled language, its injection query, and an
// optional ignore query. LoadGrammars in grammar.go builds them;
// ExtractInjections and Format only consume them.
type Grammar struct {
	Name         string
	Language     *sitter.Language
	Injections   *sitter.Query
	PrunerIgnore *sitter.Query
}

// InjectionOpts carries the per-region escape-char set. Two InjectionOpts
// are equal iff their sets are equal.
type InjectionOpts struct {
	EscapeChars map[string]struct{}
}

// Equal reports whether o and other carry the same escape-char set.
func (o InjectionOpts) Equal(other InjectionOpts) bool {
	if len(o.EscapeChars) != len(other.EscapeChars) {
		return false
	}
	for k := range o.EscapeChars {
		if _, ok := other.EscapeChars[k]; !ok {
			return false
		}
	}
	return true
}

// InjectedRegion is a single resolved injection: a language name, its
// byte/point range in the source that produced it, and escape options.
type InjectedRegion struct {
	Lang  string
	Range Range
	Opts  InjectionOpts
}

// injectionFragment is the intermediate, possibly-combined accumulation
// of one or more query matches sharing a GroupKey.
type injectionFragment struct {
	patternIndex uint32
	lang         string
	startByte    uint32
	endByte      uint32
	escapeChars  map[string]struct{}
	indented     bool
}

// appendedNewline records where the original buffer ended, when a
// trailing '\n' had to be synthesized to satisfy grammars that assume one.
type appendedNewline struct {
	byteIndex uint32
	point     Point
}

func withAppendedNewline(source []byte) ([]byte, *appendedNewline) {
	if len(source) > 0 && source[len(source)-1] == '\n' {
		return source, nil
	}
	out := make([]byte, len(source)+1)
	copy(out, source)
	out[len(source)] = '\n'
	return out, &appendedNewline{
		byteIndex: uint32(len(source)),
		point:     PointForByte(source, len(source)),
	}
}

// remapRangeForAppendedNewline clamps a range's end to the original
// buffer's end-of-file when the range only exists past it because of a
// synthesized trailing newline.
func remapRangeForAppendedNewline(r Range, appended *appendedNewline) Range {
	if appended == nil || r.EndByte < appended.byteIndex {
		return r
	}
	r.EndByte = appended.byteIndex
	r.EndPoint = appended.point
	return r
}

func toPoint(p sitter.Point) Point { return Point{Row: p.Row, Column: p.Column} }

func nodeRange(n *sitter.Node) Range {
	return Range{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: toPoint(n.StartPoint()),
		EndPoint:   toPoint(n.EndPoint()),
	}
}

func captureIndexForName(q *sitter.Query, name string) (uint32, bool) {
	for i := uint32(0); i < q.CaptureCount(); i++ {
		if q.CaptureNameForId(i) == name {
			return i, true
		}
	}
	return 0, false
}

// pointToByte mirrors source.split_inclusive('\n').enumerate() from the
// reference implementation: row N is the Nth '\n'-inclusive line, and a
// column past that line's byte length clamps to the line's length
// (including its own trailing '\n', since the line slice keeps it). A row
// past the last line fails outright. See SPEC_FULL.md §9 for why this
// specific clamp point was chosen over clamping before the newline.
func pointToByte(source []byte, p Point) (uint32, bool) {
	if len(source) == 0 {
		if p.Row == 0 {
			return 0, true
		}
		return 0, false
	}

	lineStart := 0
	row := uint32(0)
	for lineStart < len(source) {
		nlIdx := -1
		for i := lineStart; i < len(source); i++ {
			if source[i] == '\n' {
				nlIdx = i
				break
			}
		}
		lineEnd := len(source)
		if nlIdx != -1 {
			lineEnd = nlIdx + 1
		}
		lineLen := lineEnd - lineStart
		if row == p.Row {
			col := int(p.Column)
			if col > lineLen {
				col = lineLen
			}
			return uint32(lineStart + col), true
		}
		lineStart = lineEnd
		row++
	}
	return 0, false
}

func applyPointOffset(p Point, rowOff, colOff int64) (Point, bool) {
	row := int64(p.Row) + rowOff
	col := int64(p.Column) + colOff
	if row < 0 || col < 0 {
		return Point{}, false
	}
	return Point{Row: uint32(row), Column: uint32(col)}, true
}

// applyOffset applies an offset! directive to a base range, re-deriving
// byte positions from source. On any failure (negative row/column, or a
// point past EOF) it reports false and the caller falls back to base.
func applyOffset(source []byte, base Range, off RangeOffset) (Range, bool) {
	newStart, ok := applyPointOffset(base.StartPoint, off.StartRow, off.StartCol)
	if !ok {
		return Range{}, false
	}
	newEnd, ok := applyPointOffset(base.EndPoint, off.EndRow, off.EndCol)
	if !ok {
		return Range{}, false
	}
	startByte, ok := pointToByte(source, newStart)
	if !ok {
		return Range{}, false
	}
	endByte, ok := pointToByte(source, newEnd)
	if !ok {
		return Range{}, false
	}
	return Range{
		StartByte:  startByte,
		EndByte:    endByte,
		StartPoint: newStart,
		EndPoint:   newEnd,
	}, true
}

func isLineWhitespaceOnly(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' && c != '\r' {
			return false
		}
	}
	return true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func trimStartLinewise(source []byte, start, end uint32) uint32 {
	for start < end {
		slice := source[start:end]
		nlIdx := indexByte(slice, '\n')
		if nlIdx < 0 {
			if isLineWhitespaceOnly(slice) {
				return end
			}
			return start
		}
		if isLineWhitespaceOnly(slice[:nlIdx]) {
			start = minU32(start+uint32(nlIdx)+1, end)
			continue
		}
		break
	}
	return start
}

func trimEndLinewise(source []byte, start, end uint32) uint32 {
	for end > start {
		slice := source[start:end]
		lineEnd := end
		if len(slice) > 0 && slice[len(slice)-1] == '\n' {
			lineEnd = end - 1
		}
		before := source[start:lineEnd]
		prevNl := lastIndexByte(before, '\n')
		lineStart := start
		if prevNl >= 0 {
			lineStart = start + uint32(prevNl) + 1
		}
		if isLineWhitespaceOnly(source[lineStart:lineEnd]) {
			end = lineStart
			continue
		}
		break
	}
	return end
}

func trimStartCharwise(source []byte, start, end uint32) uint32 {
	for start < end && isCharwiseWhitespace(source[start]) {
		start++
	}
	return start
}

func trimEndCharwise(source []byte, start, end uint32) uint32 {
	for end > start && isCharwiseWhitespace(source[end-1]) {
		end--
	}
	return end
}

// applyTrim applies a trim! TrimSpec to a byte window, per spec.md §4.4.
func applyTrim(source []byte, start, end uint32, spec TrimSpec) (uint32, uint32) {
	if start >= end || end > uint32(len(source)) {
		return start, end
	}
	if spec.StartLinewise {
		start = trimStartLinewise(source, start, end)
	}
	if spec.StartCharwise {
		start = trimStartCharwise(source, start, end)
	}
	if spec.EndLinewise {
		end = trimEndLinewise(source, start, end)
	}
	if spec.EndCharwise {
		end = trimEndCharwise(source, start, end)
	}
	return start, end
}

// trimIndented applies the "indented" post-trim: if the window contains a
// newline and everything before it is whitespace, drop that first line;
// then pull the end back past trailing spaces/tabs without crossing a
// newline. Distinct from trim! (spec.md §4.4).
func trimIndented(source []byte, start, end uint32) (uint32, uint32) {
	if start >= end || end > uint32(len(source)) {
		return start, end
	}
	slice := source[start:end]
	if nlIdx := indexByte(slice, '\n'); nlIdx >= 0 {
		if isLineWhitespaceOnly(slice[:nlIdx]) {
			start = minU32(start+uint32(nlIdx)+1, end)
		}
	}
	for end > start {
		last := source[end-1]
		if last == ' ' || last == '\t' {
			end--
			continue
		}
		break
	}
	return start, end
}

// ExtractInjections walks every match of grammar's injection query over
// source, resolving the offset!/escape!/gsub!/trim!/indented/combined
// directives into a finalized, ignore-filtered list of InjectedRegions.
func ExtractInjections(ctx context.Context, parser *sitter.Parser, grammar *Grammar, source []byte) ([]InjectedRegion, error) {
	srcWithNL, appended := withAppendedNewline(source)

	parser.SetLanguage(grammar.Language)
	tree, err := parser.ParseCtx(ctx, nil, srcWithNL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if tree == nil {
		return nil, ErrParseFailure
	}
	root := tree.RootNode()

	query := grammar.Injections
	contentIdx, hasContent := captureIndexForName(query, "injection.content")
	if !hasContent {
		return nil, nil
	}
	langIdx, hasLangCapture := captureIndexForName(query, "injection.language")

	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, root)

	fragments := map[string]*injectionFragment{}
	var order []string
	singleCounter := 0

	tablesCache := map[uint32]directiveTables{}
	propsCache := map[uint32]patternProperties{}

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		patternIndex := uint32(match.PatternIndex)

		props, cached := propsCache[patternIndex]
		if !cached {
			preds := predicatesForPattern(query, patternIndex)
			props = collectProperties(preds)
			propsCache[patternIndex] = props
			tablesCache[patternIndex] = collectDirectiveTables(preds)
		}
		tables := tablesCache[patternIndex]

		var langCapture, contentCapture *sitter.QueryCapture
		for i := range match.Captures {
			c := &match.Captures[i]
			if hasLangCapture && c.Index == langIdx {
				langCapture = c
			}
			if c.Index == contentIdx {
				contentCapture = c
			}
		}
		if contentCapture == nil {
			continue
		}

		hardLang, hasHardLang := props.get("injection.language")
		isIndented := props.has("pruner.injection.indented")
		isCombined := props.has("injection.combined")

		var langName string
		switch {
		case hasHardLang:
			langName = hardLang
		case langCapture != nil:
			langName = langCapture.Node.Content(srcWithNL)
			langName = applyGsub(tables.gsubs, langCapture.Index, langName)
		default:
			continue
		}

		baseRange := nodeRange(contentCapture.Node)
		candidate := baseRange
		if off, ok := tables.offsets[contentCapture.Index]; ok {
			if r, ok := applyOffset(srcWithNL, baseRange, off); ok {
				candidate = r
			}
		}
		if trim, ok := tables.trims[contentCapture.Index]; ok {
			s, e := applyTrim(srcWithNL, candidate.StartByte, candidate.EndByte, trim)
			candidate.StartByte, candidate.EndByte = s, e
		}

		escapeChars := map[string]struct{}{}
		if set, ok := tables.escapes[contentCapture.Index]; ok {
			for k := range set {
				escapeChars[k] = struct{}{}
			}
		}

		var key string
		if isCombined {
			container := contentCapture.Node.Parent()
			var cs, ce uint32
			if container != nil {
				cs, ce = container.StartByte(), container.EndByte()
			} else {
				cs, ce = contentCapture.Node.StartByte(), contentCapture.Node.EndByte()
			}
			key = fmt.Sprintf("combined:%d:%s:%d:%d", patternIndex, langName, cs, ce)
		} else {
			singleCounter++
			key = fmt.Sprintf("single:%d", singleCounter)
		}

		if frag, exists := fragments[key]; exists {
			if candidate.StartByte < frag.startByte {
				frag.startByte = candidate.StartByte
			}
			if candidate.EndByte > frag.endByte {
				frag.endByte = candidate.EndByte
			}
			for k := range escapeChars {
				frag.escapeChars[k] = struct{}{}
			}
		} else {
			fragments[key] = &injectionFragment{
				patternIndex: patternIndex,
				lang:         langName,
				startByte:    candidate.StartByte,
				endByte:      candidate.EndByte,
				escapeChars:  escapeChars,
				indented:     isIndented,
			}
			order = append(order, key)
		}
	}

	var ignoreRanges []Range
	if grammar.PrunerIgnore != nil {
		ignoreRanges = append(ignoreRanges, collectIgnoreRangesFromQuery(grammar.PrunerIgnore, root, srcWithNL)...)
	}
	ignoreRanges = append(ignoreRanges, collectCommentIgnoreRanges(root, srcWithNL)...)

	regions := make([]InjectedRegion, 0, len(order))
	for _, key := range order {
		frag := fragments[key]

		r := Range{
			StartByte:  frag.startByte,
			EndByte:    frag.endByte,
			StartPoint: PointForByte(srcWithNL, int(frag.startByte)),
			EndPoint:   PointForByte(srcWithNL, int(frag.endByte)),
		}

		if frag.indented {
			s, e := trimIndented(srcWithNL, r.StartByte, r.EndByte)
			r = Range{
				StartByte:  s,
				EndByte:    e,
				StartPoint: PointForByte(srcWithNL, int(s)),
				EndPoint:   PointForByte(srcWithNL, int(e)),
			}
		}

		r = remapRangeForAppendedNewline(r, appended)

		if isIgnored(r, ignoreRanges) {
			continue
		}

		regions = append(regions, InjectedRegion{
			Lang:  frag.lang,
			Range: r,
			Opts:  InjectionOpts{EscapeChars: frag.escapeChars},
		})
	}

	return regions, nil
}
