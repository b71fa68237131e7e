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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// isIgnored reports whether r is contained, on both ends, within any of
// ignoreRanges.
func isIgnored(r Range, ignoreRanges []Range) bool {
	for _, ig := range ignoreRanges {
		if r.StartByte >= ig.StartByte && r.EndByte <= ig.EndByte {
			return true
		}
	}
	return false
}

func isCommentNode(n *sitter.Node) bool {
	return strings.Contains(n.Type(), "comment")
}

// nextIgnoreTarget walks forward over named siblings, skipping comments,
// to find the node a "pruner-ignore" marker applies to.
func nextIgnoreTarget(marker *sitter.Node) *sitter.Node {
	target := marker.NextNamedSibling()
	for target != nil && isCommentNode(target) {
		target = target.NextNamedSibling()
	}
	return target
}

// collectCommentIgnoreRanges recursively visits every named node looking
// for comments whose text contains "pruner-ignore"; each such comment
// marks itself and the next non-comment sibling, if any.
func collectCommentIgnoreRanges(root *sitter.Node, source []byte) []Range {
	var ranges []Range

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if isCommentNode(n) && strings.Contains(n.Content(source), "pruner-ignore") {
			ranges = append(ranges, nodeRange(n))
			if target := nextIgnoreTarget(n); target != nil {
				ranges = append(ranges, nodeRange(target))
			}
		}

		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)

	return ranges
}

// collectIgnoreRangesFromQuery runs a grammar's optional pruner/ignore.scm
// query, honoring both the "pruner.ignore" (direct range) and
// "pruner.ignore.marker" (the marker's own range, plus its next
// non-comment sibling's range if one exists) capture names. A query with
// neither capture name contributes nothing.
func collectIgnoreRangesFromQuery(query *sitter.Query, root *sitter.Node, source []byte) []Range {
	ignoreIdx, hasIgnore := captureIndexForName(query, "pruner.ignore")
	markerIdx, hasMarker := captureIndexForName(query, "pruner.ignore.marker")
	if !hasIgnore && !hasMarker {
		return nil
	}

	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, root)

	var ranges []Range
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			switch {
			case hasIgnore && c.Index == ignoreIdx:
				ranges = append(ranges, nodeRange(c.Node))
			case hasMarker && c.Index == markerIdx:
				ranges = append(ranges, nodeRange(c.Node))
				if target := nextIgnoreTarget(c.Node); target != nil {
					ranges = append(ranges, nodeRange(target))
				}
			}
		}
	}
	return ranges
}
