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
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// FormatOpts carries the language and effective print width a recursion
// frame is formatting at.
type FormatOpts struct {
	PrintWidth uint32
	Language   string
}

// FormatterChoice names one formatter to run for a language, and at which
// levels. A bare name is equivalent to {Name: name, RunInRoot: true,
// RunInInjections: true}.
type FormatterChoice struct {
	Name            string
	RunInRoot       bool
	RunInInjections bool
}

// FormatterRunner is the external formatter invocation surface (spec.md
// §1 treats it as an out-of-scope collaborator). Format returns
// known=false when name isn't recognized by this registry, so the caller
// can fall back to a secondary one; see runner.go for the concrete
// os/exec-backed implementation.
type FormatterRunner interface {
	Format(ctx context.Context, name string, src []byte, opts FormatOpts) (out []byte, known bool, err error)
}

// FormatContext bundles the read-only, freely-shared state a formatting
// invocation needs: grammars, language alias table, the formatter choice
// list per language, and the primary/secondary formatter registries.
type FormatContext struct {
	Grammars           map[string]*Grammar
	LanguageAliases    map[string]string
	LanguageFormatters map[string][]FormatterChoice
	Formatters         FormatterRunner
	AltFormatters      FormatterRunner
}

func (c *FormatContext) resolveGrammar(language string) (*Grammar, bool) {
	if g, ok := c.Grammars[language]; ok {
		return g, true
	}
	canonical, ok := c.LanguageAliases[language]
	if !ok {
		return nil, false
	}
	g, ok := c.Grammars[canonical]
	return g, ok
}

func runFormatter(ctx context.Context, fctx *FormatContext, name string, src []byte, opts FormatOpts) ([]byte, bool, error) {
	for _, registry := range []FormatterRunner{fctx.Formatters, fctx.AltFormatters} {
		if registry == nil {
			continue
		}
		out, known, err := registry.Format(ctx, name, src, opts)
		if !known {
			continue
		}
		if err != nil {
			return nil, true, err
		}
		if len(out) == 0 {
			return nil, true, &FormatterError{Cmd: name, Reason: "produced an empty buffer"}
		}
		return out, true, nil
	}
	return nil, false, nil
}

// Format runs the root-level formatter pass (when applicable), extracts
// injections, recursively formats each one in parallel, and splices the
// results back. It implements the INIT -> ROOT_FORMATTING -> EXTRACT ->
// REGION_PIPELINE -> REASSEMBLE -> DONE state machine of spec.md §4.5;
// only REGION_PIPELINE fans out across goroutines.
func Format(ctx context.Context, source []byte, opts FormatOpts, formatRoot, isRoot bool, fctx *FormatContext) ([]byte, error) {
	working := append([]byte(nil), source...)

	if !isRoot || formatRoot {
		for _, choice := range fctx.LanguageFormatters[opts.Language] {
			runsHere := (isRoot && choice.RunInRoot) || (!isRoot && choice.RunInInjections)
			if !runsHere {
				continue
			}
			out, known, err := runFormatter(ctx, fctx, choice.Name, working, opts)
			if err != nil {
				return nil, fmt.Errorf("language %s, depth root=%v: %w", opts.Language, isRoot, err)
			}
			if known {
				working = out
			}
		}
	}

	grammar, ok := fctx.resolveGrammar(opts.Language)
	if !ok {
		return working, nil
	}

	parser := sitter.NewParser()
	regions, err := ExtractInjections(ctx, parser, grammar, working)
	if err != nil {
		return nil, fmt.Errorf("extracting injections for %s: %w", opts.Language, err)
	}
	if len(regions) == 0 {
		return working, nil
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Range.StartByte > regions[j].Range.StartByte
	})

	type regionResult struct {
		region InjectedRegion
		data   []byte
		err    error
	}
	results := make([]regionResult, len(regions))

	runRegionPool(ctx, regions, func(i int, region InjectedRegion) {
		data, err := formatRegion(ctx, working, region, opts, formatRoot, fctx)
		results[i] = regionResult{region: region, data: data, err: err}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].region.Range.StartByte > results[j].region.Range.StartByte
	})

	for _, r := range results {
		start, end := r.region.Range.StartByte, r.region.Range.EndByte
		spliced := make([]byte, 0, len(working)-int(end-start)+len(r.data))
		spliced = append(spliced, working[:start]...)
		spliced = append(spliced, r.data...)
		spliced = append(spliced, working[end:]...)
		working = spliced
	}

	return working, nil
}

// formatRegion runs one region through unescape, indent normalization,
// recursive Format, re-escape, and trailing-newline/offset_lines
// reconstitution (spec.md §4.5 step 3).
func formatRegion(ctx context.Context, working []byte, region InjectedRegion, opts FormatOpts, formatRoot bool, fctx *FormatContext) ([]byte, error) {
	fragment := append([]byte(nil), working[region.Range.StartByte:region.Range.EndByte]...)

	escapeChars := SortEscapeChars(region.Opts.EscapeChars)
	normalized := string(fragment)
	if len(escapeChars) > 0 {
		normalized = UnescapeText(normalized, escapeChars)
	}

	indent := ColumnForByte(working, int(region.Range.StartByte))
	indentFromContent := false
	if indent > 0 {
		normalized = StripLeadingIndent(normalized, indent)
	} else if minIndent := MinLeadingIndent(normalized); minIndent > 0 {
		normalized = StripLeadingIndent(normalized, minIndent)
		indent = minIndent
		indentFromContent = true
	}

	trailing := TrailingNewlines(fragment)

	adjustedWidth := int64(opts.PrintWidth) - int64(indent)
	if adjustedWidth < 1 {
		adjustedWidth = 1
	}

	sub, err := Format(ctx, []byte(normalized), FormatOpts{PrintWidth: uint32(adjustedWidth), Language: region.Lang}, formatRoot, false, fctx)
	if err != nil {
		return nil, err
	}

	if len(escapeChars) > 0 {
		sub = []byte(EscapeText(string(sub), escapeChars))
	}

	// Re-apply the exact trailing newlines the outer language expected,
	// deduplicating whatever the sub-formatter emitted on its own.
	sub = StripTrailingNewlines(sub)
	sub = append(sub, trailing...)

	if indentFromContent && indent > 0 && len(sub) > 0 && sub[0] != '\n' && sub[0] != '\r' {
		pad := make([]byte, indent)
		for i := range pad {
			pad[i] = ' '
		}
		sub = append(pad, sub...)
	}

	return OffsetLines(sub, indent), nil
}
