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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageFactory produces a compiled tree-sitter language. Grammar
// packages (github.com/smacker/go-tree-sitter/<lang>) each expose a
// GetLanguage() of this shape; RegisterLanguage lets a binary's blank
// imports of those packages wire themselves in, the same registration
// idiom database/sql drivers use.
type LanguageFactory func() *sitter.Language

var languageRegistry = map[string]LanguageFactory{}

// RegisterLanguage makes a grammar available to LoadGrammars under name.
// Typically called from the init() of a package wrapping a generated
// tree-sitter grammar.
func RegisterLanguage(name string, factory LanguageFactory) {
	languageRegistry[name] = factory
}

// RegisteredLanguages lists every language name registered so far, sorted.
func RegisteredLanguages() []string {
	names := make([]string, 0, len(languageRegistry))
	for n := range languageRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func readQueryFile(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), true, nil
}

// isExtending mirrors queries.rs's is_extending: a query file that opens
// with ";; extends" augments whatever was already assembled rather than
// replacing it outright.
func isExtending(contents string) bool {
	scanner := bufio.NewScanner(strings.NewReader(contents))
	if !scanner.Scan() {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(scanner.Text()), ";; extends")
}

func mergeQueries(base, overlay string) string {
	if base == "" {
		return overlay
	}
	if overlay == "" {
		return base
	}
	if !strings.HasSuffix(base, "\n") {
		base += "\n"
	}
	return base + overlay
}

// readQuery resolves name/filename against each directory in queriesDirs,
// in order, either merging an extending overlay onto the running result
// or replacing it outright.
func readQuery(queriesDirs []string, name, filename, base string) (string, error) {
	result := base
	for _, dir := range queriesDirs {
		path := filepath.Join(dir, name, filename)
		contents, ok, err := readQueryFile(path)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if isExtending(contents) {
			result = mergeQueries(result, contents)
		} else {
			result = contents
		}
	}
	return result, nil
}

func loadInjectionsQuery(lang *sitter.Language, name string, baseFiles, searchPaths []string) (*sitter.Query, error) {
	var base strings.Builder
	for i, p := range baseFiles {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if i > 0 {
			base.WriteByte('\n')
		}
		base.Write(data)
	}

	content, err := readQuery(searchPaths, name, "injections.scm", base.String())
	if err != nil {
		return nil, err
	}
	q, err := sitter.NewQuery([]byte(content), lang)
	if err != nil {
		return nil, fmt.Errorf("compiling injections.scm for %s: %w", name, err)
	}
	return q, nil
}

func loadOptionalQuery(lang *sitter.Language, name, filename string, searchPaths []string) (*sitter.Query, error) {
	content, err := readQuery(searchPaths, name, filename, "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	q, err := sitter.NewQuery([]byte(content), lang)
	if err != nil {
		return nil, fmt.Errorf("compiling %s for %s: %w", filename, name, err)
	}
	return q, nil
}

// LoadGrammars builds one Grammar per name (every registered language, if
// names is empty), loading each one's injections.scm (required, may be
// empty) and pruner/ignore.scm (optional) by searching querySearchPaths
// in order.
func LoadGrammars(names []string, baseFilesByLanguage map[string][]string, querySearchPaths []string) (map[string]*Grammar, error) {
	if len(names) == 0 {
		names = RegisteredLanguages()
	} else {
		names = append([]string(nil), names...)
		sort.Strings(names)
	}

	grammars := make(map[string]*Grammar, len(names))
	for _, name := range names {
		factory, ok := languageRegistry[name]
		if !ok {
			return nil, fmt.Errorf("pruner: no grammar registered for language %q", name)
		}
		lang := factory()

		injections, err := loadInjectionsQuery(lang, name, baseFilesByLanguage[name], querySearchPaths)
		if err != nil {
			return nil, err
		}

		ignore, err := loadOptionalQuery(lang, name, "pruner/ignore.scm", querySearchPaths)
		if err != nil {
			return nil, err
		}

		grammars[name] = &Grammar{Name: name, Language: lang, Injections: injections, PrunerIgnore: ignore}
	}
	return grammars, nil
}
