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
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FormatterSpec names an external formatter: the command to run, its
// argument template ($textwidth/$language/$file get substituted, see
// runner.go), whether source is piped over stdin, and whether non-empty
// stderr should itself be treated as failure.
type FormatterSpec struct {
	Cmd          string   `toml:"cmd"`
	Args         []string `toml:"args"`
	Stdin        *bool    `toml:"stdin"`
	FailOnStderr *bool    `toml:"fail_on_stderr"`
}

func (f FormatterSpec) useStdin() bool {
	return f.Stdin == nil || *f.Stdin
}

func (f FormatterSpec) failOnStderr() bool {
	return f.FailOnStderr != nil && *f.FailOnStderr
}

// LanguageFormatSpec is one formatter choice for a language: either a
// bare formatter name (run_in_root and run_in_injections both default to
// true), or a table overriding either flag. It decodes from either TOML
// shape via UnmarshalTOML.
type LanguageFormatSpec struct {
	Formatter       string
	RunInRoot       bool
	RunInInjections bool
}

// UnmarshalTOML implements toml.Unmarshaler, resolving the untagged
// string-or-table shape the on-disk format uses for a language's
// formatter list entries.
func (l *LanguageFormatSpec) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*l = LanguageFormatSpec{Formatter: v, RunInRoot: true, RunInInjections: true}
		return nil
	case map[string]interface{}:
		formatter, _ := v["formatter"].(string)
		if formatter == "" {
			return fmt.Errorf("pruner: language formatter entry missing \"formatter\" key: %w", ErrConfigError)
		}
		spec := LanguageFormatSpec{Formatter: formatter, RunInRoot: true, RunInInjections: true}
		if raw, ok := v["run_in_root"]; ok {
			b, ok := raw.(bool)
			if !ok {
				return fmt.Errorf("pruner: run_in_root must be a bool: %w", ErrConfigError)
			}
			spec.RunInRoot = b
		}
		if raw, ok := v["run_in_injections"]; ok {
			b, ok := raw.(bool)
			if !ok {
				return fmt.Errorf("pruner: run_in_injections must be a bool: %w", ErrConfigError)
			}
			spec.RunInInjections = b
		}
		*l = spec
		return nil
	default:
		return fmt.Errorf("pruner: language formatter entry must be a string or table, got %T: %w", data, ErrConfigError)
	}
}

type (
	// FormatterSpecs maps a configured formatter name to how to invoke it.
	FormatterSpecs = map[string]FormatterSpec
	// LanguageFormatters maps a language name to its ordered formatter choices.
	LanguageFormatters = map[string][]LanguageFormatSpec
	// LanguageAliasSpecs maps a canonical language name to its aliases, as
	// written in config files (before alias -> canonical flattening).
	LanguageAliasSpecs = map[string][]string
)

// ProfileConfig holds the same fields as ConfigFile (minus Profiles) so a
// named profile can layer onto any top-level setting: applyProfile appends
// its slices to the base ones and merges its maps key by key, with the
// profile's entry winning on a shared key.
type ProfileConfig struct {
	QueryPaths      []string           `toml:"query_paths"`
	Languages       LanguageFormatters `toml:"languages"`
	LanguageAliases LanguageAliasSpecs `toml:"language_aliases"`
	Formatters      FormatterSpecs     `toml:"formatters"`
}

// ConfigFile is the on-disk shape decoded directly from TOML.
type ConfigFile struct {
	QueryPaths      []string                 `toml:"query_paths"`
	Languages       LanguageFormatters       `toml:"languages"`
	LanguageAliases LanguageAliasSpecs       `toml:"language_aliases"`
	Formatters      FormatterSpecs           `toml:"formatters"`
	Profiles        map[string]ProfileConfig `toml:"profiles"`
}

// Config is the fully resolved configuration, with every alias flattened
// to its canonical language name and no remaining Option-style fields.
type Config struct {
	QueryPaths      []string
	Languages       LanguageFormatters
	LanguageAliases map[string]string
	Formatters      FormatterSpecs
}

func mergeSlices[T any](base, overlay []T) []T {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}
	merged := make([]T, 0, len(base)+len(overlay))
	merged = append(merged, base...)
	merged = append(merged, overlay...)
	return merged
}

func mergeStringMaps[V any](base, overlay map[string]V) map[string]V {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}
	merged := make(map[string]V, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// mergeConfigFiles layers overlay's fields onto base, concatenating
// slice-valued fields and union-with-overlay-wins for map-valued ones.
func mergeConfigFiles(base, overlay ConfigFile) ConfigFile {
	return ConfigFile{
		QueryPaths:      mergeSlices(base.QueryPaths, overlay.QueryPaths),
		Languages:       mergeStringMaps(base.Languages, overlay.Languages),
		LanguageAliases: mergeStringMaps(base.LanguageAliases, overlay.LanguageAliases),
		Formatters:      mergeStringMaps(base.Formatters, overlay.Formatters),
		Profiles:        base.Profiles,
	}
}

func applyProfile(base ConfigFile, profile ProfileConfig) ConfigFile {
	return ConfigFile{
		QueryPaths:      mergeSlices(base.QueryPaths, profile.QueryPaths),
		Languages:       mergeStringMaps(base.Languages, profile.Languages),
		LanguageAliases: mergeStringMaps(base.LanguageAliases, profile.LanguageAliases),
		Formatters:      mergeStringMaps(base.Formatters, profile.Formatters),
		Profiles:        base.Profiles,
	}
}

func loadConfigFile(path string) (ConfigFile, error) {
	var cf ConfigFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return ConfigFile{}, fmt.Errorf("pruner: decoding config %s: %w", path, err)
	}
	return cf, nil
}

// findLocalConfig walks startDir and its ancestors looking for a
// pruner.toml, the same nearest-wins discovery the CLI's config loader
// uses for per-project configuration.
func findLocalConfig(startDir string) (string, bool) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, "pruner.toml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadOpts selects which config file(s) and profiles LoadConfig resolves.
type LoadOpts struct {
	ConfigPath string
	Profiles   []string
}

// LoadConfig resolves an explicit -config path if given, otherwise the
// nearest ancestor pruner.toml, applies any requested profiles in order,
// and flattens language aliases, rejecting a name claimed by two
// different canonical languages.
func LoadConfig(opts LoadOpts) (*Config, error) {
	var cf ConfigFile
	if opts.ConfigPath != "" {
		loaded, err := loadConfigFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cf = loaded
	} else if cwd, err := os.Getwd(); err == nil {
		if path, ok := findLocalConfig(cwd); ok {
			loaded, err := loadConfigFile(path)
			if err != nil {
				return nil, err
			}
			cf = loaded
		}
	}

	for _, name := range opts.Profiles {
		profile, ok := cf.Profiles[name]
		if !ok {
			return nil, fmt.Errorf("pruner: profile %q not found: %w", name, ErrConfigError)
		}
		cf = applyProfile(cf, profile)
	}

	aliasToCanonical := map[string]string{}
	for canonical, aliases := range cf.LanguageAliases {
		for _, alias := range aliases {
			if existing, ok := aliasToCanonical[alias]; ok && existing != canonical {
				return nil, &AliasConflictError{Alias: alias, First: existing, Second: canonical}
			}
			aliasToCanonical[alias] = canonical
		}
	}

	return &Config{
		QueryPaths:      cf.QueryPaths,
		Languages:       cf.Languages,
		LanguageAliases: aliasToCanonical,
		Formatters:      cf.Formatters,
	}, nil
}

// BuildLanguageFormatters translates resolved config formatter choices
// into the FormatterChoice lists Format's FormatContext consumes.
func BuildLanguageFormatters(languages LanguageFormatters) map[string][]FormatterChoice {
	out := make(map[string][]FormatterChoice, len(languages))
	for lang, specs := range languages {
		choices := make([]FormatterChoice, 0, len(specs))
		for _, s := range specs {
			choices = append(choices, FormatterChoice{
				Name:            s.Formatter,
				RunInRoot:       s.RunInRoot,
				RunInInjections: s.RunInInjections,
			})
		}
		out[lang] = choices
	}
	return out
}
