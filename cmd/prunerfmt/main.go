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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pruner-formatter/pruner"
)

var (
	langFlag       string
	printWidthFlag uint
	skipRootFlag   bool
	dirFlag        string
	checkFlag      bool
	diffFlag       bool
	configFlag     string
	profilesFlag   string
	excludeFlag    stringListFlag
)

// stringListFlag collects repeated -exclude flags into a slice, the same
// pattern flag.Value wraps for any multi-valued option.
type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func init() {
	flag.StringVar(&langFlag, "lang", "", "the language name of the root document")
	flag.UintVar(&printWidthFlag, "print-width", 80, "desired print width before injected regions adjust it")
	flag.BoolVar(&skipRootFlag, "skip-root", false, "skip formatting the document root, format injected regions only")
	flag.StringVar(&dirFlag, "dir", "", "working directory to resolve file globs against (default: cwd)")
	flag.BoolVar(&checkFlag, "check", false, "do not write files; exit non-zero if any are not formatted")
	flag.BoolVar(&diffFlag, "diff", false, "print a diff instead of (or alongside, under -check) rewriting files")
	flag.StringVar(&configFlag, "config", "", "path to a pruner.toml config file")
	flag.StringVar(&profilesFlag, "profile", "", "comma-separated list of config profiles to apply, in order")
	flag.Var(&excludeFlag, "exclude", "glob pattern of files to exclude; repeatable")
}

func buildContext() (*pruner.FormatContext, error) {
	var profiles []string
	if profilesFlag != "" {
		profiles = strings.Split(profilesFlag, ",")
	}

	cfg, err := pruner.LoadConfig(pruner.LoadOpts{ConfigPath: configFlag, Profiles: profiles})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	grammars, err := pruner.LoadGrammars(nil, nil, cfg.QueryPaths)
	if err != nil {
		return nil, fmt.Errorf("loading grammars: %w", err)
	}

	return &pruner.FormatContext{
		Grammars:           grammars,
		LanguageAliases:    cfg.LanguageAliases,
		LanguageFormatters: pruner.BuildLanguageFormatters(cfg.Languages),
		Formatters:         pruner.ExternalRunner{Specs: cfg.Formatters},
	}, nil
}

func formatStdin(ctx context.Context, fctx *pruner.FormatContext) error {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	result, err := pruner.Format(ctx, input, pruner.FormatOpts{PrintWidth: uint32(printWidthFlag), Language: langFlag}, !skipRootFlag, true, fctx)
	if err != nil {
		return err
	}

	if diffFlag {
		printDiff("<stdin>", string(input), string(result))
		return nil
	}
	_, err = os.Stdout.Write(result)
	return err
}

func formatFiles(ctx context.Context, paths []string, fctx *pruner.FormatContext) (dirty []string, err error) {
	for _, path := range paths {
		if excluded(path) {
			continue
		}
		original, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("reading %s: %w", path, readErr)
		}

		result, fmtErr := pruner.Format(ctx, original, pruner.FormatOpts{PrintWidth: uint32(printWidthFlag), Language: langFlag}, !skipRootFlag, true, fctx)
		if fmtErr != nil {
			return nil, fmt.Errorf("formatting %s: %w", path, fmtErr)
		}

		if string(result) == string(original) {
			continue
		}
		dirty = append(dirty, path)

		if diffFlag {
			printDiff(path, string(original), string(result))
		}
		if !checkFlag && !diffFlag {
			if err := os.WriteFile(path, result, 0o644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", path, err)
			}
		}
	}
	return dirty, nil
}

func excluded(path string) bool {
	for _, pattern := range excludeFlag {
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

func printDiff(name, before, after string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	fmt.Fprintf(os.Stderr, "--- %s\n%s\n", name, dmp.DiffPrettyText(diffs))
}

func run() error {
	glob := flag.Arg(0)
	fctx, err := buildContext()
	if err != nil {
		return err
	}

	ctx := context.Background()

	if glob == "" {
		return formatStdin(ctx, fctx)
	}

	baseDir := dirFlag
	if baseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting cwd: %w", err)
		}
		baseDir = cwd
	}

	var paths []string
	err = filepath.WalkDir(baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			return relErr
		}
		if ok, _ := filepath.Match(glob, rel); ok {
			paths = append(paths, path)
			return nil
		}
		if ok, _ := filepath.Match(glob, filepath.Base(path)); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", baseDir, err)
	}

	dirty, err := formatFiles(ctx, paths, fctx)
	if err != nil {
		return err
	}

	if checkFlag && len(dirty) > 0 {
		glog.Errorf("pruner: %d dirty files", len(dirty))
		os.Exit(1)
	}
	glog.Infof("pruner: formatted %d files", len(paths))
	return nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if langFlag == "" {
		fmt.Fprintln(os.Stderr, "pruner: -lang is required")
		os.Exit(2)
	}

	if err := run(); err != nil {
		glog.Errorf("pruner: %v", err)
		os.Exit(1)
	}
}
