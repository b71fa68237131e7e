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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ExternalRunner is the os/exec-backed FormatterRunner: it looks up name
// in specs and, if found, shells out to the configured command.
type ExternalRunner struct {
	Specs FormatterSpecs
}

// Format implements FormatterRunner.
func (r ExternalRunner) Format(ctx context.Context, name string, src []byte, opts FormatOpts) ([]byte, bool, error) {
	spec, ok := r.Specs[name]
	if !ok {
		return nil, false, nil
	}
	out, err := runFormatterCommand(ctx, name, spec, src, opts)
	return out, true, err
}

func substitutePlaceholders(arg string, opts FormatOpts, file string) string {
	arg = strings.ReplaceAll(arg, "$textwidth", strconv.FormatUint(uint64(opts.PrintWidth), 10))
	arg = strings.ReplaceAll(arg, "$language", opts.Language)
	arg = strings.ReplaceAll(arg, "$file", file)
	return arg
}

// runFormatterCommand invokes spec.Cmd with source delivered over stdin
// or a temp file, per spec.Stdin, and wraps any failure (non-zero exit,
// or non-empty stderr when FailOnStderr is set) in a *FormatterError.
func runFormatterCommand(ctx context.Context, name string, spec FormatterSpec, src []byte, opts FormatOpts) ([]byte, error) {
	logTrace("pruner: calling formatter [%s] with opts %+v", spec.Cmd, opts)

	useStdin := spec.useStdin()

	var tempPath string
	if !useStdin {
		f, err := os.CreateTemp("", "pruner-format-*")
		if err != nil {
			return nil, fmt.Errorf("pruner: creating temp file for formatter %s: %w", name, err)
		}
		tempPath = f.Name()
		if _, err := f.Write(src); err != nil {
			f.Close()
			os.Remove(tempPath)
			return nil, fmt.Errorf("pruner: writing temp file for formatter %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tempPath)
			return nil, fmt.Errorf("pruner: closing temp file for formatter %s: %w", name, err)
		}
		defer func() {
			if err := os.Remove(tempPath); err != nil {
				logWarn("pruner: failed to remove temp file %s: %v", tempPath, err)
			}
		}()
	}

	args := make([]string, len(spec.Args))
	for i, a := range spec.Args {
		args[i] = substitutePlaceholders(a, opts, tempPath)
	}

	cmd := exec.CommandContext(ctx, spec.Cmd, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if useStdin {
		cmd.Stdin = bytes.NewReader(src)
	}

	if err := cmd.Run(); err != nil {
		return nil, &FormatterError{Cmd: spec.Cmd, Reason: fmt.Sprintf("%v: %s", err, stderr.String())}
	}

	if spec.failOnStderr() && stderr.Len() > 0 {
		return nil, &FormatterError{Cmd: spec.Cmd, Reason: stderr.String()}
	}

	if !useStdin {
		result, err := os.ReadFile(tempPath)
		if err != nil {
			return nil, fmt.Errorf("pruner: reading temp file after formatting with %s: %w", name, err)
		}
		return result, nil
	}

	return stdout.Bytes(), nil
}
