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
	"errors"
	"sync"
	"testing"
)

// fakeRunner is a FormatterRunner test double keyed by formatter name.
type fakeRunner struct {
	known map[string]func(src []byte) ([]byte, error)
}

func (f *fakeRunner) Format(_ context.Context, name string, src []byte, _ FormatOpts) ([]byte, bool, error) {
	fn, ok := f.known[name]
	if !ok {
		return nil, false, nil
	}
	out, err := fn(src)
	return out, true, err
}

func upperRunner() *fakeRunner {
	return &fakeRunner{known: map[string]func([]byte) ([]byte, error){
		"upper": func(src []byte) ([]byte, error) { return bytes.ToUpper(src), nil },
	}}
}

func TestFormatRootPassUnknownLanguageNoOp(t *testing.T) {
	fctx := &FormatContext{Grammars: map[string]*Grammar{}}
	out, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "nope", PrintWidth: 80}, true, true, fctx)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("Format() = %q, want unchanged %q", out, "hello")
	}
}

func TestFormatRunsRegisteredFormatter(t *testing.T) {
	fctx := &FormatContext{
		Grammars: map[string]*Grammar{},
		LanguageFormatters: map[string][]FormatterChoice{
			"text": {{Name: "upper", RunInRoot: true, RunInInjections: true}},
		},
		Formatters: upperRunner(),
	}
	out, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "text", PrintWidth: 80}, true, true, fctx)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(out) != "HELLO" {
		t.Errorf("Format() = %q, want %q", out, "HELLO")
	}
}

func TestFormatSkipsRunInRootFalseAtRoot(t *testing.T) {
	fctx := &FormatContext{
		Grammars: map[string]*Grammar{},
		LanguageFormatters: map[string][]FormatterChoice{
			"text": {{Name: "upper", RunInRoot: false, RunInInjections: true}},
		},
		Formatters: upperRunner(),
	}
	out, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "text", PrintWidth: 80}, true, true, fctx)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("Format() = %q, want unchanged %q (run_in_root=false)", out, "hello")
	}
}

func TestFormatFallsBackToSecondaryRegistry(t *testing.T) {
	fctx := &FormatContext{
		Grammars: map[string]*Grammar{},
		LanguageFormatters: map[string][]FormatterChoice{
			"text": {{Name: "upper", RunInRoot: true, RunInInjections: true}},
		},
		Formatters:    &fakeRunner{known: map[string]func([]byte) ([]byte, error){}},
		AltFormatters: upperRunner(),
	}
	out, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "text", PrintWidth: 80}, true, true, fctx)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(out) != "HELLO" {
		t.Errorf("Format() = %q, want %q via secondary registry", out, "HELLO")
	}
}

func TestFormatUnrecognizedFormatterLeavesBytesUnchanged(t *testing.T) {
	fctx := &FormatContext{
		Grammars: map[string]*Grammar{},
		LanguageFormatters: map[string][]FormatterChoice{
			"text": {{Name: "nonexistent", RunInRoot: true, RunInInjections: true}},
		},
		Formatters: upperRunner(),
	}
	out, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "text", PrintWidth: 80}, true, true, fctx)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("Format() = %q, want unchanged %q", out, "hello")
	}
}

func TestFormatEmptyFormatterOutputIsFailure(t *testing.T) {
	fctx := &FormatContext{
		Grammars: map[string]*Grammar{},
		LanguageFormatters: map[string][]FormatterChoice{
			"text": {{Name: "blank", RunInRoot: true, RunInInjections: true}},
		},
		Formatters: &fakeRunner{known: map[string]func([]byte) ([]byte, error){
			"blank": func([]byte) ([]byte, error) { return nil, nil },
		}},
	}
	_, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "text", PrintWidth: 80}, true, true, fctx)
	if !errors.Is(err, ErrFormatterFailure) {
		t.Fatalf("Format() error = %v, want ErrFormatterFailure", err)
	}
}

func TestFormatPropagatesFormatterError(t *testing.T) {
	boom := errors.New("boom")
	fctx := &FormatContext{
		Grammars: map[string]*Grammar{},
		LanguageFormatters: map[string][]FormatterChoice{
			"text": {{Name: "broken", RunInRoot: true, RunInInjections: true}},
		},
		Formatters: &fakeRunner{known: map[string]func([]byte) ([]byte, error){
			"broken": func([]byte) ([]byte, error) { return nil, boom },
		}},
	}
	_, err := Format(context.Background(), []byte("hello"), FormatOpts{Language: "text", PrintWidth: 80}, true, true, fctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Format() error = %v, want wrapped %v", err, boom)
	}
}

func TestRunRegionPoolVisitsEveryRegion(t *testing.T) {
	regions := make([]InjectedRegion, 0, 20)
	for i := 0; i < 20; i++ {
		regions = append(regions, InjectedRegion{Lang: "x", Range: Range{StartByte: uint32(i)}})
	}

	seen := make([]bool, len(regions))
	var mu sync.Mutex
	runRegionPool(context.Background(), regions, func(i int, _ InjectedRegion) {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	for i, ok := range seen {
		if !ok {
			t.Errorf("region %d never processed", i)
		}
	}
}
