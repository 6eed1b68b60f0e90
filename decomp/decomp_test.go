// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decomp_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/jit/base/jitlog"
	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/importer"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/build/schema"
	"github.com/gx-org/jit/decomp"
	"github.com/gx-org/jit/decomp/builtin"
	"github.com/gx-org/jit/interp/executor"
	"github.com/gx-org/jit/interp/values"
	"go.uber.org/multierr"
)

const emptyBundle = "//jit:bundle v1.0.0\n\npackage empty\n"

// countingLoader returns a loader of a bundle which counts how many times it is called.
func countingLoader(src string, entries ...builtin.Entry) (decomp.Loader, *atomic.Int32) {
	count := &atomic.Int32{}
	return func() (*decomp.Bundle, error) {
		count.Add(1)
		return &decomp.Bundle{
			Filename: "bundle.jit",
			Source:   []byte(src),
			Manifest: entries,
		}, nil
	}, count
}

func compile(t *testing.T, src string) *graph.Graph {
	t.Helper()
	cu := importer.NewCompilationUnit(ops.Builtins())
	if err := cu.Define("test.go", []byte("package test\n\n"+src)); err != nil {
		t.Fatalf("cannot compile:\n%+v", err)
	}
	return cu.Functions()[0].Graph
}

func checkGraph(t *testing.T, g *graph.Graph, want string) {
	t.Helper()
	if err := g.Check(); err != nil {
		t.Errorf("inconsistent graph: %v\n%s", err, g)
	}
	if diff := cmp.Diff(want, g.String()); diff != "" {
		t.Errorf("unexpected graph (-want +got):\n%s", diff)
	}
}

func run(t *testing.T, g *graph.Graph, args ...values.Value) []values.Value {
	t.Helper()
	out, err := executor.New("test", g, executor.WithMode(executor.ModeSimple)).Run(args)
	if err != nil {
		t.Fatalf("cannot run graph:\n%s\nerror: %+v", g, err)
	}
	return out
}

func TestNotFound(t *testing.T) {
	loader, count := countingLoader(emptyBundle)
	reg := decomp.NewRegistry(decomp.WithLoader(loader))
	if count.Load() != 0 {
		t.Fatalf("the registry should be loaded lazily")
	}
	s := schema.MustParse("aten::add(Tensor self, Tensor other) -> Tensor")
	for i := 0; i < 2; i++ {
		if _, ok := reg.Decomposition(s); ok {
			t.Errorf("lookup %d: unexpected decomposition for %s", i, s)
		}
		if _, ok := reg.DecompositionFunction(s); ok {
			t.Errorf("lookup %d: unexpected decomposition function for %s", i, s)
		}
	}
	if got := count.Load(); got != 1 {
		t.Errorf("loader called %d times but want 1", got)
	}
}

func TestRegister(t *testing.T) {
	loader, count := countingLoader(emptyBundle)
	reg := decomp.NewRegistry(decomp.WithLoader(loader))
	s := schema.MustParse("aten::square(Tensor self) -> Tensor")
	g := compile(t, "func f(x Tensor) Tensor { return x * x }")
	reg.Register(s, g)
	got, ok := reg.Decomposition(s)
	if !ok || got != g {
		t.Errorf("got decomposition %p, %v but want the registered graph %p", got, ok, g)
	}
	// The schema only needs to have the same signature.
	same := schema.MustParse("aten::square(Tensor input) -> Tensor")
	fn, ok := reg.DecompositionFunction(same)
	if !ok {
		t.Fatalf("decomposition function not found")
	}
	if fn.Graph() != g {
		t.Errorf("decomposition function does not execute the registered graph")
	}
	if fn.Mode() != executor.ModeSimple {
		t.Errorf("got mode %s but want %s", fn.Mode(), executor.ModeSimple)
	}
	// Registering again overwrites the previous decomposition.
	g2 := compile(t, "func f(x Tensor) Tensor { return x * x * 1 }")
	reg.Register(s, g2)
	if got, _ := reg.Decomposition(s); got != g2 {
		t.Errorf("registering a decomposition should overwrite the previous one")
	}
	if got := count.Load(); got != 1 {
		t.Errorf("loader called %d times but want 1", got)
	}
	if diff := cmp.Diff([]string{"aten::square(Tensor) -> Tensor"}, reg.Signatures()); diff != "" {
		t.Errorf("unexpected signatures (-want +got):\n%s", diff)
	}
}

func TestFunctionModeIsReset(t *testing.T) {
	reg := decomp.NewRegistry()
	s := schema.MustParse("aten::var(Tensor self, bool unbiased=True) -> Tensor")
	fn, ok := reg.DecompositionFunction(s)
	if !ok {
		t.Fatalf("decomposition of %s not found", s)
	}
	fn.SetInitialExecutionMode(executor.ModeProfiling)
	fn, _ = reg.DecompositionFunction(s)
	if fn.Mode() != executor.ModeSimple {
		t.Errorf("got mode %s but want %s", fn.Mode(), executor.ModeSimple)
	}
}

func argsFor(t *testing.T, s *schema.FunctionSchema, unbiased bool) []values.Value {
	tensors := []values.Value{
		values.Vector(1, 2, 3, 4),
		values.Vector(2, 4, 6, 8),
		values.Vector(4, 3, 2, 1),
	}
	var args []values.Value
	for _, arg := range s.Arguments {
		switch arg.Type {
		case values.TensorType:
			args = append(args, tensors[0])
			tensors = tensors[1:]
		case values.BoolType:
			args = append(args, values.Bool(unbiased))
		case values.ScalarType:
			args = append(args, values.Float(0.5))
		default:
			t.Fatalf("unsupported argument type %s", arg.Type)
		}
	}
	return args
}

func TestBuiltinDecompositions(t *testing.T) {
	reg := decomp.NewRegistry()
	if err := reg.Load(); err != nil {
		t.Fatalf("cannot load builtin decompositions:\n%+v", err)
	}
	for _, entry := range builtin.Manifest() {
		op, err := ops.Builtins().ForLiteral(entry.Schema)
		if err != nil {
			t.Fatal(err)
		}
		fn, ok := reg.DecompositionFunction(op.Schema)
		if !ok {
			t.Errorf("no decomposition for %s", entry.Schema)
			continue
		}
		for _, unbiased := range []bool{true, false} {
			args := argsFor(t, op.Schema, unbiased)
			got, err := fn.Run(args)
			if err != nil {
				t.Errorf("%s: %+v", entry.Function, err)
				continue
			}
			want, err := op.Call(args)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(want) {
				t.Fatalf("%s: got %d results but want %d", entry.Function, len(got), len(want))
			}
			for i := range want {
				if !values.AllClose(got[i], want[i], 1e-9) {
					t.Errorf("%s%v: result %d: got %v but want %v", entry.Function, args, i, got[i], want[i])
				}
			}
		}
	}
}

func TestRunDecompositions(t *testing.T) {
	g := compile(t, `
func f(x Tensor, y Tensor) Tensor {
	z := aten.square(x)
	return z + y
}
`)
	x, y := values.Vector(1, 2, 3), values.Vector(1, 1, 1)
	before := run(t, g, x, y)
	if err := decomp.RunDecompositions(g); err != nil {
		t.Fatal(err)
	}
	const want = `graph(%x : Tensor, %y : Tensor):
  %0 : Tensor = aten::mul(%x, %x)
  %1 : Tensor = aten::add(%0, %y)
  return (%1)
`
	checkGraph(t, g, want)
	if after := run(t, g, x, y); !values.AllClose(before[0], after[0], 0) {
		t.Errorf("decomposition changed the result: got %v but want %v", after, before)
	}
	// No decomposable node remains.
	if err := decomp.RunDecompositions(g); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, want)
}

func TestRunDecompositionsWithCleanup(t *testing.T) {
	g := compile(t, `
func f(x Tensor) Tensor {
	return op("aten::var", x)
}
`)
	x := values.Vector(1, 2, 4, 8)
	before := run(t, g, x)
	reg := decomp.NewRegistry()
	if err := reg.RunDecompositions(g); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, `graph(%x : Tensor):
  %mean : Tensor = aten::mean(%x)
  %diff : Tensor = aten::sub(%x, %mean)
  %n : int = aten::numel(%x)
  %0 : int = prim::Constant[value=1]()
  %n.1 : int = aten::sub(%n, %0)
  %1 : Tensor = aten::mul(%diff, %diff)
  %2 : Tensor = aten::sum(%1)
  %3 : Tensor = aten::div(%2, %n.1)
  return (%3)
`)
	if after := run(t, g, x); !values.AllClose(before[0], after[0], 1e-12) {
		t.Errorf("decomposition changed the result: got %v but want %v", after, before)
	}
}

func TestRunDecompositionsNestedBlocks(t *testing.T) {
	g := compile(t, `
func f(x Tensor, c bool) Tensor {
	y := x
	if c {
		y = aten.square(x)
	}
	return y
}
`)
	if err := decomp.NewRegistry().RunDecompositions(g); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, `graph(%x : Tensor, %c : bool):
  %y : Tensor = prim::If(%c)
    block0():
      %0 : Tensor = aten::mul(%x, %x)
      -> (%0)
    block1():
      -> (%x)
  return (%y)
`)
}

func TestArityMismatch(t *testing.T) {
	loader, _ := countingLoader(emptyBundle)
	reg := decomp.NewRegistry(decomp.WithLoader(loader))
	// aten::var_mean returns two values but its decomposition only one.
	reg.Register(
		schema.MustParse("aten::var_mean(Tensor self, bool unbiased=True) -> (Tensor, Tensor)"),
		compile(t, "func f(x Tensor, unbiased bool) Tensor { return x }"),
	)
	g := compile(t, `
func f(x Tensor) Tensor {
	v, m := op("aten::var_mean", x, true)
	return v + m
}
`)
	want := g.String()
	err := reg.RunDecompositions(g)
	if !fmterr.IsInternal(err) {
		t.Fatalf("got error %v but want an internal error", err)
	}
	checkGraph(t, g, want)
}

func TestDecompositionExecutor(t *testing.T) {
	reg := decomp.NewRegistry()
	fn, err := reg.DecompositionExecutor("aten::addcmul(Tensor self, Tensor tensor1, Tensor tensor2, Scalar value=1) -> Tensor")
	if err != nil {
		t.Fatal(err)
	}
	x := values.Vector(1, 2)
	got, err := fn.Run([]values.Value{x, x, x, values.Int(2)})
	if err != nil {
		t.Fatal(err)
	}
	if want := values.Vector(3, 10); !values.AllClose(got[0], want, 0) {
		t.Errorf("got %v but want %v", got[0], want)
	}
	for _, literal := range []string{
		"aten::unknown(Tensor self) -> Tensor",
		"aten::add(Tensor self, Tensor other) -> Tensor",
		"not a schema",
	} {
		if _, err := reg.DecompositionExecutor(literal); !fmterr.IsInternal(err) {
			t.Errorf("%q: got error %v but want an internal error", literal, err)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		entries []builtin.Entry
		want    string
		fatal   bool
	}{
		{
			name:  "version",
			src:   "//jit:bundle v2.0.0\n\npackage p\n",
			want:  "bundle version v2.0.0 not supported",
			fatal: true,
		},
		{
			name:  "missing version",
			src:   "package p\n",
			want:  "missing //jit:bundle directive",
			fatal: true,
		},
		{
			name:    "missing function",
			src:     emptyBundle,
			entries: []builtin.Entry{{Schema: "aten::square(Tensor self) -> Tensor", Function: "square"}},
			want:    "function square decomposing aten::square(Tensor) -> Tensor not found",
		},
		{
			name:  "compilation",
			src:   emptyBundle + "\nfunc f(x Tensor) Tensor { return y }\n",
			want:  "undefined: y",
			fatal: true,
		},
	}
	for _, test := range tests {
		loader, count := countingLoader(test.src, test.entries...)
		reg := decomp.NewRegistry(decomp.WithLoader(loader))
		err := reg.Load()
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got error %v but want an error containing %q", test.name, err, test.want)
			continue
		}
		if reg.Load() != err {
			t.Errorf("%s: second load should return the error of the first load", test.name)
		}
		if got := count.Load(); got != 1 {
			t.Errorf("%s: loader called %d times but want 1", test.name, got)
		}
		func() {
			defer func() {
				r := recover()
				if !test.fatal {
					if r != nil {
						t.Errorf("%s: unexpected panic: %v", test.name, r)
					}
					return
				}
				if err, ok := r.(error); !ok || !fmterr.IsInternal(err) {
					t.Errorf("%s: got panic %v but want an internal error", test.name, r)
				}
			}()
			reg.Decomposition(schema.MustParse("aten::square(Tensor self) -> Tensor"))
		}()
	}
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	src := emptyBundle + `
func square(self Tensor) Tensor {
	return self * self
}
`
	loader, count := countingLoader(src,
		builtin.Entry{Schema: "aten::square(Tensor self) -> Tensor", Function: "square"},
		builtin.Entry{Schema: "aten::std(Tensor self, bool unbiased=True) -> Tensor", Function: "missing"},
		builtin.Entry{Schema: "aten::sqrt(Tensor self) -> Tensor", Function: "square"},
		builtin.Entry{Schema: "not a schema", Function: "square"},
	)
	var logs bytes.Buffer
	logger, err := jitlog.New(&logs, jitlog.LevelWarn, jitlog.FormatText)
	if err != nil {
		t.Fatal(err)
	}
	reg := decomp.NewRegistry(decomp.WithLoader(loader), decomp.WithLogger(logger))
	err = reg.Load()
	if err == nil || !strings.Contains(err.Error(), "function missing decomposing aten::std(Tensor, bool) -> Tensor not found") {
		t.Errorf("got error %v but want an error reporting the missing function", err)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Errorf("got %d errors but want 2:\n%v", got, err)
	}
	if !strings.Contains(logs.String(), "skipping decomposition") {
		t.Errorf("invalid entries have not been logged:\n%s", logs.String())
	}
	// Valid entries are installed and lookups do not panic.
	if _, ok := reg.Decomposition(schema.MustParse("aten::square(Tensor self) -> Tensor")); !ok {
		t.Errorf("decomposition of aten::square not found")
	}
	if _, ok := reg.Decomposition(schema.MustParse("aten::std(Tensor self, bool unbiased=True) -> Tensor")); ok {
		t.Errorf("unexpected decomposition of aten::std")
	}
	want := []string{
		"aten::sqrt(Tensor) -> Tensor",
		"aten::square(Tensor) -> Tensor",
	}
	if diff := cmp.Diff(want, reg.Signatures()); diff != "" {
		t.Errorf("unexpected signatures (-want +got):\n%s", diff)
	}
	if reg.Load() != err {
		t.Errorf("second load should return the error of the first load")
	}
	if got := count.Load(); got != 1 {
		t.Errorf("loader called %d times but want 1", got)
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.jit")
	src := `//jit:bundle v1.0.0

package user

//jit:decompose aten::square(Tensor self) -> Tensor
func square(x Tensor) Tensor {
	return aten.mul(x, x)
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := decomp.NewRegistry(decomp.WithLoader(decomp.FileLoader(path)))
	if err := reg.Load(); err != nil {
		t.Fatalf("%+v", err)
	}
	if diff := cmp.Diff([]string{"aten::square(Tensor) -> Tensor"}, reg.Signatures()); diff != "" {
		t.Errorf("unexpected signatures (-want +got):\n%s", diff)
	}
	missing := decomp.NewRegistry(decomp.WithLoader(decomp.FileLoader(filepath.Join(t.TempDir(), "missing.jit"))))
	if err := missing.Load(); err == nil {
		t.Errorf("expected an error when loading a missing file")
	}
}

func TestConcurrentAccess(t *testing.T) {
	loader, count := countingLoader(emptyBundle)
	reg := decomp.NewRegistry(decomp.WithLoader(loader))
	g := compile(t, "func f(x Tensor) Tensor { return x }")
	const workers = 8
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := schema.MustParse(fmt.Sprintf("test::op%d(Tensor self) -> Tensor", i))
			reg.Decomposition(s)
			reg.Register(s, g)
			if _, ok := reg.Decomposition(s); !ok {
				t.Errorf("decomposition of %s not found after registration", s)
			}
		}()
	}
	wg.Wait()
	if got := count.Load(); got != 1 {
		t.Errorf("loader called %d times but want 1", got)
	}
	if got := len(reg.Signatures()); got != workers {
		t.Errorf("got %d decompositions but want %d", got, workers)
	}
}

func TestDefault(t *testing.T) {
	if decomp.Default() != decomp.Default() {
		t.Errorf("the default registry should be created once")
	}
}
