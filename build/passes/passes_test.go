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

package passes_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/importer"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/build/passes"
)

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

func TestPeephole(t *testing.T) {
	g := compile(t, `
func f(x Tensor) Tensor {
	y := x
	if true {
		y = -x
	}
	return y + 0
}
`)
	changed, err := passes.Peephole(g)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Errorf("peephole should report a change")
	}
	checkGraph(t, g, `graph(%x : Tensor):
  %y : Tensor = aten::neg(%x)
  return (%y)
`)
	if changed, err = passes.Peephole(g); err != nil || changed {
		t.Errorf("second peephole: got %v, %v but want no change", changed, err)
	}
}

func TestPeepholeFalseBranch(t *testing.T) {
	g := compile(t, `
func f(x Tensor) Tensor {
	y := x
	if false {
		y = -x
	} else {
		y = x * 1
	}
	return y
}
`)
	if _, err := passes.Peephole(g); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, `graph(%x : Tensor):
  return (%x)
`)
}

func TestPeepholePreservesTypes(t *testing.T) {
	const want = `graph(%x : int):
  %0 : int = prim::Constant[value=1]()
  %1 : float = aten::div(%x, %0)
  return (%1)
`
	g := compile(t, `
func f(x int) float {
	return x / 1
}
`)
	checkGraph(t, g, want)
	changed, err := passes.Peephole(g)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Errorf("peephole should not change a division converting an int to a float")
	}
	checkGraph(t, g, want)
}

func TestConstantPropagation(t *testing.T) {
	g := compile(t, `
func f(x Tensor) Tensor {
	n := 2 * 3
	if n > 5 {
		n = n + 1
	}
	return x * n
}
`)
	changed, err := passes.ConstantPropagation(ops.Builtins(), g)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Errorf("constant propagation should report a change")
	}
	if _, err := passes.Peephole(g); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, `graph(%x : Tensor):
  %n : int = prim::Constant[value=7]()
  %0 : Tensor = aten::mul(%x, %n)
  return (%0)
`)
}

func TestConstantPropagationFailure(t *testing.T) {
	const want = `graph():
  %0 : bool = prim::Constant[value=true]()
  %1 : Tensor = aten::sqrt(%0)
  return (%1)
`
	g := compile(t, `
func f() Tensor {
	return aten.sqrt(true)
}
`)
	changed, err := passes.ConstantPropagation(ops.Builtins(), g)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Errorf("a node failing to evaluate should be left unchanged")
	}
	checkGraph(t, g, want)
}

func TestConstantPropagationRegistry(t *testing.T) {
	g := compile(t, `
func f() int {
	return 2 + 3
}
`)
	changed, err := passes.ConstantPropagation(ops.NewRegistry(), g)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Errorf("operators missing from the registry should not be evaluated")
	}
}
