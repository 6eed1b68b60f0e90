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

package graph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/interp/values"
)

func lookup(t *testing.T, name string, nargs int) *ops.Operator {
	t.Helper()
	op, ok := ops.Builtins().Lookup(name, nargs)
	if !ok {
		t.Fatalf("operator %s not found", name)
	}
	return op
}

func insertCall(t *testing.T, g *graph.Graph, name string, inputs ...*graph.Value) *graph.Node {
	t.Helper()
	n, err := g.InsertCall(lookup(t, name, len(inputs)), inputs)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func checkGraph(t *testing.T, g *graph.Graph, want string) {
	t.Helper()
	if err := g.Check(); err != nil {
		t.Errorf("graph is inconsistent: %v\n%s", err, g)
	}
	if diff := cmp.Diff(want, g.String()); diff != "" {
		t.Errorf("unexpected graph (-want +got):\n%s", diff)
	}
}

// newIfGraph returns a graph computing: if c { -x } else { x }
func newIfGraph(t *testing.T) (*graph.Graph, *graph.Node) {
	g := graph.New()
	c := g.AddInput("bool", "c")
	x := g.AddInput("Tensor", "x")
	ifNode, err := g.Insert(g.Create(graph.KindIf, []*graph.Value{c}, "Tensor"))
	if err != nil {
		t.Fatal(err)
	}
	then := ifNode.AddBlock()
	els := ifNode.AddBlock()
	if err := g.WithInsertPoint(then.ReturnNode(), func() error {
		then.RegisterOutput(insertCall(t, g, "aten::neg", x).Output())
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	els.RegisterOutput(x)
	g.RegisterOutput(ifNode.Output())
	return g, ifNode
}

const ifGraph = `graph(%c : bool, %x : Tensor):
  %0 : Tensor = prim::If(%c)
    block0():
      %1 : Tensor = aten::neg(%x)
      -> (%1)
    block1():
      -> (%x)
  return (%0)
`

func TestBuild(t *testing.T) {
	g := graph.New()
	x := g.AddInput("Tensor", "x")
	one, err := g.InsertConstant(values.Int(1))
	if err != nil {
		t.Fatal(err)
	}
	sum := insertCall(t, g, "aten::add", x, one)
	g.RegisterOutput(sum.Output())
	checkGraph(t, g, `graph(%x : Tensor):
  %0 : int = prim::Constant[value=1]()
  %1 : Tensor = aten::add(%x, %0)
  return (%1)
`)
	if got, ok := one.Constant(); !ok || got != values.Int(1) {
		t.Errorf("got constant %v, %v but want 1", got, ok)
	}
	if got := g.Block().Len(); got != 2 {
		t.Errorf("got %d nodes but want 2", got)
	}
}

func TestNestedBlocks(t *testing.T) {
	g, _ := newIfGraph(t)
	checkGraph(t, g, ifGraph)
}

func TestCopy(t *testing.T) {
	g, ifNode := newIfGraph(t)
	c := g.Copy()
	checkGraph(t, c, ifGraph)
	// Modifying the original does not change the copy.
	ifNode.Output().ReplaceAllUsesWith(g.Inputs()[1])
	if err := ifNode.Destroy(); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, `graph(%c : bool, %x : Tensor):
  return (%x)
`)
	checkGraph(t, c, ifGraph)
}

func TestDestroyUsedNode(t *testing.T) {
	g, ifNode := newIfGraph(t)
	err := ifNode.Destroy()
	if !fmterr.IsMalformedInput(err) {
		t.Errorf("got error %v but want a malformed input error", err)
	}
	checkGraph(t, g, ifGraph)
}

func TestInsertGraph(t *testing.T) {
	square := graph.New()
	a := square.AddInput("Tensor", "a")
	square.RegisterOutput(insertCall(t, square, "aten::mul", a, a).Output())

	g := graph.New()
	x := g.AddInput("Tensor", "x")
	call := insertCall(t, g, "aten::square", x)
	g.RegisterOutput(insertCall(t, g, "aten::add", call.Output(), x).Output())

	var outs []*graph.Value
	if err := g.WithInsertPoint(call, func() (err error) {
		outs, err = graph.InsertGraph(g, square, []*graph.Value{x})
		return err
	}); err != nil {
		t.Fatal(err)
	}
	call.Output().ReplaceAllUsesWith(outs[0])
	if err := call.Destroy(); err != nil {
		t.Fatal(err)
	}
	checkGraph(t, g, `graph(%x : Tensor):
  %0 : Tensor = aten::mul(%x, %x)
  %1 : Tensor = aten::add(%0, %x)
  return (%1)
`)
	// The callee is left untouched.
	checkGraph(t, square, `graph(%a : Tensor):
  %0 : Tensor = aten::mul(%a, %a)
  return (%0)
`)
	if _, err := graph.InsertGraph(g, square, nil); err == nil {
		t.Errorf("expected an error when the number of inputs does not match")
	}
}

func TestSplice(t *testing.T) {
	g, ifNode := newIfGraph(t)
	then := ifNode.Blocks()[0]
	// Move the negation before the if.
	if err := g.Block().Splice(ifNode, then); err != nil {
		t.Fatal(err)
	}
	if !then.Empty() {
		t.Errorf("source block should be empty after a splice")
	}
	checkGraph(t, g, `graph(%c : bool, %x : Tensor):
  %0 : Tensor = aten::neg(%x)
  %1 : Tensor = prim::If(%c)
    block0():
      -> (%0)
    block1():
      -> (%x)
  return (%1)
`)
	if first := g.Block().First(); first.Owner() != g.Block() {
		t.Errorf("spliced node is not owned by its new block")
	}
}

func TestSpliceErrors(t *testing.T) {
	g, ifNode := newIfGraph(t)
	then := ifNode.Blocks()[0]
	tests := []struct {
		name   string
		dst    *graph.Block
		before *graph.Node
		src    *graph.Block
	}{
		{name: "itself", dst: g.Block(), before: ifNode, src: g.Block()},
		{name: "ancestor", dst: then, before: then.ReturnNode(), src: g.Block()},
		{name: "position", dst: then, before: ifNode, src: ifNode.Blocks()[1]},
	}
	for _, test := range tests {
		if err := test.dst.Splice(test.before, test.src); !fmterr.IsMalformedInput(err) {
			t.Errorf("%s: got error %v but want a malformed input error", test.name, err)
		}
	}
	checkGraph(t, g, ifGraph)
}

func TestInsertErrors(t *testing.T) {
	g, ifNode := newIfGraph(t)
	if err := ifNode.InsertAfter(g.Block().ReturnNode()); !fmterr.IsMalformedInput(err) {
		t.Errorf("inserting an attached node: got %v but want a malformed input error", err)
	}
	other := graph.New()
	if err := other.SetInsertPoint(ifNode); !fmterr.IsMalformedInput(err) {
		t.Errorf("setting an insertion point from another graph: got %v", err)
	}
}

func TestPrintAttributesSorted(t *testing.T) {
	g := graph.New()
	n := g.Create("test::attrs", nil, values.IntType)
	n.SetAttr("z", values.Float(2.5))
	n.SetAttr("a", values.Int(1))
	n.SetAttr("m", values.Bool(true))
	if _, err := g.Insert(n); err != nil {
		t.Fatal(err)
	}
	g.RegisterOutput(n.Output())
	checkGraph(t, g, `graph():
  %0 : int = test::attrs[a=1, m=true, z=2.5]()
  return (%0)
`)
}
