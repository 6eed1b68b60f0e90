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

// Package graph is the SSA graph IR on which decompositions operate.
//
// A graph is made of a top-level block. A block is a linked list of nodes
// between a parameter node, whose outputs are the inputs of the block,
// and a return node, whose inputs are the outputs of the block. Nodes
// consume values and produce values. Nodes such as prim::If own nested
// blocks. Every value keeps track of its uses.
package graph

import (
	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/interp/values"
	"github.com/pkg/errors"
)

// Kinds of the primitive nodes.
const (
	KindParam    = "prim::Param"
	KindReturn   = "prim::Return"
	KindConstant = "prim::Constant"
	KindIf       = "prim::If"
)

// ValueAttr is the name of the attribute storing the value of a constant.
const ValueAttr = "value"

// Graph is a function represented as an SSA graph.
type Graph struct {
	top         *Block
	insertPoint *Node
	nextID      int
}

// New returns an empty graph. Nodes are inserted at the end of its
// top-level block until the insertion point is changed.
func New() *Graph {
	g := &Graph{}
	g.top = newBlock(g, nil)
	g.insertPoint = g.top.ret
	return g
}

// Block returns the top-level block of the graph.
func (g *Graph) Block() *Block {
	return g.top
}

// Inputs returns the inputs of the graph.
func (g *Graph) Inputs() []*Value {
	return g.top.Inputs()
}

// Outputs returns the outputs of the graph.
func (g *Graph) Outputs() []*Value {
	return g.top.Outputs()
}

// AddInput adds an input to the graph.
func (g *Graph) AddInput(typ, name string) *Value {
	return g.top.AddInput(typ, name)
}

// RegisterOutput adds an output to the graph and returns its index.
func (g *Graph) RegisterOutput(v *Value) int {
	return g.top.RegisterOutput(v)
}

func (g *Graph) newValue(n *Node, typ string) *Value {
	v := &Value{node: n, offset: len(n.outputs), typ: typ, id: g.nextID}
	g.nextID++
	n.outputs = append(n.outputs, v)
	return v
}

// InsertPoint returns the node before which new nodes are inserted.
func (g *Graph) InsertPoint() *Node {
	return g.insertPoint
}

// SetInsertPoint sets the node before which new nodes are inserted.
func (g *Graph) SetInsertPoint(n *Node) error {
	if n.block == nil || n.block.graph != g {
		return fmterr.MalformedInput("insertion point is not a node of the graph", n)
	}
	if n.kind == KindParam {
		return fmterr.MalformedInput("cannot insert before the parameters of a block", n)
	}
	g.insertPoint = n
	return nil
}

// SetInsertPointEnd sets the insertion point at the end of a block.
func (g *Graph) SetInsertPointEnd(b *Block) error {
	return g.SetInsertPoint(b.ret)
}

// WithInsertPoint calls f with the insertion point set to n.
// The previous insertion point is restored when f returns.
func (g *Graph) WithInsertPoint(n *Node, f func() error) error {
	prev := g.insertPoint
	if err := g.SetInsertPoint(n); err != nil {
		return err
	}
	defer func() { g.insertPoint = prev }()
	return f()
}

// Create returns a new node of the given kind, detached from any block.
func (g *Graph) Create(kind string, inputs []*Value, outTypes ...string) *Node {
	n := &Node{graph: g, kind: kind}
	for _, in := range inputs {
		n.addInput(in)
	}
	for _, typ := range outTypes {
		g.newValue(n, typ)
	}
	return n
}

// CreateCall returns a new node calling an operator. The types of the
// outputs are given by the schema of the operator unless outTypes is specified.
func (g *Graph) CreateCall(op *ops.Operator, inputs []*Value, outTypes ...string) *Node {
	if len(outTypes) == 0 {
		for _, ret := range op.Schema.Returns {
			outTypes = append(outTypes, ret.Type)
		}
	}
	n := g.Create(op.Name(), inputs, outTypes...)
	n.op = op
	return n
}

// CreateConstant returns a new constant node.
func (g *Graph) CreateConstant(v values.Value) *Node {
	n := g.Create(KindConstant, nil, v.Type())
	n.SetAttr(ValueAttr, v)
	return n
}

// Insert a node at the insertion point.
func (g *Graph) Insert(n *Node) (*Node, error) {
	if err := n.InsertBefore(g.insertPoint); err != nil {
		return nil, err
	}
	return n, nil
}

// InsertCall creates a node calling an operator and inserts it at the insertion point.
func (g *Graph) InsertCall(op *ops.Operator, inputs []*Value, outTypes ...string) (*Node, error) {
	return g.Insert(g.CreateCall(op, inputs, outTypes...))
}

// InsertConstant creates a constant node at the insertion point and returns its value.
func (g *Graph) InsertConstant(v values.Value) (*Value, error) {
	n, err := g.Insert(g.CreateConstant(v))
	if err != nil {
		return nil, err
	}
	return n.Output(), nil
}

// Copy returns a deep copy of the graph.
// It panics if the graph is malformed.
func (g *Graph) Copy() *Graph {
	c := New()
	env := make(map[*Value]*Value)
	for _, in := range g.Inputs() {
		env[in] = c.AddInput(in.typ, in.name)
	}
	if err := cloneNodes(c.top, g.top, env); err != nil {
		panic(fmterr.Internal(err))
	}
	for _, out := range g.Outputs() {
		c.RegisterOutput(env[out])
	}
	return c
}

// Check verifies that the uses recorded by every value match the inputs
// of the nodes in the graph.
func (g *Graph) Check() error {
	return checkBlock(g.top)
}

func checkBlock(b *Block) error {
	check := func(n *Node) error {
		if n.block != b {
			return errors.Errorf("node %s is not owned by its block", n)
		}
		for i, in := range n.inputs {
			if !in.hasUse(n, i) {
				return errors.Errorf("input %d of %s does not record its use", i, n)
			}
		}
		for _, out := range n.outputs {
			for _, use := range out.uses {
				if use.User.block == nil || use.User.inputs[use.Offset] != out {
					return errors.Errorf("output %d of %s has a stale use", out.offset, n)
				}
			}
		}
		for _, sub := range n.blocks {
			if sub.owner != n {
				return errors.Errorf("block of %s has a different owner", n)
			}
			if err := checkBlock(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(b.params); err != nil {
		return err
	}
	for n := range b.Nodes() {
		if err := check(n); err != nil {
			return err
		}
	}
	return check(b.ret)
}
