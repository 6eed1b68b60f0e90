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

package graph

import (
	"maps"
	"slices"
	"strconv"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/build/schema"
	"github.com/gx-org/jit/interp/values"
	"github.com/pkg/errors"
)

type (
	// Node is an operation in a graph.
	Node struct {
		graph   *Graph
		kind    string
		op      *ops.Operator
		inputs  []*Value
		outputs []*Value
		blocks  []*Block
		attrs   map[string]values.Value

		block      *Block
		prev, next *Node
	}

	// Value is produced by a node and consumed by other nodes.
	Value struct {
		node   *Node
		offset int
		typ    string
		name   string
		id     int
		uses   []Use
	}

	// Use of a value by a node.
	Use struct {
		User   *Node
		Offset int
	}
)

// Kind of the node.
func (n *Node) Kind() string { return n.kind }

// Op returns the operator called by the node, or nil for primitive nodes.
func (n *Node) Op() *ops.Operator { return n.op }

// Schema returns the schema of the operator called by the node, or nil
// for primitive nodes.
func (n *Node) Schema() *schema.FunctionSchema {
	if n.op == nil {
		return nil
	}
	return n.op.Schema
}

// Graph owning the node.
func (n *Node) Graph() *Graph { return n.graph }

// Owner returns the block in which the node has been inserted, or nil.
func (n *Node) Owner() *Block { return n.block }

// Inputs of the node.
func (n *Node) Inputs() []*Value { return slices.Clone(n.inputs) }

// Input returns the ith input of the node.
func (n *Node) Input(i int) *Value { return n.inputs[i] }

// Outputs of the node.
func (n *Node) Outputs() []*Value { return slices.Clone(n.outputs) }

// Output returns the single output of the node.
// It panics if the node does not have exactly one output.
func (n *Node) Output() *Value {
	if len(n.outputs) != 1 {
		panic(errors.Errorf("node %s has %d outputs", n, len(n.outputs)))
	}
	return n.outputs[0]
}

// Blocks nested in the node.
func (n *Node) Blocks() []*Block { return slices.Clone(n.blocks) }

// AddOutput adds an output to the node.
func (n *Node) AddOutput(typ string) *Value {
	return n.graph.newValue(n, typ)
}

// AddBlock adds a nested block to the node.
func (n *Node) AddBlock() *Block {
	b := newBlock(n.graph, n)
	n.blocks = append(n.blocks, b)
	return b
}

// Attr returns the value of an attribute.
func (n *Node) Attr(name string) (values.Value, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// SetAttr sets the value of an attribute.
func (n *Node) SetAttr(name string, v values.Value) {
	if n.attrs == nil {
		n.attrs = make(map[string]values.Value)
	}
	n.attrs[name] = v
}

// Next returns the next node in the block or nil if n is the last node.
func (n *Node) Next() *Node {
	if n.next == nil || n.block == nil || n.next == n.block.ret {
		return nil
	}
	return n.next
}

// Prev returns the previous node in the block or nil if n is the first node.
func (n *Node) Prev() *Node {
	if n.prev == nil || n.block == nil || n.prev == n.block.params {
		return nil
	}
	return n.prev
}

func (n *Node) addInput(v *Value) {
	v.uses = append(v.uses, Use{User: n, Offset: len(n.inputs)})
	n.inputs = append(n.inputs, v)
}

// ReplaceInput replaces the ith input of the node.
func (n *Node) ReplaceInput(i int, v *Value) {
	n.inputs[i].removeUse(n, i)
	n.inputs[i] = v
	v.uses = append(v.uses, Use{User: n, Offset: i})
}

func (n *Node) insertBefore(anchor *Node) {
	n.prev = anchor.prev
	n.next = anchor
	anchor.prev.next = n
	anchor.prev = n
	n.block = anchor.block
}

func (n *Node) unlink() {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next, n.block = nil, nil, nil
}

func (n *Node) checkInsert(anchor *Node) error {
	if n.block != nil {
		return fmterr.MalformedInput("node already inserted in a block", n)
	}
	if anchor.block == nil {
		return fmterr.MalformedInput("anchor is not in a block", anchor)
	}
	if anchor.block.graph != n.graph {
		return fmterr.MalformedInput("anchor belongs to a different graph", anchor)
	}
	return nil
}

// InsertBefore inserts a detached node before anchor.
func (n *Node) InsertBefore(anchor *Node) error {
	if err := n.checkInsert(anchor); err != nil {
		return err
	}
	if anchor.kind == KindParam && anchor == anchor.block.params {
		return fmterr.MalformedInput("cannot insert before the parameters of a block", anchor)
	}
	n.insertBefore(anchor)
	return nil
}

// InsertAfter inserts a detached node after anchor.
func (n *Node) InsertAfter(anchor *Node) error {
	if err := n.checkInsert(anchor); err != nil {
		return err
	}
	if anchor == anchor.block.ret {
		return fmterr.MalformedInput("cannot insert after the return of a block", anchor)
	}
	n.insertBefore(anchor.next)
	return nil
}

// Destroy removes the node from its block and releases its inputs.
// None of the outputs of the node can still be used.
func (n *Node) Destroy() error {
	if n.block != nil && (n == n.block.params || n == n.block.ret) {
		return fmterr.MalformedInput("cannot destroy the parameters or the return of a block", n)
	}
	for _, out := range n.outputs {
		if len(out.uses) > 0 {
			return fmterr.MalformedInput("cannot destroy a node with used outputs", n)
		}
	}
	n.destroy()
	return nil
}

func (n *Node) destroy() {
	for _, b := range n.blocks {
		b.clear()
	}
	for i, in := range n.inputs {
		in.removeUse(n, i)
	}
	n.inputs = nil
	if n.block != nil {
		n.unlink()
	}
}

// HasUses returns true if any of the outputs of the node is used.
func (n *Node) HasUses() bool {
	for _, out := range n.outputs {
		if len(out.uses) > 0 {
			return true
		}
	}
	return false
}

func (n *Node) String() string {
	if n.op != nil {
		return n.op.Schema.Signature()
	}
	return n.kind
}

// Node producing the value.
func (v *Value) Node() *Node { return v.node }

// Offset of the value in the outputs of its node.
func (v *Value) Offset() int { return v.offset }

// Type of the value.
func (v *Value) Type() string { return v.typ }

// SetType sets the type of the value.
func (v *Value) SetType(typ string) { v.typ = typ }

// Name returns the debug name of the value.
func (v *Value) Name() string { return v.name }

// SetName sets the debug name of the value.
func (v *Value) SetName(name string) *Value {
	v.name = name
	return v
}

// Uses of the value.
func (v *Value) Uses() []Use { return slices.Clone(v.uses) }

// HasUses returns true if the value is used by at least one node.
func (v *Value) HasUses() bool { return len(v.uses) > 0 }

// Constant returns the value of a constant node.
func (v *Value) Constant() (values.Value, bool) {
	if v.node == nil || v.node.kind != KindConstant {
		return nil, false
	}
	return v.node.Attr(ValueAttr)
}

func (v *Value) hasUse(user *Node, offset int) bool {
	return slices.Contains(v.uses, Use{User: user, Offset: offset})
}

func (v *Value) removeUse(user *Node, offset int) {
	i := slices.Index(v.uses, Use{User: user, Offset: offset})
	if i < 0 {
		return
	}
	v.uses = slices.Delete(v.uses, i, i+1)
}

// ReplaceAllUsesWith makes every user of v use w instead.
func (v *Value) ReplaceAllUsesWith(w *Value) {
	if v == w {
		return
	}
	for _, use := range v.uses {
		use.User.inputs[use.Offset] = w
		w.uses = append(w.uses, use)
	}
	v.uses = nil
}

func (v *Value) String() string {
	if v.name != "" {
		return "%" + v.name
	}
	return "%" + strconv.Itoa(v.id)
}

func cloneAttrs(attrs map[string]values.Value) map[string]values.Value {
	if attrs == nil {
		return nil
	}
	return maps.Clone(attrs)
}
