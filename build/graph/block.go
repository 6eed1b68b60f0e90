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
	"iter"
	"slices"

	"github.com/gx-org/jit/build/fmterr"
)

// Block is a list of nodes with inputs and outputs.
type Block struct {
	graph  *Graph
	owner  *Node
	params *Node
	ret    *Node
}

func newBlock(g *Graph, owner *Node) *Block {
	b := &Block{graph: g, owner: owner}
	b.params = &Node{graph: g, kind: KindParam, block: b}
	b.ret = &Node{graph: g, kind: KindReturn, block: b}
	b.params.next = b.ret
	b.ret.prev = b.params
	return b
}

// Graph owning the block.
func (b *Block) Graph() *Graph { return b.graph }

// Owner returns the node owning the block or nil for the top-level block.
func (b *Block) Owner() *Node { return b.owner }

// ParamNode returns the node producing the inputs of the block.
func (b *Block) ParamNode() *Node { return b.params }

// ReturnNode returns the node consuming the outputs of the block.
func (b *Block) ReturnNode() *Node { return b.ret }

// Inputs of the block.
func (b *Block) Inputs() []*Value { return slices.Clone(b.params.outputs) }

// Outputs of the block.
func (b *Block) Outputs() []*Value { return slices.Clone(b.ret.inputs) }

// AddInput adds an input to the block.
func (b *Block) AddInput(typ, name string) *Value {
	return b.graph.newValue(b.params, typ).SetName(name)
}

// RegisterOutput adds an output to the block and returns its index.
func (b *Block) RegisterOutput(v *Value) int {
	b.ret.addInput(v)
	return len(b.ret.inputs) - 1
}

// First returns the first node of the block or nil if the block is empty.
func (b *Block) First() *Node {
	return b.params.Next()
}

// Last returns the last node of the block or nil if the block is empty.
func (b *Block) Last() *Node {
	return b.ret.Prev()
}

// Empty returns true if the block has no nodes.
func (b *Block) Empty() bool {
	return b.params.next == b.ret
}

// Nodes iterates over the nodes of the block. The next node is fetched
// before yielding, so the yielded node can be destroyed.
func (b *Block) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for n := b.First(); n != nil; {
			next := n.Next()
			if !yield(n) {
				return
			}
			n = next
		}
	}
}

// Len returns the number of nodes in the block.
func (b *Block) Len() int {
	num := 0
	for range b.Nodes() {
		num++
	}
	return num
}

// Append a detached node at the end of the block.
func (b *Block) Append(n *Node) error {
	return n.InsertBefore(b.ret)
}

// Prepend a detached node at the beginning of the block.
func (b *Block) Prepend(n *Node) error {
	return n.InsertAfter(b.params)
}

// encloses returns true if b is other or if b is nested in other.
func (b *Block) encloses(other *Block) bool {
	for cur := b; cur != nil; {
		if cur == other {
			return true
		}
		if cur.owner == nil {
			return false
		}
		cur = cur.owner.block
	}
	return false
}

// Splice moves all the nodes of other before the node before, which must
// be a node of b or its return node. The nodes are re-owned by b and
// other is left empty. Inputs and outputs of other are left untouched.
func (b *Block) Splice(before *Node, other *Block) error {
	if before.block != b {
		return fmterr.MalformedInput("splice position is not in the block", before)
	}
	if before == b.params {
		return fmterr.MalformedInput("cannot splice before the parameters of a block", before)
	}
	if other.graph != b.graph {
		return fmterr.MalformedInput("cannot splice a block of another graph", other)
	}
	if b.encloses(other) {
		return fmterr.MalformedInput("cannot splice a block into itself or into one of its descendants", other)
	}
	for n := range other.Nodes() {
		n.unlink()
		n.insertBefore(before)
	}
	return nil
}

// clear destroys all the nodes of the block and its outputs.
func (b *Block) clear() {
	for i, out := range b.ret.inputs {
		out.removeUse(b.ret, i)
	}
	b.ret.inputs = nil
	for n := b.ret.prev; n != b.params; {
		prev := n.prev
		n.destroy()
		n = prev
	}
}
