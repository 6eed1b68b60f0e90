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

// Package passes implements graph transformations used to clean up a graph
// after decompositions have been inlined.
package passes

import (
	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/interp/values"
)

// Peephole simplifies local patterns in the graph then eliminates dead code:
//   - prim::If with a constant condition is replaced by the taken branch,
//   - x+0, 0+x, x-0, x*1, 1*x and x/1 are replaced by x when the type is preserved.
//
// It returns true if the graph has been modified.
func Peephole(g *graph.Graph) (bool, error) {
	changed, err := peepholeBlock(g.Block())
	if err != nil {
		return changed, err
	}
	dce, err := EliminateDeadCode(g)
	return changed || dce, err
}

func peepholeBlock(b *graph.Block) (bool, error) {
	changed := false
	for n := range b.Nodes() {
		for _, sub := range n.Blocks() {
			subChanged, err := peepholeBlock(sub)
			if err != nil {
				return changed, err
			}
			changed = changed || subChanged
		}
		var folded bool
		var err error
		if n.Kind() == graph.KindIf {
			folded, err = foldIf(n)
		} else {
			folded, err = foldIdentity(n)
		}
		if err != nil {
			return changed, err
		}
		changed = changed || folded
	}
	return changed, nil
}

func foldIf(n *graph.Node) (bool, error) {
	cond, ok := n.Input(0).Constant()
	if !ok {
		return false, nil
	}
	taken, err := values.ToBool(cond)
	if err != nil {
		return false, nil
	}
	blocks := n.Blocks()
	if len(blocks) != 2 {
		return false, fmterr.Internalf("prim::If has %d blocks", len(blocks))
	}
	branch := blocks[1]
	if taken {
		branch = blocks[0]
	}
	if err := n.Owner().Splice(n, branch); err != nil {
		return false, err
	}
	outs := branch.Outputs()
	for i, out := range n.Outputs() {
		out.ReplaceAllUsesWith(outs[i])
	}
	return true, n.Destroy()
}

func isNumber(v *graph.Value, want float64) bool {
	cst, ok := v.Constant()
	if !ok {
		return false
	}
	switch cstT := cst.(type) {
	case values.Int:
		return float64(cstT) == want
	case values.Float:
		return float64(cstT) == want
	}
	return false
}

// identityOperand returns the operand forwarded by an identity operation.
func identityOperand(n *graph.Node) *graph.Value {
	inputs := n.Inputs()
	if len(inputs) != 2 || len(n.Outputs()) != 1 {
		return nil
	}
	x, y := inputs[0], inputs[1]
	switch n.Kind() {
	case "aten::add":
		if isNumber(y, 0) {
			return x
		}
		if isNumber(x, 0) {
			return y
		}
	case "aten::sub":
		if isNumber(y, 0) {
			return x
		}
	case "aten::mul":
		if isNumber(y, 1) {
			return x
		}
		if isNumber(x, 1) {
			return y
		}
	case "aten::div":
		if isNumber(y, 1) {
			return x
		}
	}
	return nil
}

func foldIdentity(n *graph.Node) (bool, error) {
	operand := identityOperand(n)
	if operand == nil {
		return false, nil
	}
	out := n.Output()
	if out.Type() != operand.Type() {
		return false, nil
	}
	out.ReplaceAllUsesWith(operand)
	return true, n.Destroy()
}

// EliminateDeadCode removes all the nodes whose outputs are not used.
func EliminateDeadCode(g *graph.Graph) (bool, error) {
	return eliminateDeadCode(g.Block())
}

func eliminateDeadCode(b *graph.Block) (bool, error) {
	changed := false
	for n := b.Last(); n != nil; {
		prev := n.Prev()
		if n.HasUses() {
			for _, sub := range n.Blocks() {
				subChanged, err := eliminateDeadCode(sub)
				if err != nil {
					return changed, err
				}
				changed = changed || subChanged
			}
		} else {
			if err := n.Destroy(); err != nil {
				return changed, err
			}
			changed = true
		}
		n = prev
	}
	return changed, nil
}
