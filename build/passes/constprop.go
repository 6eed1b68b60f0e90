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

package passes

import (
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/interp/values"
)

// ConstantPropagation evaluates the nodes whose inputs are all constants
// and replaces them with constants. Only operators registered in reg are
// evaluated. Nodes whose evaluation fails are left unchanged.
func ConstantPropagation(reg *ops.Registry, g *graph.Graph) (bool, error) {
	return propagateBlock(reg, g, g.Block())
}

func propagateBlock(reg *ops.Registry, g *graph.Graph, b *graph.Block) (bool, error) {
	changed := false
	for n := range b.Nodes() {
		for _, sub := range n.Blocks() {
			subChanged, err := propagateBlock(reg, g, sub)
			if err != nil {
				return changed, err
			}
			changed = changed || subChanged
		}
		folded, err := propagateNode(reg, g, n)
		if err != nil {
			return changed, err
		}
		changed = changed || folded
	}
	return changed, nil
}

func propagateNode(reg *ops.Registry, g *graph.Graph, n *graph.Node) (bool, error) {
	if n.Op() == nil {
		return false, nil
	}
	op, ok := reg.BySignature(n.Schema().Signature())
	if !ok || op.Kernel == nil {
		return false, nil
	}
	var args []values.Value
	for _, in := range n.Inputs() {
		cst, ok := in.Constant()
		if !ok {
			return false, nil
		}
		args = append(args, cst)
	}
	results, err := op.Call(args)
	if err != nil {
		return false, nil
	}
	for i, out := range n.Outputs() {
		cst := g.CreateConstant(results[i])
		if err := cst.InsertBefore(n); err != nil {
			return false, err
		}
		cst.Output().SetType(out.Type())
		cst.Output().SetName(out.Name())
		out.ReplaceAllUsesWith(cst.Output())
	}
	return true, n.Destroy()
}
