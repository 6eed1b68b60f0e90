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
	"github.com/gx-org/jit/build/fmterr"
	"github.com/pkg/errors"
)

func lookup(env map[*Value]*Value, v *Value) (*Value, error) {
	mapped, ok := env[v]
	if !ok {
		return nil, errors.Errorf("value %s used outside of its scope", v)
	}
	return mapped, nil
}

// cloneNodes clones all the nodes of src at the end of dst.
// env maps the values of src to the values of dst and is updated with
// the outputs of the cloned nodes.
func cloneNodes(dst, src *Block, env map[*Value]*Value) error {
	for n := range src.Nodes() {
		c, err := cloneNode(dst.graph, n, env)
		if err != nil {
			return err
		}
		c.insertBefore(dst.ret)
	}
	return nil
}

func cloneNode(g *Graph, n *Node, env map[*Value]*Value) (*Node, error) {
	c := &Node{graph: g, kind: n.kind, op: n.op, attrs: cloneAttrs(n.attrs)}
	for _, in := range n.inputs {
		mapped, err := lookup(env, in)
		if err != nil {
			return nil, err
		}
		c.addInput(mapped)
	}
	for _, out := range n.outputs {
		env[out] = g.newValue(c, out.typ).SetName(out.name)
	}
	for _, sub := range n.blocks {
		cSub := c.AddBlock()
		for _, in := range sub.Inputs() {
			env[in] = cSub.AddInput(in.typ, in.name)
		}
		if err := cloneNodes(cSub, sub, env); err != nil {
			return nil, err
		}
		for _, out := range sub.Outputs() {
			mapped, err := lookup(env, out)
			if err != nil {
				return nil, err
			}
			cSub.RegisterOutput(mapped)
		}
	}
	return c, nil
}

// InsertGraph inlines callee in g at the insertion point of g.
// The inputs of callee are bound to inputs. The nodes of callee are first
// cloned into a detached block which is then spliced at the insertion point.
// It returns the values of g corresponding to the outputs of callee.
func InsertGraph(g *Graph, callee *Graph, inputs []*Value) ([]*Value, error) {
	params := callee.Inputs()
	if len(params) != len(inputs) {
		return nil, errors.Errorf("graph expects %d inputs but got %d", len(params), len(inputs))
	}
	env := make(map[*Value]*Value, len(params))
	for i, param := range params {
		env[param] = inputs[i]
	}
	body := newBlock(g, nil)
	if err := cloneNodes(body, callee.top, env); err != nil {
		return nil, fmterr.Internal(err)
	}
	outs := make([]*Value, len(callee.top.ret.inputs))
	for i, out := range callee.top.ret.inputs {
		mapped, err := lookup(env, out)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		outs[i] = mapped
	}
	point := g.insertPoint
	if err := point.block.Splice(point, body); err != nil {
		return nil, err
	}
	return outs, nil
}
