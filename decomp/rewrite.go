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

package decomp

import (
	"log/slog"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/passes"
	"github.com/pkg/errors"
)

// Rewriter replaces the nodes of a graph calling an operator with
// a decomposition by the body of the decomposition.
type Rewriter struct {
	reg    *Registry
	rounds int
	logger *slog.Logger
}

// NewRewriter returns a rewriter using the decompositions of a registry.
func NewRewriter(reg *Registry) *Rewriter {
	return &Rewriter{
		reg:    reg,
		rounds: reg.cleanupRounds,
		logger: reg.logger,
	}
}

// RunDecompositions rewrites a graph with the decompositions of the
// default registry.
func RunDecompositions(g *graph.Graph) error {
	return NewRewriter(Default()).Run(g)
}

// RunDecompositions rewrites a graph with the decompositions of the registry.
func (r *Registry) RunDecompositions(g *graph.Graph) error {
	return NewRewriter(r).Run(g)
}

// Run rewrites g in place: every node with a decomposition is replaced by
// the body of its decomposition. The graph is then cleaned up with
// peephole and constant propagation passes.
func (rw *Rewriter) Run(g *graph.Graph) error {
	if err := rw.decomposeBlock(g, g.Block()); err != nil {
		return err
	}
	for range rw.rounds {
		if _, err := passes.Peephole(g); err != nil {
			return err
		}
		if _, err := passes.ConstantPropagation(rw.reg.ops, g); err != nil {
			return err
		}
	}
	return nil
}

func (rw *Rewriter) decomposeBlock(g *graph.Graph, b *graph.Block) error {
	// Nodes yields the next node before n is destroyed.
	for n := range b.Nodes() {
		for _, sub := range n.Blocks() {
			if err := rw.decomposeBlock(g, sub); err != nil {
				return err
			}
		}
		if err := rw.decomposeNode(g, n); err != nil {
			return err
		}
	}
	return nil
}

func (rw *Rewriter) decomposeNode(g *graph.Graph, n *graph.Node) error {
	s := n.Schema()
	if s == nil {
		return nil
	}
	body, ok := rw.reg.Decomposition(s)
	if !ok {
		return nil
	}
	nodeOuts := n.Outputs()
	if got, want := len(body.Outputs()), len(nodeOuts); got != want {
		return fmterr.Internalf("decomposition of %s returns %d value(s) but the node has %d output(s)", s.Signature(), got, want)
	}
	if got, want := len(body.Inputs()), len(n.Inputs()); got != want {
		return fmterr.Internalf("decomposition of %s has %d parameter(s) but the node has %d input(s)", s.Signature(), got, want)
	}
	var outs []*graph.Value
	if err := g.WithInsertPoint(n, func() (err error) {
		outs, err = graph.InsertGraph(g, body, n.Inputs())
		return err
	}); err != nil {
		return errors.Wrapf(err, "cannot inline the decomposition of %s", s.Signature())
	}
	for i, out := range nodeOuts {
		out.ReplaceAllUsesWith(outs[i])
	}
	rw.logger.Debug("decomposed node", "schema", s.Signature())
	return n.Destroy()
}
