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

// Package executor runs graphs.
package executor

import (
	"fmt"
	"sync"

	"github.com/gx-org/jit/backend/device"
	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/ops"
	"github.com/gx-org/jit/build/passes"
	"github.com/gx-org/jit/interp/values"
	"github.com/pkg/errors"
)

// Mode of execution of a graph function.
type Mode int

const (
	// ModeProfiling optimises a copy of the graph before running it.
	ModeProfiling Mode = iota
	// ModeSimple runs the graph as it is, without any optimisation.
	ModeSimple
)

func (m Mode) String() string {
	switch m {
	case ModeProfiling:
		return "profiling"
	case ModeSimple:
		return "simple"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// maxOptimisationRounds bounds the number of cleanup rounds applied
// to a graph in profiling mode.
const maxOptimisationRounds = 4

type (
	// Option configures a graph function.
	Option func(*GraphFunction)

	// GraphFunction is an executable function backed by a graph.
	GraphFunction struct {
		name   string
		graph  *graph.Graph
		ops    *ops.Registry
		device device.Device

		mu        sync.Mutex
		mode      Mode
		optimised *graph.Graph
	}
)

// WithMode sets the initial execution mode of the function.
func WithMode(m Mode) Option {
	return func(f *GraphFunction) {
		f.mode = m
	}
}

// WithOperators sets the operators used to evaluate constants when
// the graph is optimised.
func WithOperators(reg *ops.Registry) Option {
	return func(f *GraphFunction) {
		f.ops = reg
	}
}

// WithDevice sets the device on which the function runs.
func WithDevice(dev device.Device) Option {
	return func(f *GraphFunction) {
		f.device = dev
	}
}

// New returns a function executing a graph.
func New(name string, g *graph.Graph, opts ...Option) *GraphFunction {
	f := &GraphFunction{
		name:   name,
		graph:  g,
		ops:    ops.Builtins(),
		device: device.Default(),
		mode:   ModeProfiling,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name of the function.
func (f *GraphFunction) Name() string { return f.name }

// Graph executed by the function.
func (f *GraphFunction) Graph() *graph.Graph { return f.graph }

// Device on which the function runs.
func (f *GraphFunction) Device() device.Device { return f.device }

// Mode returns the current execution mode of the function.
func (f *GraphFunction) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// SetInitialExecutionMode sets the execution mode of the function.
// Setting the mode the function already has is a no-op.
func (f *GraphFunction) SetInitialExecutionMode(m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == m {
		return
	}
	f.mode = m
	f.optimised = nil
}

// ExecutionGraph returns the graph interpreted by Run: the graph of the
// function in simple mode or an optimised copy in profiling mode.
func (f *GraphFunction) ExecutionGraph() (*graph.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeSimple {
		return f.graph, nil
	}
	if f.optimised != nil {
		return f.optimised, nil
	}
	g := f.graph.Copy()
	for range maxOptimisationRounds {
		peep, err := passes.Peephole(g)
		if err != nil {
			return nil, err
		}
		prop, err := passes.ConstantPropagation(f.ops, g)
		if err != nil {
			return nil, err
		}
		if !peep && !prop {
			break
		}
	}
	f.optimised = g
	return g, nil
}

func checkArg(typ string, arg values.Value) bool {
	switch typ {
	case values.ScalarType:
		return arg.Type() == values.IntType || arg.Type() == values.FloatType
	default:
		return arg.Type() == typ
	}
}

// Run the function with the given arguments.
func (f *GraphFunction) Run(args []values.Value) ([]values.Value, error) {
	g, err := f.ExecutionGraph()
	if err != nil {
		return nil, err
	}
	inputs := g.Inputs()
	if len(args) != len(inputs) {
		return nil, errors.Errorf("%s: got %d arguments but want %d", f.name, len(args), len(inputs))
	}
	env := make(map[*graph.Value]values.Value)
	for i, in := range inputs {
		if !checkArg(in.Type(), args[i]) {
			return nil, errors.Errorf("%s: cannot use %s value as argument %d of type %s", f.name, args[i].Type(), i, in.Type())
		}
		env[in] = args[i]
	}
	if err := evalBlock(env, g.Block()); err != nil {
		return nil, errors.Wrapf(err, "%s", f.name)
	}
	return outputs(env, g.Block())
}

func outputs(env map[*graph.Value]values.Value, b *graph.Block) ([]values.Value, error) {
	var outs []values.Value
	for _, out := range b.Outputs() {
		val, ok := env[out]
		if !ok {
			return nil, fmterr.Internalf("value %s has not been computed", out)
		}
		outs = append(outs, val)
	}
	return outs, nil
}

func evalBlock(env map[*graph.Value]values.Value, b *graph.Block) error {
	for n := range b.Nodes() {
		outs, err := evalNode(env, n)
		if err != nil {
			return err
		}
		nodeOuts := n.Outputs()
		if len(outs) != len(nodeOuts) {
			return fmterr.Internalf("%s computed %d values but has %d outputs", n, len(outs), len(nodeOuts))
		}
		for i, out := range nodeOuts {
			env[out] = outs[i]
		}
	}
	return nil
}

func evalNode(env map[*graph.Value]values.Value, n *graph.Node) ([]values.Value, error) {
	switch n.Kind() {
	case graph.KindConstant:
		val, ok := n.Attr(graph.ValueAttr)
		if !ok {
			return nil, fmterr.Internalf("constant without a value")
		}
		return []values.Value{val}, nil
	case graph.KindIf:
		condVal, ok := env[n.Input(0)]
		if !ok {
			return nil, fmterr.Internalf("condition of %s has not been computed", n)
		}
		cond, err := values.ToBool(condVal)
		if err != nil {
			return nil, err
		}
		blocks := n.Blocks()
		taken := blocks[1]
		if cond {
			taken = blocks[0]
		}
		if err := evalBlock(env, taken); err != nil {
			return nil, err
		}
		return outputs(env, taken)
	}
	if n.Op() == nil {
		return nil, errors.Errorf("cannot evaluate node %s", n.Kind())
	}
	var args []values.Value
	for _, in := range n.Inputs() {
		val, ok := env[in]
		if !ok {
			return nil, fmterr.Internalf("value %s used by %s has not been computed", in, n)
		}
		args = append(args, val)
	}
	return n.Op().Call(args)
}
