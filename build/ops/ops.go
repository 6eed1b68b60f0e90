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

// Package ops defines the table of operators a graph can call.
package ops

import (
	"slices"
	"strconv"

	"github.com/gx-org/jit/build/schema"
	"github.com/gx-org/jit/interp/values"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

type (
	// Kernel computes the results of an operator given all its arguments,
	// default values included.
	Kernel func(args []values.Value) ([]values.Value, error)

	// Operator is an operator schema with its kernel.
	Operator struct {
		Schema *schema.FunctionSchema
		Kernel Kernel

		defaults []values.Value
	}

	// Registry of operators.
	Registry struct {
		byName map[string][]*Operator
		bySig  map[string]*Operator
	}
)

// ParseDefault converts the default value of a schema argument to a runtime value.
func ParseDefault(lit string) (values.Value, error) {
	switch lit {
	case "True":
		return values.Bool(true), nil
	case "False":
		return values.Bool(false), nil
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return values.Int(i), nil
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return values.Float(f), nil
	}
	return nil, errors.Errorf("unsupported default value %q", lit)
}

// NewOperator returns an operator given its schema literal and its kernel.
// The kernel can be nil for operators which cannot be evaluated.
func NewOperator(literal string, kernel Kernel) (*Operator, error) {
	s, err := schema.Parse(literal)
	if err != nil {
		return nil, err
	}
	op := &Operator{Schema: s, Kernel: kernel}
	for _, arg := range s.Arguments {
		if !arg.HasDefault {
			op.defaults = append(op.defaults, nil)
			continue
		}
		val, err := ParseDefault(arg.Default)
		if err != nil {
			return nil, errors.Wrapf(err, "operator %s: argument %s", s.QualifiedName(), arg.Name)
		}
		op.defaults = append(op.defaults, val)
	}
	return op, nil
}

// Name returns the qualified name of the operator.
func (op *Operator) Name() string {
	return op.Schema.Name
}

// Default returns the default value of the ith argument, if any.
func (op *Operator) Default(i int) (values.Value, bool) {
	if i < 0 || i >= len(op.defaults) || op.defaults[i] == nil {
		return nil, false
	}
	return op.defaults[i], true
}

// Accepts returns true if the operator can be called with nargs arguments.
func (op *Operator) Accepts(nargs int) bool {
	return op.Schema.MinArgs() <= nargs && nargs <= len(op.Schema.Arguments)
}

// Complete returns the arguments completed with the default values of
// the arguments that have not been specified.
func (op *Operator) Complete(args []values.Value) ([]values.Value, error) {
	if !op.Accepts(len(args)) {
		return nil, errors.Errorf("%s: got %d arguments but want between %d and %d", op.Schema.QualifiedName(), len(args), op.Schema.MinArgs(), len(op.Schema.Arguments))
	}
	full := slices.Clone(args)
	for i := len(args); i < len(op.defaults); i++ {
		full = append(full, op.defaults[i])
	}
	return full, nil
}

// Call the kernel of the operator.
func (op *Operator) Call(args []values.Value) ([]values.Value, error) {
	if op.Kernel == nil {
		return nil, errors.Errorf("operator %s has no kernel", op.Schema.QualifiedName())
	}
	full, err := op.Complete(args)
	if err != nil {
		return nil, err
	}
	out, err := op.Kernel(full)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", op.Schema.QualifiedName())
	}
	if len(out) != len(op.Schema.Returns) {
		return nil, errors.Errorf("%s: kernel returned %d values but the schema declares %d", op.Schema.QualifiedName(), len(out), len(op.Schema.Returns))
	}
	return out, nil
}

func (op *Operator) String() string {
	return op.Schema.String()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string][]*Operator),
		bySig:  make(map[string]*Operator),
	}
}

// Register an operator. Registering two operators with the same signature
// is an error.
func (r *Registry) Register(op *Operator) error {
	sig := op.Schema.Signature()
	if _, exists := r.bySig[sig]; exists {
		return errors.Errorf("operator %s already registered", sig)
	}
	r.bySig[sig] = op
	r.byName[op.Name()] = append(r.byName[op.Name()], op)
	return nil
}

// MustRegister registers an operator built from a literal and a kernel.
// It panics if the literal is invalid or if the operator already exists.
func (r *Registry) MustRegister(literal string, kernel Kernel) *Operator {
	op, err := NewOperator(literal, kernel)
	if err != nil {
		panic(err)
	}
	if err := r.Register(op); err != nil {
		panic(err)
	}
	return op
}

// Lookup returns the first operator with the given name accepting nargs arguments.
func (r *Registry) Lookup(name string, nargs int) (*Operator, bool) {
	for _, op := range r.byName[name] {
		if op.Accepts(nargs) {
			return op, true
		}
	}
	return nil, false
}

// BySignature returns the operator with the given canonical signature.
func (r *Registry) BySignature(sig string) (*Operator, bool) {
	op, ok := r.bySig[sig]
	return op, ok
}

// ForLiteral resolves a schema literal to the registered operator
// with the same signature.
func (r *Registry) ForLiteral(literal string) (*Operator, error) {
	s, err := schema.Parse(literal)
	if err != nil {
		return nil, err
	}
	op, ok := r.bySig[s.Signature()]
	if !ok {
		return nil, errors.Errorf("no operator registered for %s", s.Signature())
	}
	return op, nil
}

// Names returns the sorted names of all the operators in the registry.
func (r *Registry) Names() []string {
	names := maps.Keys(r.byName)
	slices.Sort(names)
	return names
}
