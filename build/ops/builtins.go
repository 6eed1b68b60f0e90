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

package ops

import (
	"go/token"
	"math"
	"sync"

	"github.com/gx-org/jit/interp/values"
	"github.com/pkg/errors"
)

var (
	builtinsOnce sync.Once
	builtins     *Registry
)

// Builtins returns the registry of builtin operators.
// The registry is shared and must not be modified.
func Builtins() *Registry {
	builtinsOnce.Do(func() {
		builtins = newBuiltins()
	})
	return builtins
}

// NewBuiltins returns a new registry with all the builtin operators,
// which can be extended by the caller.
func NewBuiltins() *Registry {
	return newBuiltins()
}

func newBuiltins() *Registry {
	r := NewRegistry()
	r.MustRegister("aten::add(Tensor self, Tensor other) -> Tensor", binary(token.ADD))
	r.MustRegister("aten::sub(Tensor self, Tensor other) -> Tensor", binary(token.SUB))
	r.MustRegister("aten::mul(Tensor self, Tensor other) -> Tensor", binary(token.MUL))
	r.MustRegister("aten::div(Tensor self, Tensor other) -> Tensor", binary(token.QUO))
	r.MustRegister("aten::eq(Tensor self, Tensor other) -> Tensor", binary(token.EQL))
	r.MustRegister("aten::lt(Tensor self, Tensor other) -> Tensor", binary(token.LSS))
	r.MustRegister("aten::gt(Tensor self, Tensor other) -> Tensor", binary(token.GTR))
	r.MustRegister("aten::neg(Tensor self) -> Tensor", unary(values.Neg))
	r.MustRegister("aten::sqrt(Tensor self) -> Tensor", unary(values.Sqrt))
	r.MustRegister("aten::mean(Tensor self) -> Tensor", unary(func(x values.Value) (values.Value, error) {
		return values.Mean(x)
	}))
	r.MustRegister("aten::sum(Tensor self) -> Tensor", unary(func(x values.Value) (values.Value, error) {
		return values.Sum(x)
	}))
	r.MustRegister("aten::numel(Tensor self) -> int", unary(func(x values.Value) (values.Value, error) {
		return values.Numel(x)
	}))

	// Composite operators. Their kernels compute the same results as
	// their decompositions.
	r.MustRegister("aten::square(Tensor self) -> Tensor", unary(square))
	r.MustRegister("aten::var(Tensor self, bool unbiased=True) -> Tensor", variance)
	r.MustRegister("aten::std(Tensor self, bool unbiased=True) -> Tensor", stddev)
	r.MustRegister("aten::var_mean(Tensor self, bool unbiased=True) -> (Tensor, Tensor)", varMean)
	r.MustRegister("aten::addcmul(Tensor self, Tensor tensor1, Tensor tensor2, Scalar value=1) -> Tensor", addc(token.MUL))
	r.MustRegister("aten::addcdiv(Tensor self, Tensor tensor1, Tensor tensor2, Scalar value=1) -> Tensor", addc(token.QUO))
	return r
}

func binary(op token.Token) Kernel {
	return func(args []values.Value) ([]values.Value, error) {
		out, err := values.Binary(op, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []values.Value{out}, nil
	}
}

func unary(f func(values.Value) (values.Value, error)) Kernel {
	return func(args []values.Value) ([]values.Value, error) {
		out, err := f(args[0])
		if err != nil {
			return nil, err
		}
		return []values.Value{out}, nil
	}
}

func square(x values.Value) (values.Value, error) {
	return values.Binary(token.MUL, x, x)
}

func varianceAndMean(args []values.Value) (variance, mean *values.Tensor, err error) {
	unbiased, err := values.ToBool(args[1])
	if err != nil {
		return nil, nil, errors.Wrap(err, "unbiased")
	}
	if mean, err = values.Mean(args[0]); err != nil {
		return nil, nil, err
	}
	m, err := mean.Item()
	if err != nil {
		return nil, nil, err
	}
	x, ok := args[0].(*values.Tensor)
	if !ok {
		return nil, nil, errors.Errorf("expected a tensor but got %s", args[0].Type())
	}
	var sum float64
	for _, v := range x.Data() {
		sum += (v - m) * (v - m)
	}
	n := float64(x.Size())
	if unbiased {
		n--
	}
	return values.Full(x.Shape().DType, nil, sum/n), mean, nil
}

func variance(args []values.Value) ([]values.Value, error) {
	v, _, err := varianceAndMean(args)
	if err != nil {
		return nil, err
	}
	return []values.Value{v}, nil
}

func stddev(args []values.Value) ([]values.Value, error) {
	v, _, err := varianceAndMean(args)
	if err != nil {
		return nil, err
	}
	s, err := values.Map(v, math.Sqrt)
	if err != nil {
		return nil, err
	}
	return []values.Value{s}, nil
}

func varMean(args []values.Value) ([]values.Value, error) {
	v, m, err := varianceAndMean(args)
	if err != nil {
		return nil, err
	}
	return []values.Value{v, m}, nil
}

// addc computes self + value * (tensor1 op tensor2).
func addc(op token.Token) Kernel {
	return func(args []values.Value) ([]values.Value, error) {
		prod, err := values.Binary(op, args[1], args[2])
		if err != nil {
			return nil, err
		}
		scaled, err := values.Binary(token.MUL, args[3], prod)
		if err != nil {
			return nil, err
		}
		out, err := values.Binary(token.ADD, args[0], scaled)
		if err != nil {
			return nil, err
		}
		return []values.Value{out}, nil
	}
}
