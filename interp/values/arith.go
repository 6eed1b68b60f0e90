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

package values

import (
	"go/token"
	"math"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
)

func scalarOp(op token.Token, x, y float64) (float64, error) {
	switch op {
	case token.ADD:
		return x + y, nil
	case token.SUB:
		return x - y, nil
	case token.MUL:
		return x * y, nil
	case token.QUO:
		return x / y, nil
	case token.EQL:
		return boolToFloat(x == y), nil
	case token.LSS:
		return boolToFloat(x < y), nil
	case token.GTR:
		return boolToFloat(x > y), nil
	}
	return 0, errors.Errorf("operator %s not supported", op)
}

func isComparison(op token.Token) bool {
	return op == token.EQL || op == token.LSS || op == token.GTR
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func isScalar(v Value) bool {
	_, ok := v.(*Tensor)
	return !ok
}

// Binary applies an arithmetic or a comparison operator to two values.
// Scalars are broadcast against tensors. Tensors of size 1 are broadcast
// against tensors of any shape.
func Binary(op token.Token, x, y Value) (Value, error) {
	if isScalar(x) && isScalar(y) {
		return scalarBinary(op, x, y)
	}
	xT, yT := toTensor(x), toTensor(y)
	outShape := xT.shape
	switch {
	case slices.Equal(xT.shape.AxisLengths, yT.shape.AxisLengths):
	case yT.Size() == 1:
	case xT.Size() == 1:
		outShape = yT.shape
	default:
		return nil, errors.Errorf("cannot apply %s to tensors of shape %v and %v", op, xT.shape.AxisLengths, yT.shape.AxisLengths)
	}
	dt := outShape.DType
	if _, xIsTensor := x.(*Tensor); !xIsTensor {
		dt = yT.shape.DType
	}
	if isComparison(op) {
		dt = dtype.Bool
	}
	out := Full(dt, outShape.AxisLengths, 0)
	for i := range out.data {
		var err error
		if out.data[i], err = scalarOp(op, at(xT, i), at(yT, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func at(t *Tensor, i int) float64 {
	if len(t.data) == 1 {
		return t.data[0]
	}
	return t.data[i]
}

func toTensor(v Value) *Tensor {
	switch vT := v.(type) {
	case *Tensor:
		return vT
	case Bool:
		return Full(dtype.Bool, nil, boolToFloat(bool(vT)))
	case Int:
		return Full(dtype.Int64, nil, float64(vT))
	case Float:
		return Full(dtype.Float64, nil, float64(vT))
	}
	return nil
}

func scalarBinary(op token.Token, x, y Value) (Value, error) {
	xf, err := ToFloat(x)
	if err != nil {
		return nil, err
	}
	yf, err := ToFloat(y)
	if err != nil {
		return nil, err
	}
	r, err := scalarOp(op, xf, yf)
	if err != nil {
		return nil, err
	}
	if isComparison(op) {
		return Bool(r != 0), nil
	}
	_, xInt := x.(Int)
	_, yInt := y.(Int)
	if xInt && yInt && op != token.QUO {
		return Int(int64(r)), nil
	}
	return Float(r), nil
}

// Map applies f to every element of a value.
func Map(x Value, f func(float64) float64) (Value, error) {
	switch xT := x.(type) {
	case Int:
		return Float(f(float64(xT))), nil
	case Float:
		return Float(f(float64(xT))), nil
	case *Tensor:
		out := Full(xT.shape.DType, xT.shape.AxisLengths, 0)
		for i, v := range xT.data {
			out.data[i] = f(v)
		}
		return out, nil
	}
	return nil, errors.Errorf("cannot apply a numerical function to %s", x.Type())
}

// Neg returns the opposite of a value.
func Neg(x Value) (Value, error) {
	if xT, ok := x.(Int); ok {
		return -xT, nil
	}
	return Map(x, func(v float64) float64 { return -v })
}

// Sqrt returns the square root of a value.
func Sqrt(x Value) (Value, error) {
	return Map(x, math.Sqrt)
}

func elements(x Value) ([]float64, dtype.DataType, error) {
	switch xT := x.(type) {
	case *Tensor:
		return xT.data, xT.shape.DType, nil
	case Int:
		return []float64{float64(xT)}, dtype.Int64, nil
	case Float:
		return []float64{float64(xT)}, dtype.Float64, nil
	}
	return nil, dtype.Invalid, errors.Errorf("cannot reduce a %s", x.Type())
}

// Sum reduces all the elements of a value into a tensor of rank 0.
func Sum(x Value) (*Tensor, error) {
	data, dt, err := elements(x)
	if err != nil {
		return nil, err
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return Full(dt, nil, sum), nil
}

// Mean of all the elements of a value, as a tensor of rank 0.
func Mean(x Value) (*Tensor, error) {
	data, dt, err := elements(x)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return Full(dt, nil, math.NaN()), nil
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return Full(dt, nil, sum/float64(len(data))), nil
}

// Numel returns the number of elements of a value.
func Numel(x Value) (Int, error) {
	data, _, err := elements(x)
	if err != nil {
		return 0, err
	}
	return Int(len(data)), nil
}
