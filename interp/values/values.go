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

// Package values defines the runtime values manipulated when a graph is
// interpreted.
package values

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
)

// Type names of runtime values, as they appear in operator schemas.
const (
	BoolType   = "bool"
	IntType    = "int"
	FloatType  = "float"
	TensorType = "Tensor"
	ScalarType = "Scalar"
	NoneType   = "None"
)

type (
	// Value is a runtime value.
	Value interface {
		// Type returns the schema type name of the value.
		Type() string
		String() string
	}

	// Bool is a boolean scalar.
	Bool bool

	// Int is an integer scalar.
	Int int64

	// Float is a floating point scalar.
	Float float64

	// Tensor is a dense array. Elements are stored as float64 whatever
	// the element type of the tensor is.
	Tensor struct {
		shape *shape.Shape
		data  []float64
	}
)

var (
	_ Value = Bool(false)
	_ Value = Int(0)
	_ Value = Float(0)
	_ Value = (*Tensor)(nil)
)

// Type of the value.
func (Bool) Type() string { return BoolType }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// Type of the value.
func (Int) Type() string { return IntType }

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

// Type of the value.
func (Float) Type() string { return FloatType }

func (v Float) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

func size(axes []int) int {
	n := 1
	for _, ax := range axes {
		n *= ax
	}
	return n
}

// NewTensor returns a new tensor given its element type, its axis lengths
// and its data in row-major order.
func NewTensor(dt dtype.DataType, axes []int, data []float64) (*Tensor, error) {
	for _, ax := range axes {
		if ax < 0 {
			return nil, errors.Errorf("invalid negative axis length in %v", axes)
		}
	}
	if want := size(axes); want != len(data) {
		return nil, errors.Errorf("shape %v requires %d elements but got %d", axes, want, len(data))
	}
	return &Tensor{
		shape: &shape.Shape{DType: dt, AxisLengths: slices.Clone(axes)},
		data:  slices.Clone(data),
	}, nil
}

// Float64s returns a float64 tensor with the given axis lengths.
// It panics if the data does not match the axis lengths.
func Float64s(axes []int, data ...float64) *Tensor {
	t, err := NewTensor(dtype.Float64, axes, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Vector returns a float64 tensor of rank 1.
func Vector(data ...float64) *Tensor {
	return Float64s([]int{len(data)}, data...)
}

// Full returns a tensor of the given shape filled with v.
func Full(dt dtype.DataType, axes []int, v float64) *Tensor {
	data := make([]float64, size(axes))
	for i := range data {
		data[i] = v
	}
	return &Tensor{
		shape: &shape.Shape{DType: dt, AxisLengths: slices.Clone(axes)},
		data:  data,
	}
}

// Type of the value.
func (*Tensor) Type() string { return TensorType }

// Shape of the tensor.
func (t *Tensor) Shape() *shape.Shape { return t.shape }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return len(t.data) }

// Data returns a copy of the tensor elements.
func (t *Tensor) Data() []float64 { return slices.Clone(t.data) }

// Item returns the single element of a tensor of size 1.
func (t *Tensor) Item() (float64, error) {
	if len(t.data) != 1 {
		return 0, errors.Errorf("cannot convert a tensor with %d elements to a scalar", len(t.data))
	}
	return t.data[0], nil
}

func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%v{", t.shape.DType.String(), t.shape.AxisLengths)
	for i, v := range t.data {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteString("}")
	return b.String()
}

// ToFloat converts a scalar value or a tensor of size 1 to a float64.
func ToFloat(v Value) (float64, error) {
	switch vT := v.(type) {
	case Bool:
		if vT {
			return 1, nil
		}
		return 0, nil
	case Int:
		return float64(vT), nil
	case Float:
		return float64(vT), nil
	case *Tensor:
		return vT.Item()
	}
	return 0, errors.Errorf("cannot convert %T to a float", v)
}

// ToBool converts a value to a boolean. Only booleans and tensors of
// size 1 can be converted.
func ToBool(v Value) (bool, error) {
	switch vT := v.(type) {
	case Bool:
		return bool(vT), nil
	case *Tensor:
		f, err := vT.Item()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
	return false, errors.Errorf("cannot convert %s to a boolean", v.Type())
}

// Equal returns true if two values have the same type, the same shape
// and the same elements.
func Equal(x, y Value) bool {
	xT, xOk := x.(*Tensor)
	yT, yOk := y.(*Tensor)
	if xOk != yOk {
		return false
	}
	if !xOk {
		return x == y
	}
	return xT.shape.DType == yT.shape.DType &&
		slices.Equal(xT.shape.AxisLengths, yT.shape.AxisLengths) &&
		slices.Equal(xT.data, yT.data)
}

// AllClose returns true if two values have the same shape and their
// elements differ by at most tol.
func AllClose(x, y Value, tol float64) bool {
	xT, xOk := x.(*Tensor)
	yT, yOk := y.(*Tensor)
	if !xOk || !yOk {
		xf, xErr := ToFloat(x)
		yf, yErr := ToFloat(y)
		return xErr == nil && yErr == nil && xOk == yOk && abs(xf-yf) <= tol
	}
	if !slices.Equal(xT.shape.AxisLengths, yT.shape.AxisLengths) {
		return false
	}
	for i := range xT.data {
		if abs(xT.data[i]-yT.data[i]) > tol {
			return false
		}
	}
	return true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
