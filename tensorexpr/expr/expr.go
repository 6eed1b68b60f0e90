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

// Package expr is the expression IR consumed by the statement IR.
//
// Expressions are immutable once built: they can be shared between any
// number of statements and carry no parent.
package expr

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/gx-org/backend/dtype"
)

// Dtype is the element type of an expression or a buffer.
type Dtype = dtype.DataType

type (
	// Expr is an immutable expression.
	Expr interface {
		// Dtype returns the type of the value computed by the expression.
		Dtype() Dtype
		String() string
		// exprNode prevents implementations outside of this package.
		exprNode()
	}

	// Var is a named variable.
	Var struct {
		name  string
		dtype Dtype
	}

	// Buf is a multi-dimensional buffer referenced through a base handle.
	Buf struct {
		base *Var
		dims []Expr
	}

	// IntImm is an integer immediate.
	IntImm struct {
		val int64
	}

	// FloatImm is a floating point immediate.
	FloatImm struct {
		val   float64
		dtype Dtype
	}

	// BoolImm is a boolean immediate.
	BoolImm struct {
		val bool
	}

	// Binary applies an arithmetic or comparison operator to two expressions.
	Binary struct {
		op   token.Token
		x, y Expr
	}

	// Load reads an element of a buffer.
	Load struct {
		buf     *Buf
		indices []Expr
	}

	// Cast converts an expression to another type.
	Cast struct {
		dtype Dtype
		x     Expr
	}
)

var (
	_ Expr = (*Var)(nil)
	_ Expr = (*Buf)(nil)
	_ Expr = (*IntImm)(nil)
	_ Expr = (*FloatImm)(nil)
	_ Expr = (*BoolImm)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Load)(nil)
	_ Expr = (*Cast)(nil)
)

// NewVar returns a new variable.
func NewVar(name string, dt Dtype) *Var {
	return &Var{name: name, dtype: dt}
}

func (*Var) exprNode() {}

// Name of the variable.
func (v *Var) Name() string { return v.name }

// Dtype returns the type of the variable.
func (v *Var) Dtype() Dtype { return v.dtype }

// String returns the name of the variable.
func (v *Var) String() string { return v.name }

// NewBuf returns a new buffer with a fresh base handle.
func NewBuf(name string, dims []Expr, dt Dtype) *Buf {
	return &Buf{base: NewVar(name, dt), dims: append([]Expr{}, dims...)}
}

func (*Buf) exprNode() {}

// BaseHandle returns the variable referencing the buffer memory.
func (b *Buf) BaseHandle() *Var { return b.base }

// Name of the buffer.
func (b *Buf) Name() string { return b.base.name }

// Dims returns the dimensions of the buffer.
func (b *Buf) Dims() []Expr { return append([]Expr{}, b.dims...) }

// Dtype of the elements of the buffer.
func (b *Buf) Dtype() Dtype { return b.base.dtype }

// String returns the name of the buffer.
func (b *Buf) String() string { return b.base.name }

// Int returns an integer immediate.
func Int(v int64) *IntImm {
	return &IntImm{val: v}
}

func (*IntImm) exprNode() {}

// Value of the immediate.
func (e *IntImm) Value() int64 { return e.val }

// Dtype returns int64.
func (*IntImm) Dtype() Dtype { return dtype.Int64 }

func (e *IntImm) String() string { return fmt.Sprint(e.val) }

// Float returns a float32 immediate.
func Float(v float64) *FloatImm {
	return &FloatImm{val: v, dtype: dtype.Float32}
}

// FloatOf returns a floating point immediate of a given type.
func FloatOf(v float64, dt Dtype) *FloatImm {
	return &FloatImm{val: v, dtype: dt}
}

func (*FloatImm) exprNode() {}

// Value of the immediate.
func (e *FloatImm) Value() float64 { return e.val }

// Dtype returns the floating point type of the immediate.
func (e *FloatImm) Dtype() Dtype { return e.dtype }

func (e *FloatImm) String() string { return fmt.Sprintf("%gf", e.val) }

// Bool returns a boolean immediate.
func Bool(v bool) *BoolImm {
	return &BoolImm{val: v}
}

func (*BoolImm) exprNode() {}

// Value of the immediate.
func (e *BoolImm) Value() bool { return e.val }

// Dtype returns bool.
func (*BoolImm) Dtype() Dtype { return dtype.Bool }

func (e *BoolImm) String() string { return fmt.Sprint(e.val) }

// NewBinary returns a binary expression.
func NewBinary(op token.Token, x, y Expr) *Binary {
	return &Binary{op: op, x: x, y: y}
}

// Add returns x+y.
func Add(x, y Expr) *Binary { return NewBinary(token.ADD, x, y) }

// Sub returns x-y.
func Sub(x, y Expr) *Binary { return NewBinary(token.SUB, x, y) }

// Mul returns x*y.
func Mul(x, y Expr) *Binary { return NewBinary(token.MUL, x, y) }

// Lt returns x<y.
func Lt(x, y Expr) *Binary { return NewBinary(token.LSS, x, y) }

func (*Binary) exprNode() {}

// Op returns the operator.
func (e *Binary) Op() token.Token { return e.op }

// X returns the left operand.
func (e *Binary) X() Expr { return e.x }

// Y returns the right operand.
func (e *Binary) Y() Expr { return e.y }

// Dtype returns bool for comparisons, the type of the left operand otherwise.
func (e *Binary) Dtype() Dtype {
	switch e.op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		return dtype.Bool
	}
	return e.x.Dtype()
}

func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.x, e.op, e.y)
}

// NewLoad returns an expression loading an element of a buffer.
func NewLoad(buf *Buf, indices ...Expr) *Load {
	return &Load{buf: buf, indices: indices}
}

func (*Load) exprNode() {}

// Buf returns the buffer being read.
func (e *Load) Buf() *Buf { return e.buf }

// Indices returns the index expressions.
func (e *Load) Indices() []Expr { return append([]Expr{}, e.indices...) }

// Dtype returns the type of the elements of the buffer.
func (e *Load) Dtype() Dtype { return e.buf.Dtype() }

func (e *Load) String() string {
	return fmt.Sprintf("%s[%s]", e.buf, Join(e.indices))
}

// NewCast returns a cast expression.
func NewCast(dt Dtype, x Expr) *Cast {
	return &Cast{dtype: dt, x: x}
}

func (*Cast) exprNode() {}

// X returns the expression being converted.
func (e *Cast) X() Expr { return e.x }

// Dtype returns the target type.
func (e *Cast) Dtype() Dtype { return e.dtype }

func (e *Cast) String() string {
	return fmt.Sprintf("%s(%s)", e.dtype, e.x)
}

// Join returns the string representation of expressions separated by commas.
func Join(exprs []Expr) string {
	ss := make([]string, len(exprs))
	for i, x := range exprs {
		ss[i] = x.String()
	}
	return strings.Join(ss, ", ")
}
