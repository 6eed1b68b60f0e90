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

package expr_test

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/jit/tensorexpr/expr"
)

func TestString(t *testing.T) {
	i := expr.NewVar("i", dtype.Int64)
	a := expr.NewBuf("A", []expr.Expr{expr.Int(16)}, dtype.Float32)
	tests := []struct {
		x    expr.Expr
		want string
	}{
		{x: expr.Int(3), want: "3"},
		{x: expr.Add(i, expr.Int(1)), want: "(i + 1)"},
		{x: expr.NewLoad(a, i), want: "A[i]"},
		{x: expr.Mul(expr.NewLoad(a, i), expr.Float(2)), want: "(A[i] * 2f)"},
	}
	for _, test := range tests {
		if got := test.x.String(); got != test.want {
			t.Errorf("got %q but want %q", got, test.want)
		}
	}
}

func TestDtype(t *testing.T) {
	i := expr.NewVar("i", dtype.Int32)
	if got := expr.Lt(i, expr.Int(4)).Dtype(); got != dtype.Bool {
		t.Errorf("comparison has type %s but want %s", got, dtype.Bool)
	}
	if got := expr.Add(i, expr.Int(4)).Dtype(); got != dtype.Int32 {
		t.Errorf("addition has type %s but want %s", got, dtype.Int32)
	}
	if got := expr.NewCast(dtype.Float64, i).Dtype(); got != dtype.Float64 {
		t.Errorf("cast has type %s but want %s", got, dtype.Float64)
	}
}
