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

package values_test

import (
	"go/token"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/jit/interp/values"
)

func TestBinary(t *testing.T) {
	greater, err := values.NewTensor(dtype.Bool, []int{2}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		op   token.Token
		x, y values.Value
		want values.Value
	}{
		{op: token.ADD, x: values.Int(2), y: values.Int(3), want: values.Int(5)},
		{op: token.QUO, x: values.Int(3), y: values.Int(2), want: values.Float(1.5)},
		{op: token.MUL, x: values.Float(2), y: values.Int(3), want: values.Float(6)},
		{op: token.LSS, x: values.Int(2), y: values.Float(3), want: values.Bool(true)},
		{
			op:   token.SUB,
			x:    values.Vector(1, 2, 3),
			y:    values.Int(1),
			want: values.Vector(0, 1, 2),
		},
		{
			op:   token.MUL,
			x:    values.Float(2),
			y:    values.Vector(1, 2, 3),
			want: values.Vector(2, 4, 6),
		},
		{
			op:   token.ADD,
			x:    values.Float64s([]int{2, 2}, 1, 2, 3, 4),
			y:    values.Float64s([]int{2, 2}, 4, 3, 2, 1),
			want: values.Float64s([]int{2, 2}, 5, 5, 5, 5),
		},
		{
			op:   token.GTR,
			x:    values.Vector(1, 5),
			y:    values.Int(2),
			want: greater,
		},
	}
	for i, test := range tests {
		got, err := values.Binary(test.op, test.x, test.y)
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if !values.Equal(got, test.want) {
			t.Errorf("test %d: %v %s %v = %v but want %v", i, test.x, test.op, test.y, got, test.want)
		}
	}
}

func TestBinaryShapeMismatch(t *testing.T) {
	if _, err := values.Binary(token.ADD, values.Vector(1, 2), values.Vector(1, 2, 3)); err == nil {
		t.Errorf("expected an error when adding tensors of different shapes")
	}
}

func TestReductions(t *testing.T) {
	x := values.Vector(1, 2, 3, 4)
	sum, err := values.Sum(x)
	if err != nil {
		t.Fatal(err)
	}
	mean, err := values.Mean(x)
	if err != nil {
		t.Fatal(err)
	}
	n, err := values.Numel(x)
	if err != nil {
		t.Fatal(err)
	}
	got := []float64{sum.Data()[0], mean.Data()[0], float64(n)}
	if diff := cmp.Diff([]float64{10, 2.5, 4}, got); diff != "" {
		t.Errorf("unexpected reductions (-want +got):\n%s", diff)
	}
	if sum.Shape().AxisLengths != nil {
		t.Errorf("reduction should return a tensor of rank 0, got axes %v", sum.Shape().AxisLengths)
	}
}

func TestNewTensorErrors(t *testing.T) {
	if _, err := values.NewTensor(dtype.Float32, []int{2, 2}, []float64{1, 2, 3}); err == nil {
		t.Errorf("expected an error for a data/shape mismatch")
	}
	if _, err := values.NewTensor(dtype.Float32, []int{-1}, nil); err == nil {
		t.Errorf("expected an error for a negative axis")
	}
}

func TestConversions(t *testing.T) {
	if b, err := values.ToBool(values.Full(dtype.Bool, nil, 1)); err != nil || !b {
		t.Errorf("ToBool(true tensor) = %v, %v", b, err)
	}
	if _, err := values.ToBool(values.Int(1)); err == nil {
		t.Errorf("expected an error when converting an int to a bool")
	}
	if f, err := values.ToFloat(values.Vector(3)); err != nil || f != 3 {
		t.Errorf("ToFloat(vector{3}) = %v, %v", f, err)
	}
	if !values.AllClose(values.Vector(1, 2), values.Vector(1, 2.0000001), 1e-6) {
		t.Errorf("AllClose should tolerate small differences")
	}
}
