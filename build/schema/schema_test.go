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

package schema_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/jit/build/schema"
)

func TestParse(t *testing.T) {
	tests := []struct {
		literal   string
		want      *schema.FunctionSchema
		signature string
	}{
		{
			literal: "aten::var(Tensor self, bool unbiased=True) -> Tensor",
			want: &schema.FunctionSchema{
				Name: "aten::var",
				Arguments: []schema.Argument{
					{Type: "Tensor", Name: "self"},
					{Type: "bool", Name: "unbiased", Default: "True", HasDefault: true},
				},
				Returns: []schema.Argument{{Type: "Tensor"}},
			},
			signature: "aten::var(Tensor, bool) -> Tensor",
		},
		{
			literal: "aten::var_mean.dim(Tensor self, int[1] dim, *, bool keepdim=False) -> (Tensor, Tensor)",
			want: &schema.FunctionSchema{
				Name:     "aten::var_mean",
				Overload: "dim",
				Arguments: []schema.Argument{
					{Type: "Tensor", Name: "self"},
					{Type: "int[1]", Name: "dim"},
					{Type: "bool", Name: "keepdim", Default: "False", HasDefault: true},
				},
				Returns: []schema.Argument{{Type: "Tensor"}, {Type: "Tensor"}},
			},
			signature: "aten::var_mean.dim(Tensor, int[1], bool) -> (Tensor, Tensor)",
		},
		{
			literal:   "prim::Print(Tensor x) -> ()",
			want:      &schema.FunctionSchema{Name: "prim::Print", Arguments: []schema.Argument{{Type: "Tensor", Name: "x"}}},
			signature: "prim::Print(Tensor) -> ()",
		},
	}
	for _, test := range tests {
		got, err := schema.Parse(test.literal)
		if err != nil {
			t.Errorf("cannot parse %q: %v", test.literal, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("parsing %q: unexpected schema (-want +got):\n%s", test.literal, diff)
		}
		if sig := got.Signature(); sig != test.signature {
			t.Errorf("got signature %q but want %q", sig, test.signature)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	literal := "aten::addcmul(Tensor self, Tensor tensor1, Tensor tensor2, Scalar value=1) -> Tensor"
	s := schema.MustParse(literal)
	if got := s.String(); got != literal {
		t.Errorf("got %q but want %q", got, literal)
	}
	if got := s.MinArgs(); got != 3 {
		t.Errorf("got %d required arguments but want 3", got)
	}
}

func TestParseErrors(t *testing.T) {
	for _, literal := range []string{
		"aten::add",
		"(Tensor x) -> Tensor",
		"aten::add(Tensor x -> Tensor",
		"aten::add(Tensor) -> Tensor",
		"aten::add(Tensor x) Tensor",
	} {
		if _, err := schema.Parse(literal); err == nil {
			t.Errorf("%q: expected an error", literal)
		}
	}
}
