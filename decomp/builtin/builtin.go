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

// Package builtin provides the bundle of builtin decompositions.
package builtin

import _ "embed"

// Filename of the builtin bundle.
const Filename = "decompositions.jit"

//go:embed decompositions.jit
var source []byte

// Entry maps an operator schema to the function decomposing it.
type Entry struct {
	Schema   string
	Function string
}

var manifest = []Entry{
	{"aten::square(Tensor self) -> Tensor", "square"},
	{"aten::var(Tensor self, bool unbiased=True) -> Tensor", "variance"},
	{"aten::std(Tensor self, bool unbiased=True) -> Tensor", "std"},
	{"aten::var_mean(Tensor self, bool unbiased=True) -> (Tensor, Tensor)", "varMean"},
	{"aten::addcmul(Tensor self, Tensor tensor1, Tensor tensor2, Scalar value=1) -> Tensor", "addcmul"},
	{"aten::addcdiv(Tensor self, Tensor tensor1, Tensor tensor2, Scalar value=1) -> Tensor", "addcdiv"},
}

// Source returns the source of the bundle.
func Source() []byte {
	return append([]byte{}, source...)
}

// Manifest returns the list of operators decomposed by the bundle.
func Manifest() []Entry {
	return append([]Entry{}, manifest...)
}
