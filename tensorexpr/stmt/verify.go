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

package stmt

import (
	"go.uber.org/multierr"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/tensorexpr/expr"
)

// VerifyBufferLifetimes checks that, in execution order, every Free matches
// a previous Allocate of the same buffer variable and that every allocated
// buffer is freed. All the problems found are returned.
//
// Statement trees violating these rules can be built: they are only reported.
func VerifyBufferLifetimes(root Stmt) error {
	var errs error
	live := make(map[*expr.Var]*Allocate)
	var order []*expr.Var
	Inspect(root, func(s Stmt) bool {
		switch sT := s.(type) {
		case *Allocate:
			if _, ok := live[sT.bufferVar]; ok {
				errs = multierr.Append(errs, fmterr.MalformedInput("buffer allocated twice", sT))
				return true
			}
			live[sT.bufferVar] = sT
			order = append(order, sT.bufferVar)
		case *Free:
			if _, ok := live[sT.bufferVar]; !ok {
				errs = multierr.Append(errs, fmterr.MalformedInput("Free without a matching Allocate", sT))
				return true
			}
			delete(live, sT.bufferVar)
		}
		return true
	})
	for _, v := range order {
		if alloc, ok := live[v]; ok {
			errs = multierr.Append(errs, fmterr.MalformedInput("Allocate is never freed", alloc))
			delete(live, v)
		}
	}
	return errs
}
