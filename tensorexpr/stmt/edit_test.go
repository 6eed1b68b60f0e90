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

package stmt_test

import (
	"testing"

	"go.uber.org/multierr"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/jit/tensorexpr/expr"
	"github.com/gx-org/jit/tensorexpr/stmt"
)

func TestClone(t *testing.T) {
	store := newStore(t, 0)
	loop, err := stmt.NewFor(varI, expr.Int(0), expr.Int(8), store)
	if err != nil {
		t.Fatal(err)
	}
	if err := loop.SetGPUThreadIndex(stmt.IdxY); err != nil {
		t.Fatal(err)
	}
	root := newBlock(t, loop)

	cloned, ok := stmt.Clone(loop).(*stmt.For)
	if !ok {
		t.Fatalf("clone has type %T", cloned)
	}
	if cloned == loop || cloned.Body() == loop.Body() {
		t.Errorf("clone shares statements with the original")
	}
	if cloned.Parent() != nil {
		t.Errorf("clone has parent %v", cloned.Parent())
	}
	if cloned.Body().Parent() != stmt.Stmt(cloned) {
		t.Errorf("cloned body is not owned by the cloned loop")
	}
	clonedStore := cloned.Body().Front().(*stmt.Store)
	if clonedStore == store || clonedStore.Parent() != stmt.Stmt(cloned.Body()) {
		t.Errorf("store has not been cloned properly")
	}
	if clonedStore.Value() != store.Value() || cloned.Var() != loop.Var() {
		t.Errorf("expressions are not shared")
	}
	if got, want := stmt.String(cloned), stmt.String(loop); got != want {
		t.Errorf("got:\n%s\nbut want:\n%s", got, want)
	}
	if loop.Parent() != stmt.Stmt(root) {
		t.Errorf("original loop has been detached")
	}
}

// syncRemover removes all barriers and turns stores into atomic additions.
type syncRemover struct {
	stmt.DefaultMutator
}

func (m *syncRemover) MutateSyncThreads(*stmt.SyncThreads) (stmt.Stmt, error) {
	return nil, nil
}

func (m *syncRemover) MutateStore(s *stmt.Store) (stmt.Stmt, error) {
	return stmt.NewAtomicAdd(s.Buf(), s.Indices(), s.Value())
}

func TestMutator(t *testing.T) {
	store := newStore(t, 0)
	loop, err := stmt.NewFor(varI, expr.Int(0), expr.Int(8), newBlock(t, store, stmt.NewSyncThreads()))
	if err != nil {
		t.Fatal(err)
	}
	root := newBlock(t, loop, stmt.NewSyncThreads())
	m := &syncRemover{}
	m.Self = m
	got, err := root.AcceptMutator(m)
	if err != nil {
		t.Fatal(err)
	}
	if got != stmt.Stmt(root) {
		t.Fatalf("root block has been replaced")
	}
	want := `{
  for (i = 0; i < 8; i++) {
    atomicAdd(&A[0], 1f);
  }
}
`
	if s := stmt.String(root); s != want {
		t.Errorf("got:\n%s\nbut want:\n%s", s, want)
	}
	if store.Parent() != nil {
		t.Errorf("replaced store is still attached")
	}
}

func TestVerifyBufferLifetimes(t *testing.T) {
	x := expr.NewVar("x", dtype.Float32)
	y := expr.NewVar("y", dtype.Float32)
	z := expr.NewVar("z", dtype.Float32)
	allocX, _ := stmt.NewAllocate(x, dtype.Float32, []expr.Expr{expr.Int(4)})
	freeX, _ := stmt.NewFree(x)
	ok := newBlock(t, allocX, freeX)
	if err := stmt.VerifyBufferLifetimes(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	freeY, _ := stmt.NewFree(y)
	allocZ, _ := stmt.NewAllocate(z, dtype.Float32, nil)
	bad := newBlock(t, freeY, allocZ)
	err := stmt.VerifyBufferLifetimes(bad)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("got %d errors but want 2: %v", got, err)
	}
	checkMalformed(t, multierr.Errors(err)[0])
}

// storeReplacer replaces stores with the statements of a map.
type storeReplacer struct {
	stmt.DefaultMutator
	replace map[*stmt.Store]stmt.Stmt
}

func (m *storeReplacer) MutateStore(s *stmt.Store) (stmt.Stmt, error) {
	if r, ok := m.replace[s]; ok {
		return r, nil
	}
	return s, nil
}

func TestMutatorErrorLeavesBlockUnchanged(t *testing.T) {
	attached := newStore(t, 9)
	newBlock(t, attached)
	fresh := stmt.NewSyncThreads()
	tests := []struct {
		name    string
		replace func(s0, s1 *stmt.Store) map[*stmt.Store]stmt.Stmt
	}{
		{
			name: "attached replacement",
			replace: func(s0, s1 *stmt.Store) map[*stmt.Store]stmt.Stmt {
				return map[*stmt.Store]stmt.Stmt{s0: stmt.NewSyncThreads(), s1: attached}
			},
		},
		{
			name: "same replacement twice",
			replace: func(s0, s1 *stmt.Store) map[*stmt.Store]stmt.Stmt {
				return map[*stmt.Store]stmt.Stmt{s0: fresh, s1: fresh}
			},
		},
		{
			name: "replacement is a sibling",
			replace: func(s0, s1 *stmt.Store) map[*stmt.Store]stmt.Stmt {
				return map[*stmt.Store]stmt.Stmt{s0: nil, s1: s0}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s0, s1 := newStore(t, 0), newStore(t, 1)
			root := newBlock(t, s0, s1)
			m := &storeReplacer{replace: test.replace(s0, s1)}
			m.Self = m
			_, err := root.AcceptMutator(m)
			checkMalformed(t, err)
			checkStmts(t, root, s0, s1)
			if fresh.Parent() != nil {
				t.Errorf("replacement has been attached")
			}
		})
	}
}
