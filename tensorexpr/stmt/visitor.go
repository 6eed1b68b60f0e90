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

// Visitor is called with the concrete type of a statement by Stmt.Accept.
type Visitor interface {
	VisitBlock(*Block)
	VisitStore(*Store)
	VisitAllocate(*Allocate)
	VisitFree(*Free)
	VisitLet(*Let)
	VisitCond(*Cond)
	VisitFor(*For)
	VisitAtomicAdd(*AtomicAdd)
	VisitSyncThreads(*SyncThreads)
}

// Accept calls VisitBlock.
func (b *Block) Accept(v Visitor) { v.VisitBlock(b) }

// Accept calls VisitStore.
func (s *Store) Accept(v Visitor) { v.VisitStore(s) }

// Accept calls VisitAllocate.
func (s *Allocate) Accept(v Visitor) { v.VisitAllocate(s) }

// Accept calls VisitFree.
func (s *Free) Accept(v Visitor) { v.VisitFree(s) }

// Accept calls VisitLet.
func (s *Let) Accept(v Visitor) { v.VisitLet(s) }

// Accept calls VisitCond.
func (s *Cond) Accept(v Visitor) { v.VisitCond(s) }

// Accept calls VisitFor.
func (s *For) Accept(v Visitor) { v.VisitFor(s) }

// Accept calls VisitAtomicAdd.
func (s *AtomicAdd) Accept(v Visitor) { v.VisitAtomicAdd(s) }

// Accept calls VisitSyncThreads.
func (s *SyncThreads) Accept(v Visitor) { v.VisitSyncThreads(s) }

// Children returns the statements directly owned by s, in execution order.
func Children(s Stmt) []Stmt {
	switch sT := s.(type) {
	case *Block:
		return sT.Stmts()
	case *Cond:
		var children []Stmt
		if sT.trueStmt != nil {
			children = append(children, sT.trueStmt)
		}
		if sT.falseStmt != nil {
			children = append(children, sT.falseStmt)
		}
		return children
	case *For:
		return []Stmt{sT.body}
	}
	return nil
}

// Inspect traverses the tree rooted at s in depth-first order.
// If f returns false, the children of the statement are not visited.
func Inspect(s Stmt, f func(Stmt) bool) {
	if isNil(s) || !f(s) {
		return
	}
	for _, child := range Children(s) {
		Inspect(child, f)
	}
}
