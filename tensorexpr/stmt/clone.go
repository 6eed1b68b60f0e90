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

// Clone returns a deep copy of a statement.
//
// All the statements of the tree are new nodes and the root of the copy has
// no parent. Expressions are immutable and are shared with the original.
func Clone(s Stmt) Stmt {
	if isNil(s) {
		return nil
	}
	switch sT := s.(type) {
	case *Block:
		return cloneBlock(sT)
	case *Store:
		c := *sT
		c.parent = nil
		return &c
	case *Allocate:
		c := *sT
		c.parent = nil
		return &c
	case *Free:
		c := *sT
		c.parent = nil
		return &c
	case *Let:
		c := *sT
		c.parent = nil
		return &c
	case *Cond:
		c := &Cond{cond: sT.cond}
		if sT.trueStmt != nil {
			c.trueStmt = cloneBlock(sT.trueStmt)
			setParent(c.trueStmt, c)
		}
		if sT.falseStmt != nil {
			c.falseStmt = cloneBlock(sT.falseStmt)
			setParent(c.falseStmt, c)
		}
		return c
	case *For:
		c := &For{
			v:       sT.v,
			start:   sT.start,
			stop:    sT.stop,
			options: sT.options.clone(),
		}
		c.body = cloneBlock(sT.body)
		setParent(c.body, c)
		return c
	case *AtomicAdd:
		c := *sT
		c.parent = nil
		return &c
	case *SyncThreads:
		return &SyncThreads{}
	}
	return nil
}

func cloneBlock(b *Block) *Block {
	stmts := make([]Stmt, len(b.stmts))
	for i, s := range b.stmts {
		stmts[i] = Clone(s)
	}
	return newBlock(stmts)
}
