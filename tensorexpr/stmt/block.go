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
	"iter"
	"slices"

	"github.com/gx-org/jit/build/fmterr"
)

// Block is an ordered sequence of statements executed in order.
// A block is the unique owner of its statements.
type Block struct {
	stmtNode
	stmts []Stmt
}

func newBlock(stmts []Stmt) *Block {
	b := &Block{stmts: stmts}
	for _, s := range stmts {
		setParent(s, b)
	}
	return b
}

// MakeBlock returns a block owning all the non-nil statements.
// It returns nil (and no error) if no statement remains.
func MakeBlock(stmts ...Stmt) (*Block, error) {
	var valid []Stmt
	for _, s := range stmts {
		if isNil(s) {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil, nil
	}
	return NewBlock(valid...)
}

// NewBlock returns a new block owning the statements.
// None of the statements can be owned by another statement.
func NewBlock(stmts ...Stmt) (*Block, error) {
	seen := make(map[Stmt]bool, len(stmts))
	for _, s := range stmts {
		if isNil(s) {
			return nil, fmterr.MalformedInput("Block creation has a nil Stmt", nil)
		}
		if s.Parent() != nil || seen[s] {
			return nil, fmterr.MalformedInput("Block creation has Stmt with existing parent", s)
		}
		seen[s] = true
	}
	return newBlock(slices.Clone(stmts)), nil
}

// Len returns the number of statements in the block.
func (b *Block) Len() int { return len(b.stmts) }

// Empty returns true if the block has no statements.
func (b *Block) Empty() bool { return len(b.stmts) == 0 }

// Stmts returns a copy of the list of statements.
func (b *Block) Stmts() []Stmt { return slices.Clone(b.stmts) }

// All returns an iterator over the statements of the block.
// The block must not be edited while iterating.
func (b *Block) All() iter.Seq[Stmt] {
	return slices.Values(b.stmts)
}

// Front returns the first statement or nil.
func (b *Block) Front() Stmt {
	if len(b.stmts) == 0 {
		return nil
	}
	return b.stmts[0]
}

// Back returns the last statement or nil.
func (b *Block) Back() Stmt {
	if len(b.stmts) == 0 {
		return nil
	}
	return b.stmts[len(b.stmts)-1]
}

// Index returns the position of s in the block or -1.
func (b *Block) Index(s Stmt) int {
	return slices.Index(b.stmts, s)
}

// checkAttachable checks that s can become a child of the block.
func (b *Block) checkAttachable(s Stmt, msg string) error {
	if isNil(s) {
		return fmterr.MalformedInput(msg, nil)
	}
	if s.Parent() != nil {
		return fmterr.MalformedInput(msg, s)
	}
	for p := Stmt(b); p != nil; p = p.Parent() {
		if p == s {
			return fmterr.MalformedInput("Block cannot own one of its ancestors", s)
		}
	}
	return nil
}

func (b *Block) insertAt(pos int, s Stmt) {
	b.stmts = slices.Insert(b.stmts, pos, s)
	setParent(s, b)
}

// Prepend a statement at the beginning of the block.
func (b *Block) Prepend(s Stmt) error {
	if err := b.checkAttachable(s, "Block prepend Stmt with existing parent"); err != nil {
		return err
	}
	b.insertAt(0, s)
	return nil
}

// Append a statement at the end of the block.
func (b *Block) Append(s Stmt) error {
	if err := b.checkAttachable(s, "Block append Stmt with existing parent"); err != nil {
		return err
	}
	b.insertAt(len(b.stmts), s)
	return nil
}

// InsertBefore inserts s just before anchor. anchor must be in the block.
func (b *Block) InsertBefore(s, anchor Stmt) error {
	if err := b.checkAttachable(s, "Block insert Stmt with existing parent"); err != nil {
		return err
	}
	pos := b.Index(anchor)
	if pos < 0 {
		return fmterr.MalformedInput("Inserting before statement that is not in block", s)
	}
	b.insertAt(pos, s)
	return nil
}

// InsertAfter inserts s just after anchor. anchor must be in the block.
func (b *Block) InsertAfter(s, anchor Stmt) error {
	if err := b.checkAttachable(s, "Block insert Stmt with existing parent"); err != nil {
		return err
	}
	pos := b.Index(anchor)
	if pos < 0 {
		return fmterr.MalformedInput("Inserting after statement that is not in block", s)
	}
	b.insertAt(pos+1, s)
	return nil
}

// Replace oldStmt by newStmt at the same position.
// Returns false if oldStmt is not in the block, in which case the block is
// left unchanged. On success, oldStmt has no parent anymore.
func (b *Block) Replace(oldStmt, newStmt Stmt) (bool, error) {
	if err := b.checkAttachable(newStmt, "Block replace Stmt with existing parent"); err != nil {
		return false, err
	}
	pos := b.Index(oldStmt)
	if pos < 0 {
		return false, nil
	}
	b.stmts[pos] = newStmt
	setParent(oldStmt, nil)
	setParent(newStmt, b)
	return true, nil
}

// Remove a statement from the block.
// Returns false if the statement was not found.
func (b *Block) Remove(s Stmt) bool {
	pos := b.Index(s)
	if pos < 0 {
		return false
	}
	setParent(s, nil)
	b.stmts = slices.Delete(b.stmts, pos, pos+1)
	return true
}

// Splice moves all the statements of other at position pos in this block.
// The statements are owned by this block afterwards and other is left empty.
func (b *Block) Splice(pos int, other *Block) error {
	if pos < 0 || pos > len(b.stmts) {
		return fmterr.MalformedInput("Block splice at an invalid position", pos)
	}
	if other == nil {
		return nil
	}
	if other == b {
		return fmterr.MalformedInput("Block cannot be spliced into itself", other)
	}
	for p := Stmt(b); p != nil; p = p.Parent() {
		if p == other {
			return fmterr.MalformedInput("Block cannot splice one of its ancestors", other)
		}
	}
	moved := other.stmts
	other.stmts = nil
	for _, s := range moved {
		setParent(s, b)
	}
	b.stmts = slices.Insert(b.stmts, pos, moved...)
	return nil
}

// SharedParent returns the closest block enclosing both a and b or nil if
// there is none. A block encloses itself.
func SharedParent(a, b Stmt) *Block {
	enclosing := make(map[*Block]bool)
	for p := a; !isNil(p); p = p.Parent() {
		if blk, ok := p.(*Block); ok {
			enclosing[blk] = true
		}
	}
	for p := b; !isNil(p); p = p.Parent() {
		if blk, ok := p.(*Block); ok && enclosing[blk] {
			return blk
		}
	}
	return nil
}
