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

// Package stmt is the statement IR of the loop-based kernel compiler.
//
// Statements form a tree: every statement has at most one parent and a
// Block is the unique owner of its children. Ownership can only be changed
// by the block editing functions of this package. A statement owned by a
// block must be removed from it before being attached anywhere else.
//
// Node identity is pointer identity: two statements with the same content
// are two different nodes. Expressions are immutable and shared freely.
package stmt

import (
	"reflect"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/tensorexpr/expr"
)

type (
	// Stmt is a statement node.
	Stmt interface {
		// Parent returns the statement owning this statement or nil.
		Parent() Stmt
		// Accept calls the visitor method matching the concrete type of the statement.
		Accept(Visitor)
		// AcceptMutator calls the mutator method matching the concrete type of
		// the statement and returns the statement replacing it.
		AcceptMutator(Mutator) (Stmt, error)
		// String representation of the statement.
		String() string
		// node returns the fields common to all statements.
		// It also prevents implementations outside of this package.
		node() *stmtNode
	}

	stmtNode struct {
		parent Stmt
	}

	// Store writes a value into a buffer.
	Store struct {
		stmtNode
		buf     *expr.Buf
		indices []expr.Expr
		value   expr.Expr
		mask    expr.Expr
	}

	// Allocate a buffer of given dimensions and element type and binds it to
	// a buffer variable. The buffer lives until it is explicitly freed.
	// An unfreed buffer is an error (see VerifyBufferLifetimes).
	Allocate struct {
		stmtNode
		bufferVar *expr.Var
		dtype     expr.Dtype
		dims      []expr.Expr
	}

	// Free a buffer previously allocated.
	Free struct {
		stmtNode
		bufferVar *expr.Var
	}

	// Let binds a value to a local variable.
	Let struct {
		stmtNode
		v   *expr.Var
		val expr.Expr
	}

	// Cond executes a block if a condition is true and,
	// optionally, another block if the condition is false.
	Cond struct {
		stmtNode
		cond      expr.Expr
		trueStmt  *Block
		falseStmt *Block
	}

	// For loops over an induction variable from start (included)
	// to stop (excluded).
	For struct {
		stmtNode
		v           *expr.Var
		start, stop expr.Expr
		body        *Block
		options     LoopOptions
	}

	// AtomicAdd is a read-modify-write of a buffer element.
	// It only appears in GPU backends after lowering.
	AtomicAdd struct {
		stmtNode
		buf     *expr.Buf
		indices []expr.Expr
		value   expr.Expr
	}

	// SyncThreads is a barrier for all the threads of a GPU block.
	SyncThreads struct {
		stmtNode
	}
)

var (
	_ Stmt = (*Block)(nil)
	_ Stmt = (*Store)(nil)
	_ Stmt = (*Allocate)(nil)
	_ Stmt = (*Free)(nil)
	_ Stmt = (*Let)(nil)
	_ Stmt = (*Cond)(nil)
	_ Stmt = (*For)(nil)
	_ Stmt = (*AtomicAdd)(nil)
	_ Stmt = (*SyncThreads)(nil)
)

func (n *stmtNode) node() *stmtNode { return n }

// Parent returns the statement owning this statement or nil.
func (n *stmtNode) Parent() Stmt { return n.parent }

// setParent is the only function changing the ownership of a statement.
func setParent(s Stmt, parent Stmt) {
	s.node().parent = parent
}

func isNil(s Stmt) bool {
	if s == nil {
		return true
	}
	val := reflect.ValueOf(s)
	return val.Kind() == reflect.Pointer && val.IsNil()
}

func isNilExpr(x expr.Expr) bool {
	if x == nil {
		return true
	}
	val := reflect.ValueOf(x)
	return val.Kind() == reflect.Pointer && val.IsNil()
}

// toBlock returns s if s is a block. Otherwise, s is wrapped in a new block.
func toBlock(s Stmt) *Block {
	if b, ok := s.(*Block); ok {
		return b
	}
	return newBlock([]Stmt{s})
}

// ----------------------------------------------------------------------------
// Store.

// NewStore returns a statement writing value at indices in a buffer.
// mask is optional and can be nil.
func NewStore(buf *expr.Buf, indices []expr.Expr, value, mask expr.Expr) (*Store, error) {
	if buf == nil {
		return nil, fmterr.MalformedInput("invalid buffer in Store", nil)
	}
	if isNilExpr(value) {
		return nil, fmterr.MalformedInput("invalid value in Store", buf)
	}
	if isNilExpr(mask) {
		mask = nil
	}
	return &Store{
		buf:     buf,
		indices: append([]expr.Expr{}, indices...),
		value:   value,
		mask:    mask,
	}, nil
}

// Buf returns the buffer being written.
func (s *Store) Buf() *expr.Buf { return s.buf }

// BaseHandle returns the variable of the buffer being written.
func (s *Store) BaseHandle() *expr.Var { return s.buf.BaseHandle() }

// Indices returns the index expressions.
func (s *Store) Indices() []expr.Expr { return append([]expr.Expr{}, s.indices...) }

// FlatIndex returns the index of a store for which indices have been flattened.
func (s *Store) FlatIndex() (expr.Expr, error) {
	if len(s.indices) != 1 {
		return nil, fmterr.MalformedInput("indices haven't been flattened", s)
	}
	return s.indices[0], nil
}

// Value returns the expression being stored.
func (s *Store) Value() expr.Expr { return s.value }

// Mask returns the mask of the store or nil.
func (s *Store) Mask() expr.Expr { return s.mask }

// ----------------------------------------------------------------------------
// Allocate and Free.

// NewAllocate returns a statement allocating a buffer.
func NewAllocate(bufferVar *expr.Var, dt expr.Dtype, dims []expr.Expr) (*Allocate, error) {
	if bufferVar == nil {
		return nil, fmterr.MalformedInput("invalid buffer variable in Allocate", nil)
	}
	return &Allocate{
		bufferVar: bufferVar,
		dtype:     dt,
		dims:      append([]expr.Expr{}, dims...),
	}, nil
}

// BufferVar returns the variable bound to the allocated buffer.
func (s *Allocate) BufferVar() *expr.Var { return s.bufferVar }

// Dtype returns the element type of the buffer.
func (s *Allocate) Dtype() expr.Dtype { return s.dtype }

// Dims returns the dimensions of the buffer.
func (s *Allocate) Dims() []expr.Expr { return append([]expr.Expr{}, s.dims...) }

// NewFree returns a statement freeing a buffer.
func NewFree(bufferVar *expr.Var) (*Free, error) {
	if bufferVar == nil {
		return nil, fmterr.MalformedInput("invalid buffer variable in Free", nil)
	}
	return &Free{bufferVar: bufferVar}, nil
}

// BufferVar returns the variable of the buffer being freed.
func (s *Free) BufferVar() *expr.Var { return s.bufferVar }

// ----------------------------------------------------------------------------
// Let.

// NewLet returns a statement binding a value to a variable.
func NewLet(v *expr.Var, val expr.Expr) (*Let, error) {
	if v == nil {
		return nil, fmterr.MalformedInput("invalid variable in Let", nil)
	}
	if isNilExpr(val) {
		return nil, fmterr.MalformedInput("invalid value in Let", v)
	}
	return &Let{v: v, val: val}, nil
}

// Var returns the variable being bound.
func (s *Let) Var() *expr.Var { return s.v }

// Value returns the value bound to the variable.
func (s *Let) Value() expr.Expr { return s.val }

// Dtype returns the type of the variable.
func (s *Let) Dtype() expr.Dtype { return s.v.Dtype() }

// ----------------------------------------------------------------------------
// Cond.

// NewCond returns a conditional statement.
// trueStmt and falseStmt are optional. A statement which is not a block is
// wrapped into a new block.
func NewCond(cond expr.Expr, trueStmt, falseStmt Stmt) (*Cond, error) {
	if isNilExpr(cond) {
		return nil, fmterr.MalformedInput("invalid condition in Cond", nil)
	}
	for _, body := range []Stmt{trueStmt, falseStmt} {
		if !isNil(body) && body.Parent() != nil {
			return nil, fmterr.MalformedInput("Cond body has an existing parent", body)
		}
	}
	if !isNil(trueStmt) && !isNil(falseStmt) && trueStmt == falseStmt {
		return nil, fmterr.MalformedInput("Cond uses the same statement for both branches", trueStmt)
	}
	s := &Cond{cond: cond}
	if !isNil(trueStmt) {
		s.trueStmt = toBlock(trueStmt)
		setParent(s.trueStmt, s)
	}
	if !isNil(falseStmt) {
		s.falseStmt = toBlock(falseStmt)
		setParent(s.falseStmt, s)
	}
	return s, nil
}

// Condition returns the condition expression.
func (s *Cond) Condition() expr.Expr { return s.cond }

// TrueStmt returns the block executed when the condition is true. May be nil.
func (s *Cond) TrueStmt() *Block { return s.trueStmt }

// FalseStmt returns the block executed when the condition is false. May be nil.
func (s *Cond) FalseStmt() *Block { return s.falseStmt }

// CloneWithNewBodies returns a new conditional with the same condition but
// different bodies.
func (s *Cond) CloneWithNewBodies(trueStmt, falseStmt Stmt) (*Cond, error) {
	return NewCond(s.cond, trueStmt, falseStmt)
}

// CloneWithNewBody returns a new conditional with the same condition,
// a new true body and no false body.
func (s *Cond) CloneWithNewBody(trueStmt Stmt) (*Cond, error) {
	return NewCond(s.cond, trueStmt, nil)
}

// ----------------------------------------------------------------------------
// For.

// NewFor returns a new loop with default options.
func NewFor(v *expr.Var, start, stop expr.Expr, body Stmt) (*For, error) {
	return NewForWithOptions(v, start, stop, body, NewLoopOptions())
}

// NewForWithOptions returns a new loop with annotations.
// A body which is not a block is wrapped into a new block.
func NewForWithOptions(v *expr.Var, start, stop expr.Expr, body Stmt, opts LoopOptions) (*For, error) {
	switch {
	case v == nil:
		return nil, fmterr.MalformedInput("invalid Var in For loop", nil)
	case isNilExpr(start):
		return nil, fmterr.MalformedInput("invalid Start in For loop", v)
	case isNilExpr(stop):
		return nil, fmterr.MalformedInput("invalid Stop in For loop", v)
	case isNil(body):
		return nil, fmterr.MalformedInput("invalid Body in For loop", nil)
	case body.Parent() != nil:
		return nil, fmterr.MalformedInput("invalid Body in For loop", body)
	}
	s := &For{v: v, start: start, stop: stop, options: opts.clone()}
	s.body = toBlock(body)
	setParent(s.body, s)
	return s, nil
}

// Var returns the induction variable.
func (s *For) Var() *expr.Var { return s.v }

// Start returns the first value of the induction variable.
func (s *For) Start() expr.Expr { return s.start }

// Stop returns the bound (excluded) of the induction variable.
func (s *For) Stop() expr.Expr { return s.stop }

// Body of the loop.
func (s *For) Body() *Block { return s.body }

// LoopOptions returns a copy of the loop annotations.
func (s *For) LoopOptions() LoopOptions { return s.options.clone() }

// SetGPUBlockIndex maps the loop onto a GPU block index.
func (s *For) SetGPUBlockIndex(idx GPUIndex) error {
	return s.options.SetGPUBlockIndex(idx)
}

// SetGPUThreadIndex maps the loop onto a GPU thread index.
func (s *For) SetGPUThreadIndex(idx GPUIndex) error {
	return s.options.SetGPUThreadIndex(idx)
}

// SetBufferMap sets the mapping from input names to buffers used by backends.
func (s *For) SetBufferMap(m map[string]*expr.Buf) {
	s.options.SetBufferMapping(m)
}

// CloneWithNewBody returns a loop with the same variable, bounds and options
// but a different body.
func (s *For) CloneWithNewBody(body Stmt) (*For, error) {
	return NewForWithOptions(s.v, s.start, s.stop, body, s.options)
}

// ----------------------------------------------------------------------------
// AtomicAdd.

// NewAtomicAdd returns an atomic addition of value into a buffer element.
func NewAtomicAdd(buf *expr.Buf, indices []expr.Expr, value expr.Expr) (*AtomicAdd, error) {
	if buf == nil {
		return nil, fmterr.MalformedInput("invalid buffer in AtomicAdd", nil)
	}
	if isNilExpr(value) {
		return nil, fmterr.MalformedInput("invalid value in AtomicAdd", buf)
	}
	return &AtomicAdd{
		buf:     buf,
		indices: append([]expr.Expr{}, indices...),
		value:   value,
	}, nil
}

// Buf returns the buffer being updated.
func (s *AtomicAdd) Buf() *expr.Buf { return s.buf }

// BaseHandle returns the variable of the buffer being updated.
func (s *AtomicAdd) BaseHandle() *expr.Var { return s.buf.BaseHandle() }

// Indices returns the index expressions.
func (s *AtomicAdd) Indices() []expr.Expr { return append([]expr.Expr{}, s.indices...) }

// FlatIndex returns the index once indices have been flattened.
func (s *AtomicAdd) FlatIndex() (expr.Expr, error) {
	if len(s.indices) != 1 {
		return nil, fmterr.MalformedInput("indices haven't been flattened", s)
	}
	return s.indices[0], nil
}

// Value returns the value being added.
func (s *AtomicAdd) Value() expr.Expr { return s.value }

// ----------------------------------------------------------------------------
// SyncThreads.

// NewSyncThreads returns a new barrier.
func NewSyncThreads() *SyncThreads {
	return &SyncThreads{}
}
