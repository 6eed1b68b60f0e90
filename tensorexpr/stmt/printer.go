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
	"fmt"
	"strings"

	"github.com/gx-org/jit/tensorexpr/expr"
)

type printer struct {
	b      strings.Builder
	indent int
}

var _ Visitor = (*printer)(nil)

// String returns a C-like representation of a statement tree.
func String(s Stmt) string {
	if isNil(s) {
		return "<nil>"
	}
	p := &printer{}
	s.Accept(p)
	return p.b.String()
}

func (p *printer) line(format string, a ...any) {
	p.b.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.b, format, a...)
	p.b.WriteString("\n")
}

func (p *printer) body(b *Block) {
	p.indent++
	for _, s := range b.stmts {
		s.Accept(p)
	}
	p.indent--
}

func (p *printer) VisitBlock(b *Block) {
	p.line("{")
	p.body(b)
	p.line("}")
}

func (p *printer) VisitStore(s *Store) {
	if s.mask == nil {
		p.line("%s[%s] = %s;", s.buf, expr.Join(s.indices), s.value)
		return
	}
	p.line("%s[%s] = %s, mask=%s;", s.buf, expr.Join(s.indices), s.value, s.mask)
}

func (p *printer) VisitAllocate(s *Allocate) {
	p.line("Allocate(%s, %s, {%s});", s.bufferVar, s.dtype, expr.Join(s.dims))
}

func (p *printer) VisitFree(s *Free) {
	p.line("Free(%s);", s.bufferVar)
}

func (p *printer) VisitLet(s *Let) {
	p.line("let %s = %s;", s.v, s.val)
}

func (p *printer) VisitCond(s *Cond) {
	p.line("if (%s) {", s.cond)
	if s.trueStmt != nil {
		p.body(s.trueStmt)
	}
	if s.falseStmt != nil {
		p.line("} else {")
		p.body(s.falseStmt)
	}
	p.line("}")
}

func (p *printer) VisitFor(s *For) {
	annotation := ""
	if opts := s.options.String(); opts != "" {
		annotation = " /* " + opts + " */"
	}
	p.line("for (%s = %s; %s < %s; %s++)%s {", s.v, s.start, s.v, s.stop, s.v, annotation)
	p.body(s.body)
	p.line("}")
}

func (p *printer) VisitAtomicAdd(s *AtomicAdd) {
	p.line("atomicAdd(&%s[%s], %s);", s.buf, expr.Join(s.indices), s.value)
}

func (p *printer) VisitSyncThreads(*SyncThreads) {
	p.line("__syncthreads();")
}

// String representation of the block.
func (b *Block) String() string { return String(b) }

// String representation of the store.
func (s *Store) String() string { return String(s) }

// String representation of the allocation.
func (s *Allocate) String() string { return String(s) }

// String representation of the free.
func (s *Free) String() string { return String(s) }

// String representation of the binding.
func (s *Let) String() string { return String(s) }

// String representation of the conditional.
func (s *Cond) String() string { return String(s) }

// String representation of the loop.
func (s *For) String() string { return String(s) }

// String representation of the atomic addition.
func (s *AtomicAdd) String() string { return String(s) }

// String representation of the barrier.
func (s *SyncThreads) String() string { return String(s) }
