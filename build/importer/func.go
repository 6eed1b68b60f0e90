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

package importer

import (
	"go/ast"
	"go/token"
	"slices"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/interp/values"
)

// scope maps variable names to the graph values they hold.
type scope struct {
	parent *scope
	vars   map[string]*graph.Value
	// outer stores the values assigned in this scope to variables
	// declared in enclosing scopes.
	outer    map[string]*graph.Value
	assigned []string
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		vars:   make(map[string]*graph.Value),
		outer:  make(map[string]*graph.Value),
	}
}

func (s *scope) lookup(name string) (*graph.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
		if v, ok := cur.outer[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) define(name string, v *graph.Value) {
	s.vars[name] = v
}

func (s *scope) assign(name string, v *graph.Value) bool {
	if _, ok := s.vars[name]; ok {
		s.vars[name] = v
		return true
	}
	if s.parent == nil {
		return false
	}
	if _, ok := s.parent.lookup(name); !ok {
		return false
	}
	if !slices.Contains(s.assigned, name) {
		s.assigned = append(s.assigned, name)
	}
	s.outer[name] = v
	return true
}

type funcBuilder struct {
	cu       *CompilationUnit
	app      *fmterr.Appender
	src      *ast.FuncDecl
	g        *graph.Graph
	results  []string
	returned bool
}

var knownTypes = map[string]bool{
	values.TensorType: true,
	values.ScalarType: true,
	values.IntType:    true,
	values.FloatType:  true,
	values.BoolType:   true,
}

func processType(app *fmterr.Appender, expr ast.Expr) (string, bool) {
	ident, ok := expr.(*ast.Ident)
	if !ok || !knownTypes[ident.Name] {
		return "", app.Appendf(expr, "unsupported type %s: want Tensor, Scalar, int, float or bool", typeString(expr))
	}
	return ident.Name, true
}

func typeString(expr ast.Expr) string {
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return "expression"
}

func processFunc(cu *CompilationUnit, app *fmterr.Appender, src *ast.FuncDecl) (*Function, bool) {
	if src.Recv != nil {
		return nil, app.Appendf(src, "methods are not supported")
	}
	if src.Type.TypeParams != nil {
		return nil, app.Appendf(src.Type.TypeParams, "type parameters are not supported")
	}
	if src.Body == nil {
		return nil, app.Appendf(src, "function %s has no body", src.Name.Name)
	}
	b := &funcBuilder{cu: cu, app: app, src: src, g: graph.New()}
	sc := newScope(nil)
	for _, field := range src.Type.Params.List {
		typ, ok := processType(app, field.Type)
		if !ok {
			return nil, false
		}
		for _, name := range field.Names {
			sc.define(name.Name, b.g.AddInput(typ, name.Name))
		}
	}
	if src.Type.Results != nil {
		for _, field := range src.Type.Results.List {
			typ, ok := processType(app, field.Type)
			if !ok {
				return nil, false
			}
			for range max(1, len(field.Names)) {
				b.results = append(b.results, typ)
			}
		}
	}
	if !b.processStmts(sc, src.Body.List) {
		return nil, false
	}
	if !b.returned {
		return nil, app.Appendf(src.Body, "missing return at the end of function %s", src.Name.Name)
	}
	return &Function{
		Name:       src.Name.Name,
		Src:        src,
		Graph:      b.g,
		Directives: funcDirectives(src),
	}, true
}

func (b *funcBuilder) processStmts(sc *scope, stmts []ast.Stmt) bool {
	for _, stmt := range stmts {
		if b.returned {
			return b.app.Appendf(stmt, "unreachable code after return")
		}
		var ok bool
		switch stmtT := stmt.(type) {
		case *ast.AssignStmt:
			ok = b.processAssign(sc, stmtT)
		case *ast.ReturnStmt:
			ok = b.processReturn(sc, stmtT)
		case *ast.IfStmt:
			ok = b.processIf(sc, stmtT)
		case *ast.EmptyStmt:
			ok = true
		default:
			ok = b.app.Appendf(stmt, "unsupported statement %T", stmt)
		}
		if !ok {
			return false
		}
	}
	return true
}

func (b *funcBuilder) processAssign(sc *scope, stmt *ast.AssignStmt) bool {
	if stmt.Tok != token.DEFINE && stmt.Tok != token.ASSIGN {
		return b.app.Appendf(stmt, "assignment operator %s not supported", stmt.Tok)
	}
	var vals []*graph.Value
	if len(stmt.Rhs) == 1 && len(stmt.Lhs) > 1 {
		var ok bool
		if vals, ok = b.processMultiExpr(sc, stmt.Rhs[0]); !ok {
			return false
		}
	} else {
		for _, expr := range stmt.Rhs {
			val, ok := b.processExpr(sc, expr)
			if !ok {
				return false
			}
			vals = append(vals, val)
		}
	}
	if len(vals) != len(stmt.Lhs) {
		return b.app.Appendf(stmt, "assignment mismatch: %d variables but %d values", len(stmt.Lhs), len(vals))
	}
	newVar := false
	for i, lhs := range stmt.Lhs {
		ident, ok := lhs.(*ast.Ident)
		if !ok {
			return b.app.Appendf(lhs, "cannot assign to %T", lhs)
		}
		if ident.Name == "_" {
			continue
		}
		val := vals[i]
		if val.Name() == "" {
			val.SetName(ident.Name)
		}
		if stmt.Tok == token.DEFINE {
			if _, exists := sc.vars[ident.Name]; !exists {
				newVar = true
			}
			sc.define(ident.Name, val)
			continue
		}
		prev, ok := sc.lookup(ident.Name)
		if !ok {
			return b.app.Appendf(ident, "undefined: %s", ident.Name)
		}
		if prev.Type() != val.Type() {
			return b.app.Appendf(stmt.Rhs[min(i, len(stmt.Rhs)-1)], "cannot use %s value in assignment to %s of type %s", val.Type(), ident.Name, prev.Type())
		}
		sc.assign(ident.Name, val)
	}
	if stmt.Tok == token.DEFINE && !newVar {
		return b.app.Appendf(stmt, "no new variables on left side of :=")
	}
	return true
}

func assignable(declared, actual string) bool {
	if declared == actual {
		return true
	}
	return declared == values.ScalarType && (actual == values.IntType || actual == values.FloatType)
}

func (b *funcBuilder) processReturn(sc *scope, stmt *ast.ReturnStmt) bool {
	if sc.parent != nil {
		return b.app.Appendf(stmt, "return is only supported at the end of a function")
	}
	if len(stmt.Results) != len(b.results) {
		return b.app.Appendf(stmt, "wrong number of return values: want %d but got %d", len(b.results), len(stmt.Results))
	}
	var outs []*graph.Value
	for i, expr := range stmt.Results {
		val, ok := b.processExpr(sc, expr)
		if !ok {
			return false
		}
		if !assignable(b.results[i], val.Type()) {
			return b.app.Appendf(expr, "cannot use %s value as %s in return statement", val.Type(), b.results[i])
		}
		outs = append(outs, val)
	}
	for _, out := range outs {
		b.g.RegisterOutput(out)
	}
	b.returned = true
	return true
}

// inBlock calls f with the insertion point of the graph set at the end of block.
func (b *funcBuilder) inBlock(src ast.Node, block *graph.Block, f func() bool) bool {
	ok := false
	if err := b.g.WithInsertPoint(block.ReturnNode(), func() error {
		ok = f()
		return nil
	}); err != nil {
		return b.app.AppendInternalf(src, "%v", err)
	}
	return ok
}

func (b *funcBuilder) processIf(sc *scope, stmt *ast.IfStmt) bool {
	if stmt.Init != nil {
		return b.app.Appendf(stmt.Init, "if statements with an initialisation are not supported")
	}
	cond, ok := b.processExpr(sc, stmt.Cond)
	if !ok {
		return false
	}
	if cond.Type() != values.BoolType && cond.Type() != values.TensorType {
		return b.app.Appendf(stmt.Cond, "non-boolean condition in if statement")
	}
	ifNode, err := b.g.Insert(b.g.Create(graph.KindIf, []*graph.Value{cond}))
	if err != nil {
		return b.app.AppendInternalf(stmt, "%v", err)
	}
	thenBlock, elseBlock := ifNode.AddBlock(), ifNode.AddBlock()
	thenScope, elseScope := newScope(sc), newScope(sc)
	if !b.inBlock(stmt.Body, thenBlock, func() bool {
		return b.processStmts(thenScope, stmt.Body.List)
	}) {
		return false
	}
	switch elseT := stmt.Else.(type) {
	case nil:
	case *ast.BlockStmt:
		ok = b.inBlock(elseT, elseBlock, func() bool {
			return b.processStmts(elseScope, elseT.List)
		})
	case *ast.IfStmt:
		ok = b.inBlock(elseT, elseBlock, func() bool {
			return b.processIf(elseScope, elseT)
		})
	default:
		ok = b.app.Appendf(stmt.Else, "unsupported else statement %T", stmt.Else)
	}
	if !ok {
		return false
	}
	// Variables assigned in any of the branches become outputs of the if.
	names := slices.Clone(thenScope.assigned)
	for _, name := range elseScope.assigned {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	for _, name := range names {
		thenVal, _ := thenScope.lookup(name)
		elseVal, _ := elseScope.lookup(name)
		if thenVal.Type() != elseVal.Type() {
			return b.app.Appendf(stmt, "variable %s has type %s in one branch and %s in the other", name, thenVal.Type(), elseVal.Type())
		}
		thenBlock.RegisterOutput(thenVal)
		elseBlock.RegisterOutput(elseVal)
		sc.assign(name, ifNode.AddOutput(thenVal.Type()).SetName(name))
	}
	return true
}
