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
	"strconv"

	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/interp/values"
)

var binaryOps = map[token.Token]string{
	token.ADD: "aten::add",
	token.SUB: "aten::sub",
	token.MUL: "aten::mul",
	token.QUO: "aten::div",
	token.EQL: "aten::eq",
	token.LSS: "aten::lt",
	token.GTR: "aten::gt",
}

// binaryType returns the type of the result of a binary operator.
func binaryType(op token.Token, x, y string) string {
	switch {
	case x == values.TensorType || y == values.TensorType:
		return values.TensorType
	case op == token.EQL || op == token.LSS || op == token.GTR:
		return values.BoolType
	case x == values.ScalarType || y == values.ScalarType:
		return values.ScalarType
	case x == values.FloatType || y == values.FloatType || op == token.QUO:
		return values.FloatType
	}
	return values.IntType
}

func (b *funcBuilder) processExpr(sc *scope, expr ast.Expr) (*graph.Value, bool) {
	vals, ok := b.processMultiExpr(sc, expr)
	if !ok {
		return nil, false
	}
	if len(vals) != 1 {
		return nil, b.app.Appendf(expr, "%d-valued expression used as a single value", len(vals))
	}
	return vals[0], true
}

func (b *funcBuilder) processMultiExpr(sc *scope, expr ast.Expr) ([]*graph.Value, bool) {
	switch exprT := expr.(type) {
	case *ast.ParenExpr:
		return b.processMultiExpr(sc, exprT.X)
	case *ast.Ident:
		return b.single(b.processIdent(sc, exprT))
	case *ast.BasicLit:
		return b.single(b.processBasicLit(exprT, false))
	case *ast.UnaryExpr:
		return b.single(b.processUnaryExpr(sc, exprT))
	case *ast.BinaryExpr:
		return b.single(b.processBinaryExpr(sc, exprT))
	case *ast.CallExpr:
		return b.processCallExpr(sc, exprT)
	}
	return nil, b.app.Appendf(expr, "unsupported expression %T", expr)
}

func (b *funcBuilder) single(val *graph.Value, ok bool) ([]*graph.Value, bool) {
	if !ok {
		return nil, false
	}
	return []*graph.Value{val}, true
}

func (b *funcBuilder) constant(src ast.Node, v values.Value) (*graph.Value, bool) {
	val, err := b.g.InsertConstant(v)
	if err != nil {
		return nil, b.app.AppendInternalf(src, "%v", err)
	}
	return val, true
}

func (b *funcBuilder) processIdent(sc *scope, ident *ast.Ident) (*graph.Value, bool) {
	if val, ok := sc.lookup(ident.Name); ok {
		return val, true
	}
	switch ident.Name {
	case "true":
		return b.constant(ident, values.Bool(true))
	case "false":
		return b.constant(ident, values.Bool(false))
	}
	return nil, b.app.Appendf(ident, "undefined: %s", ident.Name)
}

func (b *funcBuilder) processBasicLit(lit *ast.BasicLit, neg bool) (*graph.Value, bool) {
	text := lit.Value
	if neg {
		text = "-" + text
	}
	switch lit.Kind {
	case token.INT:
		i, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, b.app.Appendf(lit, "invalid integer literal %s: %v", text, err)
		}
		return b.constant(lit, values.Int(i))
	case token.FLOAT:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, b.app.Appendf(lit, "invalid float literal %s: %v", text, err)
		}
		return b.constant(lit, values.Float(f))
	}
	return nil, b.app.Appendf(lit, "unsupported literal %s", lit.Value)
}

func (b *funcBuilder) processUnaryExpr(sc *scope, expr *ast.UnaryExpr) (*graph.Value, bool) {
	switch expr.Op {
	case token.ADD:
		return b.processExpr(sc, expr.X)
	case token.SUB:
		if lit, ok := expr.X.(*ast.BasicLit); ok {
			return b.processBasicLit(lit, true)
		}
		x, ok := b.processExpr(sc, expr.X)
		if !ok {
			return nil, false
		}
		outs, ok := b.call(expr, "aten::neg", []*graph.Value{x}, x.Type())
		if !ok {
			return nil, false
		}
		return outs[0], true
	}
	return nil, b.app.Appendf(expr, "unary operator %s not supported", expr.Op)
}

func (b *funcBuilder) processBinaryExpr(sc *scope, expr *ast.BinaryExpr) (*graph.Value, bool) {
	name, ok := binaryOps[expr.Op]
	if !ok {
		return nil, b.app.Appendf(expr, "binary operator %s not supported", expr.Op)
	}
	x, xOk := b.processExpr(sc, expr.X)
	y, yOk := b.processExpr(sc, expr.Y)
	if !xOk || !yOk {
		return nil, false
	}
	if x.Type() == values.BoolType || y.Type() == values.BoolType {
		if expr.Op != token.EQL {
			return nil, b.app.Appendf(expr, "operator %s not defined on bool", expr.Op)
		}
	}
	outs, ok := b.call(expr, name, []*graph.Value{x, y}, binaryType(expr.Op, x.Type(), y.Type()))
	if !ok {
		return nil, false
	}
	return outs[0], true
}

// call inserts a node calling an operator. Arguments which have not been
// specified are set to their default values, so that the node always
// has as many inputs as its operator has arguments.
func (b *funcBuilder) call(src ast.Node, name string, args []*graph.Value, outTypes ...string) ([]*graph.Value, bool) {
	op, ok := b.cu.ops.Lookup(name, len(args))
	if !ok {
		return nil, b.app.Appendf(src, "unknown operator %s with %d argument(s)", name, len(args))
	}
	for i := len(args); i < len(op.Schema.Arguments); i++ {
		def, _ := op.Default(i)
		val, ok := b.constant(src, def)
		if !ok {
			return nil, false
		}
		args = append(args, val)
	}
	n, err := b.g.InsertCall(op, args, outTypes...)
	if err != nil {
		return nil, b.app.AppendInternalf(src, "%v", err)
	}
	return n.Outputs(), true
}

func (b *funcBuilder) processArgs(sc *scope, exprs []ast.Expr) ([]*graph.Value, bool) {
	args := make([]*graph.Value, len(exprs))
	for i, expr := range exprs {
		var ok bool
		if args[i], ok = b.processExpr(sc, expr); !ok {
			return nil, false
		}
	}
	return args, true
}

func (b *funcBuilder) processCallExpr(sc *scope, expr *ast.CallExpr) ([]*graph.Value, bool) {
	if expr.Ellipsis.IsValid() {
		return nil, b.app.Appendf(expr, "variadic calls are not supported")
	}
	switch fun := expr.Fun.(type) {
	case *ast.SelectorExpr:
		pkg, ok := fun.X.(*ast.Ident)
		if !ok {
			return nil, b.app.Appendf(fun, "unsupported call target")
		}
		args, ok := b.processArgs(sc, expr.Args)
		if !ok {
			return nil, false
		}
		return b.call(expr, pkg.Name+"::"+fun.Sel.Name, args)
	case *ast.Ident:
		if fun.Name == "op" {
			return b.processOpCall(sc, expr)
		}
		return b.processFuncCall(sc, fun, expr)
	}
	return nil, b.app.Appendf(expr.Fun, "unsupported call target")
}

// processOpCall processes op("ns::name", args...).
func (b *funcBuilder) processOpCall(sc *scope, expr *ast.CallExpr) ([]*graph.Value, bool) {
	if len(expr.Args) == 0 {
		return nil, b.app.Appendf(expr, "missing operator name")
	}
	lit, ok := expr.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return nil, b.app.Appendf(expr.Args[0], "operator name must be a string literal")
	}
	name, err := strconv.Unquote(lit.Value)
	if err != nil {
		return nil, b.app.Appendf(lit, "invalid operator name %s: %v", lit.Value, err)
	}
	args, ok := b.processArgs(sc, expr.Args[1:])
	if !ok {
		return nil, false
	}
	return b.call(expr, name, args)
}

// processFuncCall inlines a function previously defined in the compilation unit.
func (b *funcBuilder) processFuncCall(sc *scope, ident *ast.Ident, expr *ast.CallExpr) ([]*graph.Value, bool) {
	fn, ok := b.cu.funcs[ident.Name]
	if !ok {
		return nil, b.app.Appendf(ident, "undefined function %s", ident.Name)
	}
	args, ok := b.processArgs(sc, expr.Args)
	if !ok {
		return nil, false
	}
	params := fn.Graph.Inputs()
	if len(params) != len(args) {
		return nil, b.app.Appendf(expr, "function %s expects %d argument(s) but got %d", fn.Name, len(params), len(args))
	}
	for i, param := range params {
		if !assignable(param.Type(), args[i].Type()) {
			return nil, b.app.Appendf(expr.Args[i], "cannot use %s value as %s argument %s", args[i].Type(), param.Type(), param.Name())
		}
	}
	outs, err := graph.InsertGraph(b.g, fn.Graph, args)
	if err != nil {
		return nil, b.app.AppendInternalf(expr, "%v", err)
	}
	return outs, true
}
