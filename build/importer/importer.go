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

// Package importer compiles functions written in a subset of the Go syntax
// into graphs.
//
// Parameters and results are typed with the schema type names Tensor,
// Scalar, int, float and bool. Operators are called with their namespace
// as a package name, for example aten.mean(x), or with op("aten::var", x)
// when the name of the operator is a Go keyword.
package importer

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/gx-org/jit/build/fmterr"
	"github.com/gx-org/jit/build/graph"
	"github.com/gx-org/jit/build/ops"
)

// DirectivePrefix is the prefix of comments interpreted as directives.
const DirectivePrefix = "//jit:"

type (
	// Directive is a comment of the form //jit:name value.
	Directive struct {
		Name  string
		Value string
		Src   *ast.Comment
	}

	// Function is a compiled function.
	Function struct {
		Name       string
		Src        *ast.FuncDecl
		Graph      *graph.Graph
		Directives []Directive
	}

	// CompilationUnit is a set of functions compiled from source files.
	CompilationUnit struct {
		ops        *ops.Registry
		fset       *token.FileSet
		funcs      map[string]*Function
		order      []*Function
		directives []Directive
	}
)

// NewCompilationUnit returns an empty compilation unit resolving operator
// calls with reg.
func NewCompilationUnit(reg *ops.Registry) *CompilationUnit {
	return &CompilationUnit{
		ops:   reg,
		fset:  token.NewFileSet(),
		funcs: make(map[string]*Function),
	}
}

// FileSet returns the file set of all the sources defined in the unit.
func (cu *CompilationUnit) FileSet() *token.FileSet {
	return cu.fset
}

// Define parses a source file and compiles all its functions into the unit.
// All the compilation errors are returned at once.
func (cu *CompilationUnit) Define(filename string, src []byte) error {
	file, err := parser.ParseFile(cu.fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	errs := &fmterr.Errors{}
	app := errs.NewAppender(cu.fset)
	for _, group := range file.Comments {
		for _, cmt := range group.List {
			if dir, ok := parseDirective(cmt); ok {
				cu.directives = append(cu.directives, dir)
			}
		}
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			app.Appendf(decl, "only function declarations are supported")
			continue
		}
		if prev, exists := cu.funcs[fn.Name.Name]; exists {
			app.Appendf(fn.Name, "function %s redeclared (previous declaration at %s)", fn.Name.Name, cu.fset.Position(prev.Src.Pos()))
			continue
		}
		compiled, ok := processFunc(cu, app, fn)
		if !ok {
			continue
		}
		cu.funcs[compiled.Name] = compiled
		cu.order = append(cu.order, compiled)
	}
	return errs.ToError()
}

// Function returns a compiled function given its name.
func (cu *CompilationUnit) Function(name string) (*Function, bool) {
	fn, ok := cu.funcs[name]
	return fn, ok
}

// Functions returns all the compiled functions in definition order.
func (cu *CompilationUnit) Functions() []*Function {
	return append([]*Function{}, cu.order...)
}

// Directives returns all the directives found in the sources.
func (cu *CompilationUnit) Directives() []Directive {
	return append([]Directive{}, cu.directives...)
}

// Directive returns the value of the first directive with the given name.
func (cu *CompilationUnit) Directive(name string) (Directive, bool) {
	for _, dir := range cu.directives {
		if dir.Name == name {
			return dir, true
		}
	}
	return Directive{}, false
}

func parseDirective(cmt *ast.Comment) (Directive, bool) {
	text, ok := strings.CutPrefix(cmt.Text, DirectivePrefix)
	if !ok {
		return Directive{}, false
	}
	name, value, _ := strings.Cut(text, " ")
	return Directive{Name: name, Value: strings.TrimSpace(value), Src: cmt}, true
}

func funcDirectives(fn *ast.FuncDecl) []Directive {
	if fn.Doc == nil {
		return nil
	}
	var dirs []Directive
	for _, cmt := range fn.Doc.List {
		if dir, ok := parseDirective(cmt); ok {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
