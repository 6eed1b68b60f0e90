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

package fmterr

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/pkg/errors"
)

// PositionedError is an error located in the source of a bundle.
type PositionedError struct {
	// Node is the source node on which the error has been reported.
	Node ast.Node

	fset *token.FileSet
	pos  token.Pos
	err  error
}

// Position locates an error at a node of a source file.
// The position is taken when the error is created so that later edits
// of the syntax tree do not change the error message.
func Position(fset *token.FileSet, node ast.Node, err error) *PositionedError {
	return &PositionedError{
		Node: node,
		fset: fset,
		pos:  node.Pos(),
		err:  err,
	}
}

// Errorf returns an error located at a node of a source file.
func Errorf(fset *token.FileSet, node ast.Node, format string, a ...any) error {
	return Position(fset, node, errors.Errorf(format, a...))
}

// Pos returns the position of the error in the file set.
func (err *PositionedError) Pos() token.Position {
	if err.fset == nil {
		return token.Position{}
	}
	return err.fset.Position(err.pos)
}

// Error returns the message prefixed by file:line:column.
func (err *PositionedError) Error() string {
	pos := err.Pos()
	if !pos.IsValid() {
		return err.err.Error()
	}
	return pos.String() + ": " + err.err.Error()
}

// Unwrap returns the error without its position.
func (err *PositionedError) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err *PositionedError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}
