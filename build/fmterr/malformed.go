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

	"github.com/pkg/errors"
)

// MalformedInputError is returned when a statement tree is built or edited
// in a way that violates its invariants. These are programming errors of the
// caller: they are never recovered internally.
type MalformedInputError struct {
	Msg string
	// Node is the offending node. It may be nil, for example when a required
	// child was missing.
	Node any

	stack error
}

// MalformedInput returns a new malformed input error for a node.
func MalformedInput(msg string, node any) error {
	return &MalformedInputError{Msg: msg, Node: node, stack: errors.New(msg)}
}

// Error returns the message and the offending node.
func (err *MalformedInputError) Error() string {
	if err.Node == nil {
		return "malformed input: " + err.Msg
	}
	return fmt.Sprintf("malformed input: %s: %v", err.Msg, err.Node)
}

// StackTrace returns where the error has been created.
func (err *MalformedInputError) StackTrace() errors.StackTrace {
	return err.stack.(interface{ StackTrace() errors.StackTrace }).StackTrace()
}

// Format writes the error into the state of the formatter.
func (err *MalformedInputError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// IsMalformedInput returns true if err, or an error it wraps, is a
// malformed input error.
func IsMalformedInput(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}

// InternalError marks an internal consistency failure: a registered
// decomposition or the registry itself is broken.
type InternalError struct {
	err error
}

// Internal marks an error as internal.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return &InternalError{err: err}
}

// Internalf returns a new internal error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

// Error returns the error message.
func (err *InternalError) Error() string {
	return fmt.Sprintf("JIT internal error. This is a bug in the JIT or in a registered decomposition. Error:\n%v", err.err)
}

// Unwrap returns the error marked as internal.
func (err *InternalError) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err *InternalError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// IsInternal returns true if err, or an error it wraps, is an internal error.
func IsInternal(err error) bool {
	var target *InternalError
	return errors.As(err, &target)
}
