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

// Package schema parses and prints operator schemas.
//
// A schema literal has the form:
//
//	ns::name[.overload](Type arg, Type arg=default, ...) -> Type
//	ns::name[.overload](Type arg, ...) -> (Type, Type)
package schema

import (
	"strings"

	"github.com/pkg/errors"
)

type (
	// Argument of an operator, or one of its results.
	Argument struct {
		Name       string
		Type       string
		Default    string
		HasDefault bool
	}

	// FunctionSchema is the signature of an operator.
	FunctionSchema struct {
		Name      string
		Overload  string
		Arguments []Argument
		Returns   []Argument
	}
)

// Parse a schema literal.
func Parse(literal string) (*FunctionSchema, error) {
	p := parser{literal: literal}
	return p.parse()
}

// MustParse parses a schema literal known to be valid. It panics otherwise.
func MustParse(literal string) *FunctionSchema {
	s, err := Parse(literal)
	if err != nil {
		panic(err)
	}
	return s
}

type parser struct {
	literal string
}

func (p *parser) errorf(format string, a ...any) error {
	return errors.Errorf("invalid schema %q: %s", p.literal, errors.Errorf(format, a...).Error())
}

// closing returns the index of the parenthesis closing the one at open.
func closing(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s at commas which are not nested in brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func (p *parser) parse() (*FunctionSchema, error) {
	lit := strings.TrimSpace(p.literal)
	open := strings.IndexByte(lit, '(')
	if open < 0 {
		return nil, p.errorf("missing argument list")
	}
	s := &FunctionSchema{}
	s.Name, s.Overload, _ = strings.Cut(strings.TrimSpace(lit[:open]), ".")
	if s.Name == "" {
		return nil, p.errorf("missing operator name")
	}
	end := closing(lit, open)
	if end < 0 {
		return nil, p.errorf("unbalanced parentheses")
	}
	var err error
	if s.Arguments, err = p.parseArguments(lit[open+1 : end]); err != nil {
		return nil, err
	}
	rest := strings.TrimSpace(lit[end+1:])
	if rest == "" {
		return s, nil
	}
	rets, ok := strings.CutPrefix(rest, "->")
	if !ok {
		return nil, p.errorf("unexpected %q after the argument list", rest)
	}
	if s.Returns, err = p.parseReturns(strings.TrimSpace(rets)); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseArguments(list string) ([]Argument, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var args []Argument
	for _, field := range splitTopLevel(list) {
		field = strings.TrimSpace(field)
		if field == "*" {
			continue
		}
		decl, def, hasDefault := strings.Cut(field, "=")
		words := strings.Fields(decl)
		if len(words) < 2 {
			return nil, p.errorf("argument %q needs a type and a name", field)
		}
		args = append(args, Argument{
			Type:       strings.Join(words[:len(words)-1], " "),
			Name:       words[len(words)-1],
			Default:    strings.TrimSpace(def),
			HasDefault: hasDefault,
		})
	}
	return args, nil
}

func (p *parser) parseReturns(rets string) ([]Argument, error) {
	if strings.HasPrefix(rets, "(") {
		if closing(rets, 0) != len(rets)-1 {
			return nil, p.errorf("invalid return list %q", rets)
		}
		rets = strings.TrimSpace(rets[1 : len(rets)-1])
		if rets == "" {
			return nil, nil
		}
	}
	var results []Argument
	for _, field := range splitTopLevel(rets) {
		words := strings.Fields(field)
		switch len(words) {
		case 1:
			results = append(results, Argument{Type: words[0]})
		case 2:
			results = append(results, Argument{Type: words[0], Name: words[1]})
		default:
			return nil, p.errorf("invalid return %q", field)
		}
	}
	return results, nil
}

// QualifiedName returns the name of the operator with its overload, if any.
func (s *FunctionSchema) QualifiedName() string {
	if s.Overload == "" {
		return s.Name
	}
	return s.Name + "." + s.Overload
}

// MinArgs returns the number of arguments without a default value.
func (s *FunctionSchema) MinArgs() int {
	n := 0
	for _, arg := range s.Arguments {
		if !arg.HasDefault {
			n++
		}
	}
	return n
}

func writeReturns(b *strings.Builder, rets []Argument, names bool) {
	b.WriteString(" -> ")
	if len(rets) == 1 && !(names && rets[0].Name != "") {
		b.WriteString(rets[0].Type)
		return
	}
	b.WriteString("(")
	for i, ret := range rets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ret.Type)
		if names && ret.Name != "" {
			b.WriteString(" " + ret.Name)
		}
	}
	b.WriteString(")")
}

// Signature returns the canonical identity of the operator: its qualified
// name, the types of its arguments and the types of its results.
// Two schemas with the same signature denote the same operator.
func (s *FunctionSchema) Signature() string {
	var b strings.Builder
	b.WriteString(s.QualifiedName())
	b.WriteString("(")
	for i, arg := range s.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Type)
	}
	b.WriteString(")")
	writeReturns(&b, s.Returns, false)
	return b.String()
}

// String returns the schema literal.
func (s *FunctionSchema) String() string {
	var b strings.Builder
	b.WriteString(s.QualifiedName())
	b.WriteString("(")
	for i, arg := range s.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Type + " " + arg.Name)
		if arg.HasDefault {
			b.WriteString("=" + arg.Default)
		}
	}
	b.WriteString(")")
	writeReturns(&b, s.Returns, true)
	return b.String()
}
