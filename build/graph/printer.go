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

package graph

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

type printer struct {
	b     strings.Builder
	names map[*Value]string
	taken map[string]int
	next  int
}

func (p *printer) name(v *Value) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	var name string
	switch {
	case v.name == "":
		for {
			name = fmt.Sprint(p.next)
			p.next++
			if p.taken[name] == 0 {
				break
			}
		}
	case p.taken[v.name] == 0:
		name = v.name
	default:
		name = fmt.Sprintf("%s.%d", v.name, p.taken[v.name])
	}
	p.taken[v.name]++
	p.taken[name]++
	p.names[v] = name
	return name
}

func (p *printer) values(vals []*Value) string {
	ss := make([]string, len(vals))
	for i, v := range vals {
		ss[i] = "%" + p.name(v)
	}
	return strings.Join(ss, ", ")
}

func (p *printer) defs(vals []*Value) string {
	ss := make([]string, len(vals))
	for i, v := range vals {
		ss[i] = "%" + p.name(v) + " : " + v.typ
	}
	return strings.Join(ss, ", ")
}

func (p *printer) node(indent string, n *Node) {
	p.b.WriteString(indent)
	if len(n.outputs) > 0 {
		p.b.WriteString(p.defs(n.outputs))
		p.b.WriteString(" = ")
	}
	p.b.WriteString(n.kind)
	if len(n.attrs) > 0 {
		keys := maps.Keys(n.attrs)
		slices.Sort(keys)
		var attrs []string
		for _, key := range keys {
			attrs = append(attrs, key+"="+n.attrs[key].String())
		}
		p.b.WriteString("[" + strings.Join(attrs, ", ") + "]")
	}
	p.b.WriteString("(" + p.values(n.inputs) + ")\n")
	for i, sub := range n.blocks {
		fmt.Fprintf(&p.b, "%s  block%d(%s):\n", indent, i, p.defs(sub.Inputs()))
		p.block(indent+"    ", sub)
		fmt.Fprintf(&p.b, "%s    -> (%s)\n", indent, p.values(sub.Outputs()))
	}
}

func (p *printer) block(indent string, b *Block) {
	for n := range b.Nodes() {
		p.node(indent, n)
	}
}

// String returns a textual representation of the graph.
func (g *Graph) String() string {
	p := &printer{
		names: make(map[*Value]string),
		taken: make(map[string]int),
	}
	fmt.Fprintf(&p.b, "graph(%s):\n", p.defs(g.Inputs()))
	p.block("  ", g.top)
	fmt.Fprintf(&p.b, "  return (%s)\n", p.values(g.Outputs()))
	return p.b.String()
}
