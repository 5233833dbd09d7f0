package graph

import (
	"sort"
	"strings"
)

// PathString is a rendered path plus the interested entity it terminates at.
type PathString struct {
	Path             string `json:"path"`
	InterestedEntity string `json:"interested_entity"`
}

// edge property keys never rendered in path strings.
var hiddenPathProps = map[string]bool{"ROLE": true}

// FormatPaths renders alternating vertex/edge paths as human-readable
// strings, with arrows following edge direction:
// "A --> label(k:v) --> B <-- label <-- C".
func FormatPaths(paths []Path) []PathString {
	out := make([]PathString, 0, len(paths))
	for _, p := range paths {
		out = append(out, formatPath(p))
	}
	return out
}

func formatPath(p Path) PathString {
	var b strings.Builder
	var last string

	for i, el := range p.Elements {
		if el.Vertex != nil {
			b.WriteString(el.Vertex.Name())
			if i < len(p.Elements)-1 {
				if next := p.Elements[i+1].Edge; next != nil && next.To == el.Vertex.ID {
					b.WriteString(" <-- ")
				} else {
					b.WriteString(" --> ")
				}
			} else {
				last = el.Vertex.Name()
			}
			continue
		}

		e := el.Edge
		b.WriteString(e.Label)
		if props := formatEdgeProps(e.Properties, hiddenPathProps); props != "" {
			b.WriteString(" (" + props + ")")
		}
		if i > 0 {
			if prev := p.Elements[i-1].Vertex; prev != nil && e.To == prev.ID {
				b.WriteString(" <-- ")
			} else {
				b.WriteString(" --> ")
			}
		}
	}

	return PathString{Path: b.String(), InterestedEntity: last}
}

func formatEdgeProps(props map[string]string, hidden map[string]bool) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		if hidden[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+props[k])
	}
	return strings.Join(parts, ",")
}

// Candidate is a vertex with its relationship context, the shape handed to
// the disambiguator and returned by candidate lookups.
type Candidate struct {
	ID         string            `json:"ID"`
	Label      string            `json:"LABEL"`
	Name       string            `json:"NAME"`
	Properties map[string]string `json:"PROPERTIES"`
	Edges      []string          `json:"EDGES"`
}

// formatContextEdges renders a vertex's neighborhood as one line per edge,
// e.g. "ACME --> is a supplier/partner of (PRODUCTS:WIDGETS) --> GLOBEX".
func formatContextEdges(name string, outSteps, inSteps []Step) []string {
	var out []string
	for _, s := range outSteps {
		out = append(out, formatContextEdge(name, s.Edge, s.Other.Name(), true))
	}
	for _, s := range inSteps {
		out = append(out, formatContextEdge(name, s.Edge, s.Other.Name(), false))
	}
	return out
}

func formatContextEdge(name string, e Edge, other string, outgoing bool) string {
	label := e.Label
	if props := formatEdgeProps(e.Properties, nil); props != "" {
		label += " (" + props + ")"
	}
	if outgoing {
		return name + " -> " + label + " -> " + other
	}
	return other + " -> " + label + " -> " + name
}
