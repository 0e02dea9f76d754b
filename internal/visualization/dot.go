// Package visualization renders neuron networks in various output formats.
package visualization

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvandessel/neurogrid/internal/brain"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat accepts "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want dot or json)", s)
}

// nodeColors maps neuron kinds to DOT colors.
var nodeColors = map[string]string{
	brain.KindGeneric: "steelblue",
	brain.KindPrimary: "goldenrod",
}

// Render draws states in the given format.
func Render(states []brain.State, format Format) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(RenderDOT(states)), nil
	case FormatJSON:
		return json.MarshalIndent(RenderJSON(states), "", "  ")
	}
	return nil, fmt.Errorf("unknown graph format %q", format)
}

// RenderDOT produces a Graphviz DOT representation of the network. Nodes are
// named by grid position; refractory neurons are drawn dashed.
func RenderDOT(states []brain.State) string {
	var b strings.Builder
	b.WriteString("digraph neurogrid {\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, s := range states {
		style := "filled"
		if !s.CanFire {
			style = "filled,dashed"
		}
		label := s.Position.String()
		if s.Kind == brain.KindGeneric {
			label = fmt.Sprintf("%s\\nimp=%d age=%d", s.Position, s.Importance, s.Age)
		}
		fmt.Fprintf(&b, "  %q [label=\"%s\", fillcolor=%q, style=%q];\n",
			s.Position.String(), label, nodeColors[s.Kind], style)
	}
	b.WriteString("\n")

	for _, s := range states {
		for _, c := range s.Recipients {
			fmt.Fprintf(&b, "  %q -> %q [label=\"%d\", penwidth=%.1f];\n",
				s.Position.String(), c.Target.String(), c.Age, penWidth(c.Age))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON graph representation with nodes and edges arrays.
func RenderJSON(states []brain.State) map[string]interface{} {
	nodes := make([]map[string]interface{}, 0, len(states))
	edges := make([]map[string]interface{}, 0)
	for _, s := range states {
		nodes = append(nodes, map[string]interface{}{
			"id":         s.ID.String(),
			"kind":       s.Kind,
			"position":   s.Position,
			"importance": s.Importance,
			"age":        s.Age,
			"can_fire":   s.CanFire,
		})
		for _, c := range s.Recipients {
			edges = append(edges, map[string]interface{}{
				"source": s.ID.String(),
				"target": c.TargetID.String(),
				"age":    c.Age,
			})
		}
	}

	return map[string]interface{}{
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	}
}

// penWidth scales edge thickness with connection age, from 1 to 5.
func penWidth(age int) float64 {
	switch {
	case age <= 1:
		return 1
	case age >= 50:
		return 5
	}
	return 1 + 4*float64(age-1)/49
}
