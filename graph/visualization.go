package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Exporter provides methods to export graphs in different formats
type Exporter struct {
	graph *StateGraph
}

// NewExporter creates a new graph exporter for the given graph
func NewExporter(graph *StateGraph) *Exporter {
	return &Exporter{graph: graph}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram representation of the graph
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{
		Direction: "TD",
	})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Conditional edges are labeled with their declared edge keys.
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	if ge.graph.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString(fmt.Sprintf("    START --> %s\n", ge.graph.entryPoint))
	}

	nodeNames := make([]string, 0, len(ge.graph.nodes))
	for name := range ge.graph.nodes {
		nodeNames = append(nodeNames, name)
	}
	sort.Strings(nodeNames)

	for _, name := range nodeNames {
		node := ge.graph.nodes[name]
		label := node.Name
		if node.Description != "" {
			label = node.Description
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", name, label))
	}

	sb.WriteString("    END([\"END\"])\n")

	froms := make([]string, 0, len(ge.graph.edges))
	for from := range ge.graph.edges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, ge.graph.edges[from]))
	}

	condFroms := make([]string, 0, len(ge.graph.conditionalEdges))
	for from := range ge.graph.conditionalEdges {
		condFroms = append(condFroms, from)
	}
	sort.Strings(condFroms)
	for _, from := range condFroms {
		ce := ge.graph.conditionalEdges[from]
		keys := make([]string, 0, len(ce.edgeMap))
		for key := range ce.edgeMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("    %s -. %s .-> %s\n", from, key, ce.edgeMap[key]))
		}
	}

	return sb.String()
}
