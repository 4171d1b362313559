package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format is an output format for Render.
type Format string

const (
	FormatText    Format = "text"
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
	FormatJSON    Format = "json"
)

// SupportedFormats lists every format Render accepts.
func SupportedFormats() []Format {
	return []Format{FormatText, FormatMermaid, FormatDOT, FormatJSON}
}

// Render produces a visual representation of the level ordering.
func Render(g *Graph, format Format) (string, error) {
	switch format {
	case FormatText:
		return renderText(g), nil
	case FormatMermaid:
		return renderMermaid(g), nil
	case FormatDOT:
		return renderDOT(g), nil
	case FormatJSON:
		return renderJSON(g)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func renderText(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("Task Graph\n")
	sb.WriteString("==========\n\n")

	for i, lvl := range g.levels {
		fmt.Fprintf(&sb, "┌─ Level %d\n", i)
		for j, id := range lvl {
			prefix := "├──"
			if j == len(lvl)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(&sb, "│ %s [%s]\n", prefix, id)
			if deps := g.preds[id]; len(deps) > 0 {
				fmt.Fprintf(&sb, "│       ⤷ depends on: %s\n", strings.Join(deps, ", "))
			}
		}
		if i < len(g.levels)-1 {
			sb.WriteString("↓\n")
		}
	}

	fmt.Fprintf(&sb, "\nTotal: %d tasks across %d levels\n", len(g.order), len(g.levels))
	return sb.String()
}

func mermaidID(id string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(id)
}

func renderMermaid(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph TD\n")
	for i, lvl := range g.levels {
		fmt.Fprintf(&sb, "    subgraph level%d[\"Level %d\"]\n", i, i)
		for _, id := range lvl {
			fmt.Fprintf(&sb, "        %s[\"%s\"]\n", mermaidID(id), id)
		}
		sb.WriteString("    end\n")
	}
	sb.WriteString("\n")
	for _, id := range g.order {
		for _, dep := range g.preds[id] {
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(dep), mermaidID(id))
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func renderDOT(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph Tasks {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n\n")
	for i, lvl := range g.levels {
		fmt.Fprintf(&sb, "    subgraph cluster_%d {\n", i)
		fmt.Fprintf(&sb, "        label=\"Level %d\";\n", i)
		sb.WriteString("        color=lightgrey;\n")
		for _, id := range lvl {
			fmt.Fprintf(&sb, "        %q;\n", id)
		}
		sb.WriteString("    }\n")
	}
	sb.WriteString("\n")
	for _, id := range g.order {
		for _, dep := range g.preds[id] {
			fmt.Fprintf(&sb, "    %q -> %q;\n", dep, id)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

type jsonNode struct {
	ID        string   `json:"id"`
	Level     int      `json:"level"`
	DependsOn []string `json:"depends_on"`
}

type jsonGraph struct {
	Levels [][]string `json:"levels"`
	Tasks  []jsonNode `json:"tasks"`
}

func renderJSON(g *Graph) (string, error) {
	out := jsonGraph{Levels: g.Levels(), Tasks: make([]jsonNode, 0, len(g.order))}
	for _, id := range g.order {
		deps := g.Predecessors(id)
		if deps == nil {
			deps = []string{}
		}
		out.Tasks = append(out.Tasks, jsonNode{ID: id, Level: g.levelOf[id], DependsOn: deps})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal graph: %w", err)
	}
	return string(data) + "\n", nil
}
