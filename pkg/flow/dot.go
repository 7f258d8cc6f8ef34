package flow

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

// DOTOptions configures flowgraph rendering.
type DOTOptions struct {
	// Detailed includes tool and task names in node labels.
	// When false, only the step name is shown.
	Detailed bool
}

// ToDOT converts a flowgraph to Graphviz DOT format. The resulting DOT
// string can be rendered with [RenderSVG] or [RenderPNG]. Steps come out
// in topological order so the output is stable.
func ToDOT(g *Graph, opts DOTOptions) (string, error) {
	order, err := g.Steps()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("digraph flow {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, name := range order {
		s, _ := g.Step(name)
		label := name
		if opts.Detailed {
			label = fmt.Sprintf("%s\n%s/%s", name, s.Tool, s.Task)
		}
		fmt.Fprintf(&buf, "  %q [label=%q];\n", name, label)
	}

	buf.WriteString("\n")
	for _, name := range order {
		s, _ := g.Step(name)
		inputs := append([]string(nil), s.Inputs...)
		for _, in := range inputs {
			fmt.Fprintf(&buf, "  %q -> %q;\n", in, name)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.PNG)
}

func renderFormat(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatForPath picks a render format from a file extension. Supported are
// .dot, .svg and .png.
func FormatForPath(path string) (string, error) {
	switch {
	case strings.HasSuffix(path, ".dot"):
		return "dot", nil
	case strings.HasSuffix(path, ".svg"):
		return "svg", nil
	case strings.HasSuffix(path, ".png"):
		return "png", nil
	}
	return "", fmt.Errorf("unsupported output format for %s (want .dot, .svg or .png)", path)
}
