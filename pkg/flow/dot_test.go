package flow

import (
	"strings"
	"testing"
)

func dotTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	steps := []Step{
		{Name: "import", Tool: "openroad", Task: "load"},
		{Name: "bench", Tool: "openroad", Task: "rcx_bench", Inputs: []string{"import"}},
	}
	for _, s := range steps {
		if err := g.AddStep(s); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestToDOT(t *testing.T) {
	dot, err := ToDOT(dotTestGraph(t), DOTOptions{})
	if err != nil {
		t.Fatalf("ToDOT() error = %v", err)
	}

	for _, want := range []string{
		"digraph flow {",
		`"import" [label="import"];`,
		`"bench" [label="bench"];`,
		`"import" -> "bench";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot, err := ToDOT(dotTestGraph(t), DOTOptions{Detailed: true})
	if err != nil {
		t.Fatalf("ToDOT() error = %v", err)
	}
	if !strings.Contains(dot, "openroad/rcx_bench") {
		t.Errorf("detailed labels missing tool/task:\n%s", dot)
	}
}

func TestToDOTDeterministic(t *testing.T) {
	a, err := ToDOT(dotTestGraph(t), DOTOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ToDOT(dotTestGraph(t), DOTOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("ToDOT() output not deterministic")
	}
}

func TestToDOTInvalidGraph(t *testing.T) {
	g := NewGraph()
	_ = g.AddStep(Step{Name: "a", Tool: "t", Task: "x", Inputs: []string{"b"}})
	_ = g.AddStep(Step{Name: "b", Tool: "t", Task: "x", Inputs: []string{"a"}})

	if _, err := ToDOT(g, DOTOptions{}); err == nil {
		t.Error("ToDOT(cyclic) expected error")
	}
}

func TestRenderSVG(t *testing.T) {
	dot, err := ToDOT(dotTestGraph(t), DOTOptions{})
	if err != nil {
		t.Fatal(err)
	}

	svg, err := RenderSVG(dot)
	if err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("RenderSVG() output is not SVG")
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"flow.dot", "dot", false},
		{"flow.svg", "svg", false},
		{"flow.png", "png", false},
		{"flow.pdf", "", true},
		{"flow", "", true},
	}
	for _, tt := range tests {
		got, err := FormatForPath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatForPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("FormatForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
