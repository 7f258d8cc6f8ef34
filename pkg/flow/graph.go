// Package flow implements the flowgraph and the step runner.
//
// A flowgraph is a small DAG of named steps, each bound to an external tool
// task. The runner executes steps in topological order inside a build
// directory tree, wiring each step's inputs/ to its predecessors' outputs/
// and consulting the step cache before launching anything.
package flow

import (
	"sort"
	"strings"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/schema"
)

// Step is one node of the flowgraph.
type Step struct {
	// Name is the step name, also the directory prefix in the build tree.
	Name string

	// Tool and Task bind the step to a driver task.
	Tool string
	Task string

	// Inputs are the names of predecessor steps.
	Inputs []string
}

// Graph is a flowgraph. The zero value is not usable; call NewGraph.
type Graph struct {
	steps map[string]*Step
}

// NewGraph creates an empty flowgraph.
func NewGraph() *Graph {
	return &Graph{steps: make(map[string]*Step)}
}

// AddStep adds a step to the graph.
func (g *Graph) AddStep(s Step) error {
	if err := errors.ValidateStepName(s.Name); err != nil {
		return err
	}
	if _, dup := g.steps[s.Name]; dup {
		return errors.New(errors.ErrCodeInvalidFlow, "duplicate step %s", s.Name)
	}
	if s.Tool == "" || s.Task == "" {
		return errors.New(errors.ErrCodeInvalidFlow, "step %s needs both tool and task", s.Name)
	}
	copied := s
	copied.Inputs = append([]string(nil), s.Inputs...)
	g.steps[s.Name] = &copied
	return nil
}

// Step returns a step by name.
func (g *Graph) Step(name string) (*Step, error) {
	s, ok := g.steps[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeStepNotFound, "no step %s in flowgraph", name)
	}
	return s, nil
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Validate checks that every input edge points at an existing step and that
// the graph has no cycles.
func (g *Graph) Validate() error {
	for _, s := range g.steps {
		for _, in := range s.Inputs {
			if _, ok := g.steps[in]; !ok {
				return errors.New(errors.ErrCodeInvalidFlow,
					"step %s has unknown input %s", s.Name, in)
			}
		}
	}
	if _, err := g.topoSort(); err != nil {
		return err
	}
	return nil
}

// Steps returns the step names in topological order. Steps with no ordering
// constraint between them come out alphabetically, so the order is stable
// across runs.
func (g *Graph) Steps() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g.topoSort()
}

// topoSort is Kahn's algorithm with a sorted ready list.
func (g *Graph) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.steps))
	dependents := make(map[string][]string, len(g.steps))
	for name, s := range g.steps {
		indegree[name] += 0
		for _, in := range s.Inputs {
			indegree[name]++
			dependents[in] = append(dependents[in], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(g.steps) {
		return nil, errors.New(errors.ErrCodeInvalidFlow, "flowgraph has a cycle")
	}
	return order, nil
}

// FromManifest builds the flowgraph from the flowgraph.* section of a
// manifest.
func FromManifest(m *schema.Manifest) (*Graph, error) {
	g := NewGraph()

	names := make(map[string]bool)
	for _, key := range m.Keys("flowgraph") {
		parts := strings.Split(key, ".")
		if len(parts) >= 3 {
			names[parts[1]] = true
		}
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFlow, "manifest defines no flowgraph steps")
	}

	for name := range names {
		tool, err := m.GetStr("flowgraph." + name + ".tool")
		if err != nil {
			return nil, err
		}
		task, err := m.GetStr("flowgraph." + name + ".task")
		if err != nil {
			return nil, err
		}
		var inputs []string
		if m.Valid("flowgraph." + name + ".input") {
			inputs, _ = m.Get("flowgraph." + name + ".input")
		}
		if err := g.AddStep(Step{Name: name, Tool: tool, Task: task, Inputs: inputs}); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
