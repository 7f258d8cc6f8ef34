// Package tools defines the external tool driver interface.
//
// A driver owns everything tool-specific about a flow step: generating the
// batch script, assembling the command line, launching the process, and
// post-processing the log. The runner stays tool-agnostic and talks to
// drivers through the registry.
package tools

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/schema"
	"github.com/rcxbench/rcxbench/pkg/tech"
)

// RunInfo carries everything a driver needs to execute one step.
type RunInfo struct {
	// Design is the design top name.
	Design string

	// Step and Task identify the flowgraph binding. Index distinguishes
	// parallel variants of a step; the sequential runner always passes "0"
	// but it stays in directory names for manifest compatibility.
	Step  string
	Task  string
	Index string

	// WorkDir is the absolute step directory. The driver may assume
	// inputs/, outputs/ and reports/ exist underneath it.
	WorkDir string

	// Manifest is the flow configuration (read-only during execution).
	Manifest *schema.Manifest

	// Tech is the technology database.
	Tech *tech.Database

	// Logger is the step-scoped logger.
	Logger *log.Logger
}

// Result reports what a driver produced.
type Result struct {
	// LogFile is the absolute path of the tool log.
	LogFile string

	// Metrics are values extracted from the log during post-processing.
	Metrics map[string]float64

	// Outputs are paths relative to WorkDir of the files written into
	// outputs/.
	Outputs []string
}

// Driver is implemented once per external tool.
type Driver interface {
	// Name returns the tool name used in flowgraph bindings.
	Name() string

	// Version reports the external tool's version string, typically by
	// running it with its version switch.
	Version(ctx context.Context, m *schema.Manifest) (string, error)

	// Script generates the batch script for a step without running
	// anything. The runner hashes the returned text into the step cache
	// key, so the script must be a pure function of RunInfo.
	Script(info *RunInfo) (string, error)

	// Run executes the step. The script passed in is the one returned by
	// Script for the same RunInfo.
	Run(ctx context.Context, info *RunInfo, script string) (*Result, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Driver)
)

// Register adds a driver to the registry. Drivers register themselves from
// an init function; re-registering a name panics since it is always a
// programming error.
func Register(d Driver) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[d.Name()]; dup {
		panic("tools: duplicate driver " + d.Name())
	}
	registry[d.Name()] = d
}

// Lookup returns the driver for a tool name.
func Lookup(name string) (Driver, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeToolNotFound, "no driver registered for tool %s", name)
	}
	return d, nil
}

// Names returns the registered tool names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
