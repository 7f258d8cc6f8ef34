// Package schema implements the flow configuration store.
//
// Configuration values live in a flat key-value tree addressed by dotted
// paths. Tool- and task-scoped variables follow the canonical layout
//
//	tool.<tool>.task.<task>.var.<name>
//
// so the bench length for the OpenROAD rcx_bench task is read as
//
//	m.GetInt(schema.TaskVarPath("openroad", "rcx_bench", "bench_length"))
//
// Every leaf holds a list of strings; scalar accessors take the first
// element. Missing keys return typed KEY_NOT_FOUND errors rather than
// empty values, so a misconfigured flow fails before the external tool
// is launched.
package schema

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rcxbench/rcxbench/pkg/errors"
)

// Well-known option paths.
const (
	KeyBuildDir = "option.build_dir"
	KeyJobName  = "option.jobname"
	KeyJobID    = "option.jobid"
	KeyTechLEF  = "tech.lef"
)

// Defaults applied by New.
const (
	DefaultBuildDir = "build"
	DefaultJobName  = "job"
)

// Manifest is the configuration store for one flow run.
// It is not safe for concurrent mutation; during a run only the runner
// touches it (the arg.* keys it stamps into each step's output manifest).
type Manifest struct {
	design string
	values map[string][]string
}

// New creates an empty manifest for the given design with default options.
func New(design string) *Manifest {
	m := &Manifest{
		design: design,
		values: make(map[string][]string),
	}
	m.Set(KeyBuildDir, DefaultBuildDir)
	m.Set(KeyJobName, DefaultJobName)
	m.Set(KeyJobID, "0")
	return m
}

// Design returns the design top name.
func (m *Manifest) Design() string {
	return m.design
}

// TaskVarPath builds the canonical path for a tool/task-scoped variable.
func TaskVarPath(tool, task, name string) string {
	return strings.Join([]string{"tool", tool, "task", task, "var", name}, ".")
}

// Get returns all values stored at path.
func (m *Manifest) Get(path string) ([]string, error) {
	vals, ok := m.values[path]
	if !ok {
		return nil, errors.New(errors.ErrCodeKeyNotFound, "no value set for %s", path)
	}
	return vals, nil
}

// GetStr returns the first value stored at path.
func (m *Manifest) GetStr(path string) (string, error) {
	vals, err := m.Get(path)
	if err != nil {
		return "", err
	}
	if len(vals) == 0 {
		return "", errors.New(errors.ErrCodeKeyNotFound, "empty value list for %s", path)
	}
	return vals[0], nil
}

// GetInt returns the first value stored at path parsed as an integer.
func (m *Manifest) GetInt(path string) (int, error) {
	s, err := m.GetStr(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidConfig, err, "value at %s is not an integer", path)
	}
	return n, nil
}

// Set replaces the values stored at path.
func (m *Manifest) Set(path string, values ...string) {
	m.values[path] = append([]string(nil), values...)
}

// Add appends values to the list stored at path, creating it if absent.
func (m *Manifest) Add(path string, values ...string) {
	m.values[path] = append(m.values[path], values...)
}

// Valid reports whether path has a value.
func (m *Manifest) Valid(path string) bool {
	_, ok := m.values[path]
	return ok
}

// Keys returns all paths with the given prefix, sorted.
// An empty prefix returns every path.
func (m *Manifest) Keys(prefix string) []string {
	var keys []string
	for k := range m.values {
		if prefix == "" || k == prefix || strings.HasPrefix(k, prefix+".") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// BuildDir returns the build directory option.
func (m *Manifest) BuildDir() string {
	s, err := m.GetStr(KeyBuildDir)
	if err != nil {
		return DefaultBuildDir
	}
	return s
}

// JobName returns the job name option combined with the job id,
// e.g. "job0". This names the per-run directory under the design dir.
func (m *Manifest) JobName() string {
	name, err := m.GetStr(KeyJobName)
	if err != nil {
		name = DefaultJobName
	}
	id, err := m.GetStr(KeyJobID)
	if err != nil {
		id = "0"
	}
	return name + id
}

// jsonManifest is the serialized form written into step outputs.
type jsonManifest struct {
	Design string              `json:"design"`
	Values map[string][]string `json:"values"`
}

// WriteJSON writes the manifest as indented JSON.
// The runner drops this into each step's outputs as <design>.pkg.json so a
// later step (or a human) can reconstruct the exact configuration used.
func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonManifest{
		Design: m.design,
		Values: m.values,
	})
}

// ReadJSON reads a manifest previously written with WriteJSON.
func ReadJSON(r io.Reader) (*Manifest, error) {
	var jm jsonManifest
	if err := json.NewDecoder(r).Decode(&jm); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "malformed manifest JSON")
	}
	m := New(jm.Design)
	for k, v := range jm.Values {
		m.Set(k, v...)
	}
	return m, nil
}
