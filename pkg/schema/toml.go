package schema

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rcxbench/rcxbench/pkg/errors"
)

// fileManifest mirrors the TOML flow manifest layout:
//
//	design = "gcd"
//
//	[options]
//	build_dir = "build"
//
//	[tech]
//	lef = "sky130.tech.lef"
//
//	[flowgraph.rcx_bench]
//	tool = "openroad"
//	task = "rcx_bench"
//	input = []
//
//	[tool.openroad.task.rcx_bench.var]
//	bench_length = 100
//	max_layer = "metal5"
type fileManifest struct {
	Design    string                 `toml:"design"`
	Options   map[string]any         `toml:"options"`
	Tech      map[string]string      `toml:"tech"`
	Flowgraph map[string]stepSection `toml:"flowgraph"`
	Tool      map[string]toolSection `toml:"tool"`
}

type stepSection struct {
	Tool  string   `toml:"tool"`
	Task  string   `toml:"task"`
	Input []string `toml:"input"`
}

type toolSection struct {
	Exe  string                 `toml:"exe"`
	Task map[string]taskSection `toml:"task"`
}

type taskSection struct {
	Var map[string]any `toml:"var"`
}

// Load reads a TOML flow manifest from path and flattens it into a Manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot read manifest %s", path)
	}

	var fm fileManifest
	if err := toml.Unmarshal(data, &fm); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "malformed manifest %s", path)
	}

	if fm.Design == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "manifest %s has no design name", path)
	}
	if err := errors.ValidateDesignName(fm.Design); err != nil {
		return nil, err
	}

	m := New(fm.Design)

	for name, val := range fm.Options {
		vals, err := coerce(val)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "option %s", name)
		}
		m.Set("option."+name, vals...)
	}

	for name, val := range fm.Tech {
		m.Set("tech."+name, val)
	}

	for step, sec := range fm.Flowgraph {
		if err := errors.ValidateStepName(step); err != nil {
			return nil, err
		}
		if sec.Tool == "" || sec.Task == "" {
			return nil, errors.New(errors.ErrCodeInvalidFlow, "step %s needs both tool and task", step)
		}
		m.Set("flowgraph."+step+".tool", sec.Tool)
		m.Set("flowgraph."+step+".task", sec.Task)
		m.Set("flowgraph."+step+".input", sec.Input...)
	}

	for tool, sec := range fm.Tool {
		if sec.Exe != "" {
			m.Set("tool."+tool+".exe", sec.Exe)
		}
		for task, ts := range sec.Task {
			for name, val := range ts.Var {
				vals, err := coerce(val)
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err,
						"tool %s task %s var %s", tool, task, name)
				}
				m.Set(TaskVarPath(tool, task, name), vals...)
			}
		}
	}

	return m, nil
}

// coerce normalizes a decoded TOML value into the string-list leaf format.
// Scalars become single-element lists; arrays are converted element-wise.
func coerce(val any) ([]string, error) {
	switch v := val.(type) {
	case string:
		return []string{v}, nil
	case int64:
		return []string{fmt.Sprintf("%d", v)}, nil
	case float64:
		return []string{fmt.Sprintf("%g", v)}, nil
	case bool:
		return []string{fmt.Sprintf("%t", v)}, nil
	case []any:
		var out []string
		for _, e := range v {
			vals, err := coerce(e)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
}
