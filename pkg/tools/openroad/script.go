package openroad

import (
	"fmt"
	"strings"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/schema"
	"github.com/rcxbench/rcxbench/pkg/tools"
)

// Script generates the Tcl batch script for a task. The script is a pure
// function of the run info, so the runner can hash it into the step cache
// key before anything executes.
func (d *driver) Script(info *tools.RunInfo) (string, error) {
	switch info.Task {
	case TaskRCXBench:
		return d.rcxBenchScript(info)
	default:
		return "", errors.New(errors.ErrCodeUnsupported,
			"tool %s has no task %s", toolName, info.Task)
	}
}

// rcxBenchScript derives the calibration bench parameters and emits the
// three OpenROAD commands: generate the bench wire patterns, write them out
// as a verilog netlist, and write the layout DEF.
func (d *driver) rcxBenchScript(info *tools.RunInfo) (string, error) {
	m := info.Manifest

	benchLength, err := m.GetInt(schema.TaskVarPath(toolName, info.Task, "bench_length"))
	if err != nil {
		return "", err
	}
	if benchLength <= 0 {
		return "", errors.New(errors.ErrCodeInvalidConfig,
			"bench_length must be positive, got %d", benchLength)
	}

	maxLayer, err := m.GetStr(schema.TaskVarPath(toolName, info.Task, "max_layer"))
	if err != nil {
		return "", err
	}
	maxLevel, err := info.Tech.RoutingLevel(maxLayer)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s bench generation for %s\n", TaskRCXBench, info.Design)
	fmt.Fprintf(&b, "# max layer %s resolves to routing level %d\n\n", maxLayer, maxLevel)
	fmt.Fprintf(&b, "bench_wires -met_cnt %d -len %d -all\n", maxLevel, benchLength)
	fmt.Fprintf(&b, "bench_verilog outputs/%s.vg\n", info.Design)
	fmt.Fprintf(&b, "write_def outputs/%s.def\n", info.Design)
	return b.String(), nil
}
