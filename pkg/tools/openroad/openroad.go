// Package openroad drives the OpenROAD binary.
//
// The only task currently bound is rcx_bench: generating parasitic
// extraction calibration benches. The driver derives the bench parameters
// from the flow manifest and the technology database, writes a Tcl batch
// script, and runs OpenROAD over it in batch mode. Pattern synthesis and
// netlist/DEF serialization happen entirely inside OpenROAD; this driver
// only plumbs parameters and checks the log.
package openroad

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/observability"
	"github.com/rcxbench/rcxbench/pkg/schema"
	"github.com/rcxbench/rcxbench/pkg/tools"
)

const (
	toolName   = "openroad"
	defaultExe = "openroad"

	// TaskRCXBench generates extraction calibration benches.
	TaskRCXBench = "rcx_bench"
)

func init() {
	tools.Register(&driver{})
}

type driver struct{}

// Name returns the tool name used in flowgraph bindings.
func (d *driver) Name() string {
	return toolName
}

// exe resolves the OpenROAD binary, honoring a tool.openroad.exe override.
func (d *driver) exe(m *schema.Manifest) string {
	if m != nil {
		if exe, err := m.GetStr("tool." + toolName + ".exe"); err == nil {
			return exe
		}
	}
	return defaultExe
}

// Version runs the binary with its version switch and returns the first
// line of output.
func (d *driver) Version(ctx context.Context, m *schema.Manifest) (string, error) {
	out, err := exec.CommandContext(ctx, d.exe(m), "-version").Output()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeToolVersion, err, "version check failed for %s", d.exe(m))
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

// Run executes one step: write the script, launch the binary in batch mode
// with output teed to a log file, then post-process the log.
func (d *driver) Run(ctx context.Context, info *tools.RunInfo, script string) (*tools.Result, error) {
	scriptPath := filepath.Join(info.WorkDir, info.Task+".tcl")
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "writing %s", scriptPath)
	}

	exe := d.exe(info.Manifest)
	logPath := filepath.Join(info.WorkDir, filepath.Base(exe)+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating %s", logPath)
	}
	defer logFile.Close()

	args := []string{"-no_init", "-exit", scriptPath}
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = info.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	info.Logger.Debug("launching tool", "exe", exe, "args", strings.Join(args, " "))
	observability.Tool().OnToolExec(ctx, toolName, info.Step, args)

	start := time.Now()
	runErr := cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	observability.Tool().OnToolExit(ctx, toolName, info.Step, exitCode, time.Since(start))

	if runErr != nil {
		return nil, errors.Wrap(errors.ErrCodeToolFailed, runErr,
			"%s exited with an error, see %s", exe, logPath)
	}

	result := &tools.Result{LogFile: logPath}
	if err := d.postProcess(result, info); err != nil {
		return nil, err
	}
	return result, nil
}

// postProcess scans the log for errors and collects outputs/ contents.
// OpenROAD exits zero on some script-level failures, so a clean exit code
// alone is not trusted.
func (d *driver) postProcess(result *tools.Result, info *tools.RunInfo) error {
	errorCount, warningCount, err := scanLog(result.LogFile)
	if err != nil {
		return err
	}
	result.Metrics = map[string]float64{
		"errors":   float64(errorCount),
		"warnings": float64(warningCount),
	}

	if errorCount > 0 {
		return errors.New(errors.ErrCodeToolFailed,
			"%d errors reported in %s", errorCount, result.LogFile)
	}

	outputs, err := collectOutputs(info.WorkDir)
	if err != nil {
		return err
	}
	result.Outputs = outputs
	return nil
}

// scanLog counts error and warning lines in an OpenROAD log.
func scanLog(path string) (errorCount, warningCount int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeInternal, err, "reading log %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "[ERROR"), strings.HasPrefix(line, "Error:"):
			errorCount++
		case strings.HasPrefix(line, "[WARNING"), strings.HasPrefix(line, "Warning:"):
			warningCount++
		}
	}
	return errorCount, warningCount, scanner.Err()
}

// collectOutputs lists the files under outputs/, relative to the work dir.
func collectOutputs(workDir string) ([]string, error) {
	outDir := filepath.Join(workDir, "outputs")
	entries, err := os.ReadDir(outDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "listing %s", outDir)
	}

	var outputs []string
	for _, e := range entries {
		if !e.IsDir() {
			outputs = append(outputs, filepath.Join("outputs", e.Name()))
		}
	}
	sort.Strings(outputs)
	return outputs, nil
}
