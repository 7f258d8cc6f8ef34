// Package report reads finished runs back out of the build directory tree
// and serves them over HTTP.
package report

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rcxbench/rcxbench/pkg/errors"
)

// StepInfo describes one step directory of a run.
type StepInfo struct {
	Name    string   `json:"name"`
	Outputs []string `json:"outputs"`
	Reports []string `json:"reports"`
	HasLog  bool     `json:"has_log"`
}

// Run describes one <design>/<job> directory in the build tree.
type Run struct {
	Design   string     `json:"design"`
	Job      string     `json:"job"`
	Path     string     `json:"path"`
	ModTime  time.Time  `json:"mtime"`
	Steps    []StepInfo `json:"steps,omitempty"`
}

// Index scans a build directory and returns every run found, newest first.
// Step details are not populated; use [Load] for a single run.
func Index(buildDir string) ([]Run, error) {
	designs, err := os.ReadDir(buildDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan build directory")
	}

	var runs []Run
	for _, d := range designs {
		if !d.IsDir() {
			continue
		}
		jobs, err := os.ReadDir(filepath.Join(buildDir, d.Name()))
		if err != nil {
			continue
		}
		for _, j := range jobs {
			if !j.IsDir() {
				continue
			}
			path := filepath.Join(buildDir, d.Name(), j.Name())
			info, err := j.Info()
			if err != nil {
				continue
			}
			runs = append(runs, Run{
				Design:  d.Name(),
				Job:     j.Name(),
				Path:    path,
				ModTime: info.ModTime(),
			})
		}
	}

	sort.Slice(runs, func(i, k int) bool {
		if !runs[i].ModTime.Equal(runs[k].ModTime) {
			return runs[i].ModTime.After(runs[k].ModTime)
		}
		if runs[i].Design != runs[k].Design {
			return runs[i].Design < runs[k].Design
		}
		return runs[i].Job < runs[k].Job
	})
	return runs, nil
}

// Load returns one run with its step details filled in.
func Load(buildDir, design, job string) (*Run, error) {
	if err := errors.ValidateDesignName(design); err != nil {
		return nil, err
	}
	if strings.ContainsAny(job, `/\`) || job == ".." {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid job name %q", job)
	}

	path := filepath.Join(buildDir, design, job)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeRunNotFound, "no run %s/%s", design, job)
	}

	run := &Run{
		Design:  design,
		Job:     job,
		Path:    path,
		ModTime: info.ModTime(),
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan run directory")
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run.Steps = append(run.Steps, loadStep(path, e.Name()))
	}
	sort.Slice(run.Steps, func(i, k int) bool {
		return run.Steps[i].Name < run.Steps[k].Name
	})
	return run, nil
}

// loadStep reads one step directory. dir is the step directory name
// including the trailing index digits.
func loadStep(runPath, dir string) StepInfo {
	step := StepInfo{Name: strings.TrimRight(dir, "0123456789")}
	step.Outputs = listFiles(filepath.Join(runPath, dir, "outputs"))
	step.Reports = listFiles(filepath.Join(runPath, dir, "reports"))
	step.HasLog = logFile(runPath, dir) != ""
	return step
}

// logFile returns the path of the step's tool log, or "" if none exists.
// The log is the first *.log file directly inside the step directory.
func logFile(runPath, dir string) string {
	entries, err := os.ReadDir(filepath.Join(runPath, dir))
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(runPath, dir, names[0])
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
