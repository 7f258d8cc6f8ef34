package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/rcxbench/rcxbench/pkg/cache"
	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/observability"
	"github.com/rcxbench/rcxbench/pkg/schema"
	"github.com/rcxbench/rcxbench/pkg/tech"
	"github.com/rcxbench/rcxbench/pkg/tools"
)

// Options configures a single Execute call.
type Options struct {
	// Manifest holds the full configuration for the run.
	Manifest *schema.Manifest

	// ManifestPath is the file the manifest was loaded from, recorded in
	// each step's run.sh so a step can be replayed by hand. Optional.
	ManifestPath string

	// Tech is the technology database handed to every driver.
	Tech *tech.Database

	// Graph is the flowgraph to execute. When nil it is built from the
	// manifest's flowgraph section.
	Graph *Graph

	// Steps restricts execution to the named steps. Empty means all steps.
	// Restricted runs still execute in topological order and expect their
	// input steps to have outputs from an earlier run.
	Steps []string

	// Refresh skips cache lookups and forces every step to execute.
	Refresh bool

	// Logger overrides the runner's logger for this call.
	Logger *log.Logger
}

// ValidateAndSetDefaults checks options and fills in the flowgraph.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Manifest == nil {
		return errors.New(errors.ErrCodeInvalidInput, "manifest is required")
	}
	if o.Tech == nil {
		return errors.New(errors.ErrCodeInvalidInput, "technology database is required")
	}
	if o.Graph == nil {
		g, err := FromManifest(o.Manifest)
		if err != nil {
			return err
		}
		o.Graph = g
	}
	for _, name := range o.Steps {
		if _, err := o.Graph.Step(name); err != nil {
			return err
		}
	}
	return nil
}

// StepResult describes one executed (or replayed) step.
type StepResult struct {
	Step     string             `json:"step"`
	Tool     string             `json:"tool"`
	Task     string             `json:"task"`
	Cached   bool               `json:"cached"`
	Duration time.Duration      `json:"duration"`
	Metrics  map[string]float64 `json:"metrics"`
	Outputs  []string           `json:"outputs"`
	WorkDir  string             `json:"workdir"`
	LogFile  string             `json:"logfile,omitempty"`
}

// Result is the outcome of a full run.
type Result struct {
	RunID    string        `json:"run_id"`
	Design   string        `json:"design"`
	JobDir   string        `json:"jobdir"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Runner executes flowgraphs with step-level caching.
//
// The Runner is stateless except for the cache and logger - it doesn't store
// run results. Multiple goroutines can safely use the same Runner with
// different options, as long as their build directories differ.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// Execute runs the flowgraph. Every step gets its own directory under
// <build_dir>/<design>/<job>/<step>0/ with inputs/, outputs/ and reports/
// subdirectories; outputs of input steps are staged into inputs/ before the
// tool launches.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = r.Logger
	}

	m := opts.Manifest
	order, err := r.selectSteps(opts)
	if err != nil {
		return nil, err
	}

	jobDir, err := filepath.Abs(filepath.Join(m.BuildDir(), m.Design(), m.JobName()))
	if err != nil {
		return nil, fmt.Errorf("resolve job directory: %w", err)
	}

	result := &Result{
		RunID:  uuid.NewString(),
		Design: m.Design(),
		JobDir: jobDir,
	}

	start := time.Now()
	observability.Flow().OnRunStart(ctx, result.RunID, result.Design, order)
	logger.Info("starting run",
		"run_id", result.RunID,
		"design", result.Design,
		"steps", len(order))

	var runErr error
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		sr, err := r.runStep(ctx, logger, opts, jobDir, name)
		if err != nil {
			runErr = fmt.Errorf("step %s: %w", name, err)
			break
		}
		result.Steps = append(result.Steps, *sr)
	}

	result.Duration = time.Since(start)
	observability.Flow().OnRunComplete(ctx, result.RunID, result.Design, result.Duration, runErr)
	if runErr != nil {
		return result, runErr
	}

	logger.Info("run complete",
		"run_id", result.RunID,
		"duration", result.Duration)
	return result, nil
}

// selectSteps returns the steps to run in topological order.
func (r *Runner) selectSteps(opts Options) ([]string, error) {
	order, err := opts.Graph.Steps()
	if err != nil {
		return nil, err
	}
	if len(opts.Steps) == 0 {
		return order, nil
	}
	wanted := make(map[string]bool, len(opts.Steps))
	for _, name := range opts.Steps {
		wanted[name] = true
	}
	var filtered []string
	for _, name := range order {
		if wanted[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

// cachedStep is the serialized form of a step result in the cache. Output
// files and the tool log travel with it so a hit can rebuild the step
// directory without running the tool.
type cachedStep struct {
	Metrics map[string]float64 `json:"metrics"`
	Outputs []string           `json:"outputs"`
	LogName string             `json:"logname,omitempty"`
	Files   map[string][]byte  `json:"files"`
}

func (r *Runner) runStep(ctx context.Context, logger *log.Logger, opts Options, jobDir, name string) (*StepResult, error) {
	step, err := opts.Graph.Step(name)
	if err != nil {
		return nil, err
	}
	driver, err := tools.Lookup(step.Tool)
	if err != nil {
		return nil, err
	}

	stepDir := filepath.Join(jobDir, name+"0")
	if err := prepareStepDir(stepDir); err != nil {
		return nil, err
	}
	if err := r.stageInputs(opts.Graph, jobDir, stepDir, step); err != nil {
		return nil, err
	}

	info := &tools.RunInfo{
		Design:   opts.Manifest.Design(),
		Step:     name,
		Task:     step.Task,
		Index:    "0",
		WorkDir:  stepDir,
		Manifest: opts.Manifest,
		Tech:     opts.Tech,
		Logger:   logger,
	}

	script, err := driver.Script(info)
	if err != nil {
		return nil, err
	}
	toolVersion, err := driver.Version(ctx, opts.Manifest)
	if err != nil {
		return nil, err
	}

	inputHashes, err := hashInputs(stepDir)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.StepKey(info.Design, name, cache.StepKeyOpts{
		Tool:        step.Tool,
		Task:        step.Task,
		ScriptHash:  cache.Hash([]byte(script)),
		InputHashes: inputHashes,
		ToolVersion: toolVersion,
	})

	observability.Flow().OnStepStart(ctx, info.Design, name)
	start := time.Now()

	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err == nil && !hit {
			observability.Cache().OnCacheMiss(ctx, key)
		}
		if err == nil && hit {
			observability.Cache().OnCacheHit(ctx, key)
			sr, err := replayStep(data, stepDir)
			if err == nil {
				if err := writeRunScript(opts.ManifestPath, stepDir, name); err != nil {
					return nil, err
				}
				sr.Step = name
				sr.Tool = step.Tool
				sr.Task = step.Task
				sr.Duration = time.Since(start)
				observability.Flow().OnStepComplete(ctx, info.Design, name, true, sr.Duration, nil)
				logger.Info("step replayed from cache",
					"step", name,
					"outputs", len(sr.Outputs))
				return sr, nil
			}
			// Corrupt entry: fall through and execute.
			logger.Warn("ignoring unreadable cache entry", "step", name, "err", err)
		}
	}

	res, err := driver.Run(ctx, info, script)
	if err != nil {
		observability.Flow().OnStepComplete(ctx, info.Design, name, false, time.Since(start), err)
		return nil, err
	}

	if err := r.writeProvenance(opts, info, name); err != nil {
		return nil, err
	}
	// Re-collect outputs so the provenance manifest is part of the result.
	outputs, err := listOutputs(stepDir)
	if err != nil {
		return nil, err
	}

	sr := &StepResult{
		Step:     name,
		Tool:     step.Tool,
		Task:     step.Task,
		Duration: time.Since(start),
		Metrics:  res.Metrics,
		Outputs:  outputs,
		WorkDir:  stepDir,
		LogFile:  res.LogFile,
	}

	if data, err := packStep(sr, stepDir); err == nil {
		if r.Cache.Set(ctx, key, data, cache.DefaultTTL) == nil {
			observability.Cache().OnCacheWrite(ctx, key, len(data))
		}
	}

	observability.Flow().OnStepComplete(ctx, info.Design, name, false, sr.Duration, nil)
	logger.Info("step complete",
		"step", name,
		"duration", sr.Duration,
		"outputs", len(sr.Outputs))
	return sr, nil
}

// writeProvenance records how the step was produced: the output manifest
// (<design>.pkg.json in outputs/) and a run.sh replay script.
func (r *Runner) writeProvenance(opts Options, info *tools.RunInfo, step string) error {
	m := opts.Manifest
	m.Set("arg.step", step)
	m.Set("arg.index", info.Index)
	manifestPath := filepath.Join(info.WorkDir, "outputs", info.Design+".pkg.json")
	f, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("write output manifest: %w", err)
	}
	if err := m.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write output manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write output manifest: %w", err)
	}

	return writeRunScript(opts.ManifestPath, info.WorkDir, step)
}

// writeRunScript drops a run.sh into the step directory for by-hand replay.
// Cache hits rebuild the step directory from scratch, so the script is
// written on both the execute and the replay path.
func writeRunScript(manifestPath, stepDir, step string) error {
	if manifestPath == "" {
		return nil
	}
	cfg, err := filepath.Abs(manifestPath)
	if err != nil {
		cfg = manifestPath
	}
	script := fmt.Sprintf("#!/bin/sh\n# Replay this step from scratch.\nexec rcxbench run --cfg %q --step %s --refresh\n", cfg, step)
	return os.WriteFile(filepath.Join(stepDir, "run.sh"), []byte(script), 0o755)
}

// prepareStepDir creates a fresh step directory with the standard layout.
func prepareStepDir(stepDir string) error {
	if err := os.RemoveAll(stepDir); err != nil {
		return fmt.Errorf("clean step directory: %w", err)
	}
	for _, sub := range []string{"inputs", "outputs", "reports"} {
		if err := os.MkdirAll(filepath.Join(stepDir, sub), 0o755); err != nil {
			return fmt.Errorf("create step directory: %w", err)
		}
	}
	return nil
}

// stageInputs copies every input step's outputs into this step's inputs/.
func (r *Runner) stageInputs(g *Graph, jobDir, stepDir string, step *Step) error {
	for _, in := range step.Inputs {
		srcDir := filepath.Join(jobDir, in+"0", "outputs")
		if _, err := os.Stat(srcDir); err != nil {
			return errors.New(errors.ErrCodeStepNotFound,
				"input step %s has no outputs (run it first)", in)
		}
		err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			dst := filepath.Join(stepDir, "inputs", rel)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			return copyFile(path, dst)
		})
		if err != nil {
			return fmt.Errorf("stage inputs from %s: %w", in, err)
		}
	}
	return nil
}

// hashInputs hashes every file under inputs/ in path order.
func hashInputs(stepDir string) ([]string, error) {
	inputsDir := filepath.Join(stepDir, "inputs")
	var files []string
	err := filepath.WalkDir(inputsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan inputs: %w", err)
	}
	sort.Strings(files)

	hashes := make([]string, 0, len(files))
	for _, f := range files {
		h, err := cache.HashFile(f)
		if err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(inputsDir, f)
		hashes = append(hashes, filepath.ToSlash(rel)+":"+h)
	}
	return hashes, nil
}

// listOutputs returns the relative paths of every file under outputs/.
func listOutputs(stepDir string) ([]string, error) {
	outDir := filepath.Join(stepDir, "outputs")
	var outputs []string
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		outputs = append(outputs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan outputs: %w", err)
	}
	sort.Strings(outputs)
	return outputs, nil
}

// packStep serializes a finished step, including its output files and tool
// log, for the cache.
func packStep(sr *StepResult, stepDir string) ([]byte, error) {
	entry := cachedStep{
		Metrics: sr.Metrics,
		Outputs: sr.Outputs,
		Files:   make(map[string][]byte),
	}
	for _, rel := range sr.Outputs {
		data, err := os.ReadFile(filepath.Join(stepDir, "outputs", filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		entry.Files["outputs/"+rel] = data
	}
	if sr.LogFile != "" {
		if data, err := os.ReadFile(sr.LogFile); err == nil {
			entry.LogName = filepath.Base(sr.LogFile)
			entry.Files[entry.LogName] = data
		}
	}
	return json.Marshal(entry)
}

// replayStep rebuilds a step directory from a cache entry.
func replayStep(data []byte, stepDir string) (*StepResult, error) {
	var entry cachedStep
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	for rel, content := range entry.Files {
		// Cache backends can be shared (Redis), so entries are not
		// trusted to stay inside the step directory.
		if err := errors.ValidatePath(rel); err != nil {
			return nil, fmt.Errorf("cache entry file %q: %w", rel, err)
		}
		dst := filepath.Join(stepDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return nil, err
		}
	}
	sr := &StepResult{
		Cached:  true,
		Metrics: entry.Metrics,
		Outputs: entry.Outputs,
		WorkDir: stepDir,
	}
	if entry.LogName != "" {
		sr.LogFile = filepath.Join(stepDir, entry.LogName)
	}
	return sr, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
