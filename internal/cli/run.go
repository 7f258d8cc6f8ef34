package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/cache"
	"github.com/rcxbench/rcxbench/pkg/flow"
	"github.com/rcxbench/rcxbench/pkg/history"
	"github.com/rcxbench/rcxbench/pkg/schema"
	"github.com/rcxbench/rcxbench/pkg/tech"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	cfg         string   // manifest file path
	steps       []string // restrict to these steps
	refresh     bool     // bypass the step cache
	noCache     bool     // disable the step cache entirely
	interactive bool     // pick steps with the TUI
	jobName     string   // override option.jobname
	jobID       string   // override option.jobid
}

// runCommand creates the run command, the main entry point of the tool.
func (c *CLI) runCommand() *cobra.Command {
	opts := runOpts{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bench generation flow",
		Long: `Run the flowgraph described by a manifest file.

Each step executes in its own directory under <build_dir>/<design>/<job>/,
with inputs staged from its predecessors and results cached by content.

Examples:
  rcxbench run --cfg gcd.toml                 # full flow
  rcxbench run --cfg gcd.toml --step bench    # one step
  rcxbench run --cfg gcd.toml --refresh       # ignore cached results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFlow(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.cfg, "cfg", "", "manifest file (TOML)")
	cmd.Flags().StringArrayVar(&opts.steps, "step", nil, "run only this step (repeatable)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the step cache")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the step cache")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick steps interactively")
	cmd.Flags().StringVar(&opts.jobName, "jobname", "", "override the job name")
	cmd.Flags().StringVar(&opts.jobID, "jobid", "", "override the job id")
	_ = cmd.MarkFlagRequired("cfg")

	return cmd
}

func (c *CLI) runFlow(ctx context.Context, opts runOpts) error {
	m, err := schema.Load(opts.cfg)
	if err != nil {
		return err
	}
	if opts.jobName != "" {
		m.Set(schema.KeyJobName, opts.jobName)
	}
	if opts.jobID != "" {
		m.Set(schema.KeyJobID, opts.jobID)
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	db, err := c.loadTech(ctx, runner, m, opts.cfg)
	if err != nil {
		return err
	}

	graph, err := flow.FromManifest(m)
	if err != nil {
		return err
	}

	steps := opts.steps
	if opts.interactive {
		steps, err = pickSteps(graph)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			printInfo("No steps selected")
			return nil
		}
	}

	prog := newProgress(c.Logger)
	spinner := newSpinner("Running " + m.Design() + " flow...")
	spinner.Start()

	res, err := runner.Execute(ctx, flow.Options{
		Manifest:     m,
		ManifestPath: opts.cfg,
		Tech:         db,
		Graph:        graph,
		Steps:        steps,
		Refresh:      opts.refresh,
		Logger:       c.Logger,
	})
	if err != nil {
		spinner.StopWithError("Run failed")
		return err
	}
	spinner.StopWithSuccess("Run " + res.RunID + " complete")
	prog.done("Bench generated")

	for _, sr := range res.Steps {
		printStepStatus(sr.Step, sr.Cached, sr.Duration.Round(time.Millisecond).String(), len(sr.Outputs))
	}
	printDetail("Job directory: %s", res.JobDir)
	for _, sr := range res.Steps {
		for _, out := range sr.Outputs {
			printFile(filepath.Join(sr.WorkDir, "outputs", out))
		}
	}
	printNewline()
	printNextStep("Inspect runs", "rcxbench runs")

	c.recordHistory(ctx, res)
	return nil
}

// loadTech reads the LEF named by tech.lef, resolved relative to the
// manifest file. Parsed databases are cached by file content, which pays
// off for full PDK technology LEFs.
func (c *CLI) loadTech(ctx context.Context, r *flow.Runner, m *schema.Manifest, cfgPath string) (*tech.Database, error) {
	lef, err := m.GetStr(schema.KeyTechLEF)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(lef) {
		lef = filepath.Join(filepath.Dir(cfgPath), lef)
	}

	var key string
	if hash, err := cache.HashFile(lef); err == nil {
		key = r.Keyer.TechKey(hash)
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			db := &tech.Database{}
			if json.Unmarshal(data, db) == nil {
				c.Logger.Debug("technology from cache", "lef", lef)
				return db, nil
			}
		}
	}

	db, err := tech.LoadLEF(lef)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if data, err := json.Marshal(db); err == nil {
			_ = r.Cache.Set(ctx, key, data, cache.DefaultTTL)
		}
	}
	c.Logger.Debug("loaded technology",
		"lef", lef,
		"routing_layers", db.NumRoutingLevels())
	return db, nil
}

// recordHistory stores the run in MongoDB when RCXBENCH_MONGO_URI is set.
// History is best effort and never fails the run.
func (c *CLI) recordHistory(ctx context.Context, res *flow.Result) {
	uri := os.Getenv(history.EnvMongoURI)
	if uri == "" {
		return
	}
	store, err := history.Connect(ctx, uri, c.Logger)
	if err != nil {
		c.Logger.Warn("run history unavailable", "err", err)
		return
	}
	defer store.Close(ctx)

	if err := store.Insert(ctx, history.FromResult(res)); err != nil {
		c.Logger.Warn("recording run failed", "err", err)
		return
	}
	c.Logger.Debug("run recorded", "run_id", res.RunID)
}
