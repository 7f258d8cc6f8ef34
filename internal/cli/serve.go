package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/history"
	"github.com/rcxbench/rcxbench/pkg/report"
	"github.com/rcxbench/rcxbench/pkg/schema"
)

// serveCommand creates the serve command for the report HTTP server.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		buildDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run reports over HTTP",
		Long: `Serve the build directory as a small report site: a run index,
per-run step details, tool logs and raw output files.

When RCXBENCH_MONGO_URI is set, /api/history additionally serves run
records from the history store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var store *history.Store
			if uri := os.Getenv(history.EnvMongoURI); uri != "" {
				s, err := history.Connect(cmd.Context(), uri, c.Logger)
				if err != nil {
					c.Logger.Warn("run history unavailable", "err", err)
				} else {
					store = s
					defer store.Close(cmd.Context())
				}
			}

			printInfo("Serving %s on http://%s", buildDir, addr)
			return report.NewServer(buildDir, store, c.Logger).ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "listen address")
	cmd.Flags().StringVar(&buildDir, "build", schema.DefaultBuildDir, "build directory")

	return cmd
}
