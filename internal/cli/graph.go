package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/flow"
	"github.com/rcxbench/rcxbench/pkg/schema"
)

// graphCommand creates the graph command for rendering the flowgraph.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		cfg      string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the flowgraph of a manifest",
		Long: `Render the flowgraph described by a manifest as DOT, SVG or PNG.
The output format follows the file extension of --output; with no --output
the DOT source goes to stdout.

Examples:
  rcxbench graph --cfg gcd.toml                  # DOT on stdout
  rcxbench graph --cfg gcd.toml -o flow.svg      # rendered SVG`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := schema.Load(cfg)
			if err != nil {
				return err
			}
			g, err := flow.FromManifest(m)
			if err != nil {
				return err
			}
			dot, err := flow.ToDOT(g, flow.DOTOptions{Detailed: detailed})
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Print(dot)
				return nil
			}

			format, err := flow.FormatForPath(output)
			if err != nil {
				return err
			}
			var data []byte
			switch format {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = flow.RenderSVG(dot)
			case "png":
				data, err = flow.RenderPNG(dot)
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSuccess("Flowgraph written")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg, "cfg", "", "manifest file (TOML)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.dot, .svg or .png)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include tool/task in node labels")
	_ = cmd.MarkFlagRequired("cfg")

	return cmd
}
