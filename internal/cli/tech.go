package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/tech"
)

// techCommand creates the tech command for inspecting technology files.
func (c *CLI) techCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tech",
		Short: "Inspect technology LEF files",
	}

	cmd.AddCommand(c.techLayersCommand())
	cmd.AddCommand(c.techResolveCommand())

	return cmd
}

// techLayersCommand creates the "tech layers" subcommand.
func (c *CLI) techLayersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layers <file.lef>",
		Short: "List the layers of a technology LEF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := tech.LoadLEF(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(db.Layers()))
			level := 0
			for _, l := range db.Layers() {
				lvl := "-"
				if l.Type == tech.TypeRouting {
					level++
					lvl = fmt.Sprintf("%d", level)
				}
				rows = append(rows, []string{
					l.Name,
					string(l.Type),
					lvl,
					l.Direction,
					formatMicron(l.Pitch),
					formatMicron(l.Width),
				})
			}

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
				Headers("Layer", "Type", "Level", "Direction", "Pitch", "Width").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == -1 {
						return styleTableHeader
					}
					if col == 0 {
						return StyleHighlight
					}
					return StyleValue
				})
			fmt.Println(t)
			printDetail("%s: %d routing layers", db.Name(), db.NumRoutingLevels())
			return nil
		},
	}
}

// techResolveCommand creates the "tech resolve" subcommand. It prints the
// routing level a layer name maps to, the same lookup the bench task uses
// for its max_layer variable.
func (c *CLI) techResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <file.lef> <layer>",
		Short: "Resolve a layer name to its routing level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := tech.LoadLEF(args[0])
			if err != nil {
				return err
			}
			level, err := db.RoutingLevel(args[1])
			if err != nil {
				return err
			}
			fmt.Println(level)

			// Echo the canonical layer in case the query used a
			// different casing.
			if layer, err := db.LayerAt(level); err == nil {
				printDetail("%s: level %d of %d", layer.Name, level, db.NumRoutingLevels())
			}
			return nil
		},
	}
}

func formatMicron(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}
