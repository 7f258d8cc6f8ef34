package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/report"
	"github.com/rcxbench/rcxbench/pkg/schema"
)

// runsCommand creates the runs command for inspecting finished runs.
func (c *CLI) runsCommand() *cobra.Command {
	var buildDir string

	cmd := &cobra.Command{
		Use:   "runs [design] [job]",
		Short: "List finished runs or inspect one",
		Long: `List the runs found in the build directory, or show the step
details of a single run.

Examples:
  rcxbench runs                 # list all runs
  rcxbench runs gcd job0        # step details of one run`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch len(args) {
			case 0:
				return listRuns(buildDir)
			case 2:
				return printRun(buildDir, args[0], args[1])
			default:
				return fmt.Errorf("expected no arguments or <design> <job>")
			}
		},
	}

	cmd.Flags().StringVar(&buildDir, "build", schema.DefaultBuildDir, "build directory")
	return cmd
}

func listRuns(buildDir string) error {
	runs, err := report.Index(buildDir)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		printInfo("No runs in %s", buildDir)
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{r.Design, r.Job, r.ModTime.Format("2006-01-02 15:04:05"), r.Path})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Design", "Job", "Modified", "Path").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			if col == 3 {
				return StyleDim
			}
			return StyleValue
		})
	fmt.Println(t)
	printNextStep("Inspect a run", "rcxbench runs <design> <job>")
	return nil
}

func printRun(buildDir, design, job string) error {
	run, err := report.Load(buildDir, design, job)
	if err != nil {
		return err
	}

	printKeyValue("Design", run.Design)
	printKeyValue("Job", run.Job)
	printKeyValue("Path", run.Path)
	printNewline()

	rows := make([][]string, 0, len(run.Steps))
	for _, s := range run.Steps {
		log := "-"
		if s.HasLog {
			log = iconSuccess
		}
		rows = append(rows, []string{
			s.Name,
			strings.Join(s.Outputs, ", "),
			fmt.Sprintf("%d", len(s.Reports)),
			log,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Step", "Outputs", "Reports", "Log").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			return StyleValue
		})
	fmt.Println(t)
	return nil
}
