package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/schema"
)

// showCommand creates the show command for querying configuration values.
func (c *CLI) showCommand() *cobra.Command {
	var cfg string

	cmd := &cobra.Command{
		Use:   "show [keypath...]",
		Short: "Print a configuration value by key path",
		Long: `Print the values stored at a key path of a manifest. The path is
given either dotted or as separate arguments; without a path, every key
is listed. Step output manifests (<design>.pkg.json) work too.

Examples:
  rcxbench show --cfg gcd.toml tool openroad task rcx_bench var bench_length
  rcxbench show --cfg gcd.toml tech.lef
  rcxbench show --cfg build/gcd/job0/bench0/outputs/gcd.pkg.json arg.step
  rcxbench show --cfg gcd.toml                # list all keys`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(cfg)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				for _, k := range m.Keys("") {
					fmt.Println(k)
				}
				return nil
			}
			vals, err := m.Get(joinKeyPath(args))
			if err != nil {
				return err
			}
			for _, v := range vals {
				fmt.Println(v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg, "cfg", "", "manifest file (TOML or pkg.json)")
	_ = cmd.MarkFlagRequired("cfg")
	return cmd
}

// joinKeyPath accepts both `tool openroad task rcx_bench var bench_length`
// and the dotted form as a single argument.
func joinKeyPath(args []string) string {
	return strings.Join(args, ".")
}

// loadManifest reads a TOML manifest, or a JSON output manifest when the
// file carries a .json extension.
func loadManifest(path string) (*schema.Manifest, error) {
	if filepath.Ext(path) != ".json" {
		return schema.Load(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot read manifest %s", path)
	}
	defer f.Close()
	return schema.ReadJSON(f)
}
