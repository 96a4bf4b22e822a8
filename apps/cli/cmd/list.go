package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List the requests of a collection",
	Long: `List every request defined in YAML collections, with the auth and
header count each one ends up with after inheritance.

Examples:
  restbench list api.yaml
  restbench list ./collections/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .yaml or .yml collection files found")
	}

	for _, file := range files {
		tree, err := collection.LoadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", tree.Name, file)
		for _, id := range tree.Items() {
			eff, err := inherit.ResolveInTree(tree, id)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %v\n", tree.Path(id), err)
				continue
			}
			depth := max(strings.Count(tree.Path(id), " / ")-1, 0)
			indent := strings.Repeat("  ", depth)
			fmt.Fprintf(cmd.OutOrStdout(), "  %s- %s %s %s\n", indent, eff.Name, eff.Method, eff.URL)
			if eff.Auth.IsExplicit() || len(eff.Headers) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s    auth: %s, headers: %d\n", indent, eff.Auth.Type, len(eff.Headers))
			}
		}
	}

	return nil
}
