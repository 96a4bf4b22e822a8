package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/restbench/packages/assertions"
	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/abdul-hamid-achik/restbench/packages/http"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate collection files without executing them",
	Long: `Validate YAML collections without sending any request. Every item must
resolve, and every check must name a known assertion.

Examples:
  restbench validate api.yaml
  restbench validate ./collections/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml or .yml collection files found"))
	}

	hasErrors := false
	for _, file := range files {
		if err := validateFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s:\n%v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}

func validateFile(path string) error {
	tree, err := collection.LoadFile(path)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range tree.Items() {
		eff, err := inherit.ResolveInTree(tree, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("  %s: %w", tree.Path(id), err))
			continue
		}
		// URLs with templates are only checked once interpolated.
		if !hasTemplate(eff.URL) {
			if err := http.ValidateURL(eff.URL); err != nil {
				errs = append(errs, fmt.Errorf("  %s: %w", tree.Path(id), err))
			}
		}
		for _, c := range eff.Checks {
			if !assertions.Known(c.Assert) {
				errs = append(errs, fmt.Errorf("  %s: unknown assertion %q", tree.Path(id), c.Assert))
			}
		}
	}
	return errors.Join(errs...)
}

func hasTemplate(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && s[i+1] == '{' {
			return true
		}
	}
	return false
}
