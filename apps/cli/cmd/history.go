package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `List, show and prune runs recorded with 'restbench run --history'.

The database is taken from --db, RESTBENCH_HISTORY or the historyDB field
of the config file.

Examples:
  restbench history list
  restbench history show 3f2a9c4e-...
  restbench history prune --keep 50`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	Args:  cobra.NoArgs,
	RunE:  historyListCommand,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its request results",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShowCommand,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  historyPruneCommand,
}

var (
	historyDBFlag     string
	historyConfigFlag string
	historyLimitFlag  int
	historyKeepFlag   int
)

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBFlag, "db", getEnvString("RESTBENCH_HISTORY", ""), "History database path (env: RESTBENCH_HISTORY)")
	historyCmd.PersistentFlags().StringVar(&historyConfigFlag, "config", getEnvString("RESTBENCH_CONFIG", ""), "Path to config file (env: RESTBENCH_CONFIG)")
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 20, "Number of runs to show")
	historyPruneCmd.Flags().IntVar(&historyKeepFlag, "keep", 100, "Number of runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func openHistory() (*history.Store, error) {
	dsn := historyDBFlag
	if dsn == "" {
		cfg, err := loadConfig(historyConfigFlag, nil)
		if err != nil {
			return nil, err
		}
		dsn = cfg.HistoryDB
	}
	if dsn == "" {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("no history database configured (use --db or set historyDB in the config)"))
	}
	store, err := history.Open(dsn)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return store, nil
}

func historyListCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	writeRuns(cmd.OutOrStdout(), runs)
	return nil
}

func writeRuns(w io.Writer, runs []history.RunRecord) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tCOLLECTION\tENV\tRESULT\tDURATION")
	for _, r := range runs {
		result := green(fmt.Sprintf("%d passed", r.Passed))
		if !r.OK() {
			result = red(fmt.Sprintf("%d failed", r.Failed)) + fmt.Sprintf(", %d passed", r.Passed)
		}
		if r.Skipped > 0 {
			result += fmt.Sprintf(", %d skipped", r.Skipped)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			r.Collection,
			r.Environment,
			result,
			r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := resolveRunID(cmd, store, args[0])
	if err != nil {
		return err
	}
	run, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", bold("Run"), run.ID)
	fmt.Fprintf(out, "Collection:  %s\n", run.Collection)
	if run.Environment != "" {
		fmt.Fprintf(out, "Environment: %s\n", run.Environment)
	}
	fmt.Fprintf(out, "Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration:    %s\n\n", run.Duration.Round(time.Millisecond))

	for _, r := range run.Results {
		name := r.Path
		if name == "" {
			name = r.Name
		}
		switch {
		case r.Skipped:
			fmt.Fprintf(out, "  %s %s (%s)\n", yellow("-"), name, r.SkipReason)
		case r.Error != "":
			fmt.Fprintf(out, "  %s %s %s\n", red("x"), name, red("("+r.Error+")"))
		case r.Passed:
			fmt.Fprintf(out, "  %s %s %d (%dms)\n", green("✓"), name, r.Status, r.Duration.Milliseconds())
		default:
			fmt.Fprintf(out, "  %s %s %d (%dms)\n", red("✗"), name, r.Status, r.Duration.Milliseconds())
		}
		if r.Failures != "" {
			for _, line := range strings.Split(r.Failures, "\n") {
				fmt.Fprintf(out, "    %s %s\n", red("→"), line)
			}
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d failed, %d skipped\n", run.Passed, run.Failed, run.Skipped)
	return nil
}

// resolveRunID expands a short id prefix, as printed by list, against the
// recent runs.
func resolveRunID(cmd *cobra.Command, store *history.Store, prefix string) (string, error) {
	if len(prefix) >= 36 {
		return prefix, nil
	}
	runs, err := store.Recent(cmd.Context(), 1000)
	if err != nil {
		return "", err
	}
	var match string
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("run id %q is ambiguous", prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return prefix, nil
	}
	return match, nil
}

func historyPruneCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Prune(cmd.Context(), historyKeepFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s), kept the newest %d.\n", removed, historyKeepFlag)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
