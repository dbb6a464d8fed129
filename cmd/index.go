package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagIndexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the corpus and report what was indexed",
	Long: `Scan the corpus root, index every agent and skill manifest and report
parsed and reused files, duplicate ids and files that were skipped.

The parsed manifests are cached (~/.skillctx/cache by default) so later
commands only re-parse files whose content changed.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagIndexJSON, "json", false, "Print the scan report as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	mgr, rep, err := scanCorpus(cmd.Context())
	if err != nil {
		return err
	}
	defer mgr.Close()

	if flagIndexJSON {
		return writeJSON(cmd.OutOrStdout(), rep)
	}

	snap, err := mgr.Acquire()
	if err != nil {
		return err
	}
	defer snap.Release()

	printSection("skillctx index")
	fmt.Println()
	printInfo("", fmt.Sprintf("corpus: %s", mgr.Root()))
	printOK("", fmt.Sprintf("%d manifest file(s): %d parsed, %d reused from cache", rep.Files, rep.Parsed, rep.Reused))
	printOK("", fmt.Sprintf("%d manifest(s) indexed under %d term(s)", snap.Index().Len(), snap.Index().Terms()))
	printOK("", fmt.Sprintf("%d reference(s) declared, %d distinct file(s) present", snap.Arena().Len(), len(snap.Arena().Hashes())))
	for _, c := range rep.Conflicts {
		printWarn(c.ID, fmt.Sprintf("duplicate id, using %s over %s", c.Winner, c.Loser))
	}
	for _, p := range rep.Problems {
		printWarn(p.Path, p.Message)
	}
	fmt.Printf("\n  Snapshot %d built in %s at %s (scan %s)\n", snap.Version(), rep.Duration.Round(time.Microsecond),
		snap.CreatedAt().Format(time.RFC3339), snap.ScanID())
	return nil
}
