package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/snapshot"
)

var flagWatchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan the corpus whenever its markdown files change",
	Long: `Watch the corpus root and rebuild the snapshot after agent, skill or
reference files change. Bursts of changes are coalesced into one rescan.
Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", 300*time.Millisecond, "Quiet period before a rescan")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, rep, err := scanCorpus(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()

	printSection("skillctx watch")
	fmt.Println()
	printInfo("", fmt.Sprintf("watching %s", mgr.Root()))
	printReport(rep)

	w, err := snapshot.NewWatcher(mgr, flagWatchDebounce, func(rep *snapshot.Report, err error) {
		if err != nil {
			printErr("", fmt.Sprintf("rescan failed: %v", err))
			return
		}
		printReport(rep)
	})
	if err != nil {
		return fmt.Errorf("cannot start file watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("cannot watch %s: %w", mgr.Root(), err)
	}
	defer w.Stop()

	<-ctx.Done()
	if ctx.Err() == context.Canceled {
		fmt.Println()
		printInfo("", "stopped")
	}
	return nil
}

func printReport(rep *snapshot.Report) {
	switch {
	case rep.TimedOut:
		printWarn("", fmt.Sprintf("rescan took longer than %s, keeping snapshot %d", cfg.RescanTimeout, rep.Version))
	case !rep.Changed:
		printInfo("", fmt.Sprintf("no changes (snapshot %d)", rep.Version))
	default:
		printOK("", fmt.Sprintf("snapshot %d: %d file(s), %d parsed, %d added, %d removed in %s",
			rep.Version, rep.Files, rep.Parsed, rep.Added, rep.Removed, rep.Duration.Round(time.Millisecond)))
		for _, c := range rep.Conflicts {
			printWarn(c.ID, fmt.Sprintf("duplicate id, using %s over %s", c.Winner, c.Loser))
		}
		for _, p := range rep.Problems {
			printWarn(p.Path, p.Message)
		}
	}
}
