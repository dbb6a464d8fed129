package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/config"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/logging"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/resolver"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/snapshot"
)

// Exit codes.
const (
	exitInternal     = 1
	exitNoConfidence = 2
)

var (
	flagCorpus   string
	flagLogLevel string
	flagWorkers  int
	flagNoCache  bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "skillctx",
	Short:        "skillctx — resolve the agent and skill context for a task",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `skillctx indexes a corpus of agent and skill markdown files and, for a
task description, returns the best matching specialists together with their
referenced documents, trimmed to a token budget.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("corpus") {
			cfg.CorpusRoot = flagCorpus
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if flags.Changed("workers") {
			cfg.Workers = flagWorkers
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagCorpus, "corpus", "", "Corpus root directory (overrides CORPUS_ROOT and corpus_root)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error or off")
	pf.IntVar(&flagWorkers, "workers", 0, "Concurrent file loads during a scan")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Neither read nor write the persisted manifest cache")
}

// exitError carries a process exit code through cobra. quiet is set when
// the command already reported the error.
type exitError struct {
	code  int
	err   error
	quiet bool
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var ncm *search.NoConfidentMatch
	if errors.As(err, &ncm) {
		return exitNoConfidence
	}
	return exitInternal
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || !ee.quiet {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// newManager builds a snapshot manager for the configured corpus.
func newManager() (*snapshot.Manager, error) {
	opts := snapshot.Options{
		Root:          cfg.CorpusRoot,
		Patterns:      cfg.Patterns,
		Workers:       cfg.Workers,
		RescanTimeout: cfg.RescanTimeout,
		Logger:        logger,
	}
	if !flagNoCache && cfg.CacheDir != "" {
		opts.Store = snapshot.NewStore(cfg.CacheDir)
	}
	return snapshot.NewManager(opts)
}

// scanCorpus builds a manager and publishes its first snapshot.
func scanCorpus(ctx context.Context) (*snapshot.Manager, *snapshot.Report, error) {
	mgr, err := newManager()
	if err != nil {
		return nil, nil, err
	}
	rep, err := mgr.Rescan(ctx)
	if err != nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("cannot scan corpus %s: %w", mgr.Root(), err)
	}
	if rep.TimedOut {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("scanning corpus %s took longer than %s", mgr.Root(), cfg.RescanTimeout)
	}
	return mgr, rep, nil
}

// newEngine scans the corpus and returns an engine over it.
func newEngine(ctx context.Context) (*resolver.Engine, *snapshot.Manager, error) {
	mgr, _, err := scanCorpus(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := search.Options{
		MinConfidence:  cfg.MinConfidence,
		RelativeMargin: cfg.RelativeMargin,
		MaxMatches:     cfg.MaxMatches,
	}
	return resolver.New(mgr, opts, logger), mgr, nil
}
