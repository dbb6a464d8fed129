package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/config"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/snapshot"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration and the corpus for problems",
	Long: `Check that the configuration is valid and that every manifest in the
corpus can be indexed. Reports unparseable files, front-matter problems,
duplicate ids and references whose files are missing.

Exits non-zero when a manifest cannot be indexed or lacks a required field.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.AddCommand(doctorFixCmd)
	rootCmd.AddCommand(doctorCmd)
}

var doctorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Remove the persisted manifest cache",
	Long: `Delete the persisted manifest cache so the next command re-parses every
file. Use it when 'skillctx doctor' reports an unreadable cache.`,
	Args: cobra.NoArgs,
	RunE: runDoctorFix,
}

func runDoctorFix(_ *cobra.Command, _ []string) error {
	printSection("skillctx doctor fix")
	fmt.Println()
	printGroup("Manifest cache")
	if cfg.CacheDir == "" {
		printInfo("", "no cache_dir configured, nothing to fix")
		return nil
	}
	if _, err := os.Stat(cfg.CacheDir); errors.Is(err, os.ErrNotExist) {
		printOK("", "no manifest cache present, nothing to fix")
		return nil
	}
	if err := snapshot.NewStore(cfg.CacheDir).Clear(); err != nil {
		printErr("", err.Error())
		return err
	}
	printOK("", fmt.Sprintf("removed %s", cfg.CacheDir))
	return nil
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("skillctx doctor")
	fmt.Println()

	// ── Check 1: configuration ────────────────────────────────────────────
	printGroup("Configuration")
	if p, err := config.ConfigPath(); err == nil {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			printInfo("", fmt.Sprintf("%s not found, using defaults", p))
		} else {
			printOK("", fmt.Sprintf("loaded %s", p))
		}
	}
	for _, key := range config.EnvKeys() {
		v, err := config.GetConfigValue(key)
		if err != nil {
			failD("%v", err)
			break
		}
		if v != "" {
			printInfo(key, fmt.Sprintf("override %q", v))
		}
	}
	printOK("", fmt.Sprintf("budget %d tokens, min confidence %g, relative margin %g, %d worker(s)",
		cfg.DefaultBudgetTokens, cfg.MinConfidence, cfg.RelativeMargin, cfg.Workers))
	fmt.Println()

	// ── Check 2: corpus root ──────────────────────────────────────────────
	printGroup("Corpus root")
	info, err := os.Stat(cfg.CorpusRoot)
	switch {
	case err != nil:
		failD("cannot open corpus root %s: %v", cfg.CorpusRoot, err)
	case !info.IsDir():
		failD("corpus root %s is not a directory", cfg.CorpusRoot)
	default:
		printOK("", cfg.CorpusRoot)
	}
	fmt.Println()
	if !allOK {
		return doctorSummary(false)
	}

	// ── Check 3: manifests ────────────────────────────────────────────────
	printGroup("Manifests")
	mgr, rep, err := scanCorpus(cmd.Context())
	if err != nil {
		failD("%v", err)
		return doctorSummary(false)
	}
	defer mgr.Close()
	snap, err := mgr.Acquire()
	if err != nil {
		failD("%v", err)
		return doctorSummary(false)
	}
	defer snap.Release()

	printOK("", fmt.Sprintf("%d file(s) found, %d indexed", rep.Files, len(snap.Manifests())))
	for _, p := range rep.Problems {
		failD("[%s] %s", p.Path, p.Message)
	}
	for _, m := range snap.Manifests() {
		for _, v := range m.Validation {
			if isRequiredField(v) {
				failD("[%s] %s: %s", v.Path, v.Field, v.Reason)
			} else {
				printWarn(v.Path, fmt.Sprintf("%s: %s", v.Field, v.Reason))
			}
		}
		if m.Opaque {
			printWarn(m.Path, "no front matter, indexed from file name and body")
		}
	}
	for _, c := range rep.Conflicts {
		printWarn(c.ID, fmt.Sprintf("duplicate id: %s shadows %s", c.Winner, c.Loser))
	}
	fmt.Println()

	// ── Check 4: references ───────────────────────────────────────────────
	printGroup("References")
	missing := 0
	for _, m := range snap.Manifests() {
		if m.Kind != manifest.KindSkill {
			continue
		}
		for _, n := range snap.References().References(m.ID) {
			if !n.Available {
				printMiss(m.ID, fmt.Sprintf("%s (%s)", n.Path, n.Problem))
				missing++
			}
		}
	}
	if missing == 0 {
		printOK("", fmt.Sprintf("all %d declared reference(s) present", rep.Refs))
	} else {
		printWarn("", fmt.Sprintf("%d of %d declared reference(s) missing", missing, rep.Refs))
	}
	fmt.Println()

	// ── Check 5: manifest cache ───────────────────────────────────────────
	printGroup("Manifest cache")
	switch {
	case flagNoCache || cfg.CacheDir == "":
		printInfo("", "disabled")
	default:
		if _, err := snapshot.NewStore(cfg.CacheDir).Load(mgr.Root()); err != nil {
			printWarn("", fmt.Sprintf("not usable: %v (run 'skillctx doctor fix')", err))
		} else {
			printOK("", cfg.CacheDir)
		}
	}
	fmt.Println()

	return doctorSummary(allOK)
}

func isRequiredField(v manifest.ValidationError) bool {
	return strings.HasPrefix(v.Reason, "required field")
}

func doctorSummary(ok bool) error {
	fmt.Println("===================")
	if ok {
		fmt.Println("✓  All checks passed. The corpus is ready to use.")
		return nil
	}
	fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
	return &exitError{code: exitInternal, err: errors.New("doctor found issues"), quiet: true}
}
