package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/config"
)

var flagInitForce bool

var initCmd = &cobra.Command{
	Use:   "init [corpus-dir]",
	Short: "Write the default configuration",
	Long: `Create ~/.skillctx/ with a skillctx.yaml holding the defaults and a .env
template listing the environment overrides.

The optional argument sets corpus_root; it defaults to the current directory.

Example:
  skillctx init ~/src/claude-skills`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "Overwrite an existing skillctx.yaml")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, args []string) error {
	// ── 1. Resolve ~/.skillctx directory ──────────────────────────────────────
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("skillctx directory ready: %s", dir))

	// ── 2. Write skillctx.yaml if missing ─────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) || flagInitForce {
		def, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		root, err = config.ExpandPath(root)
		if err != nil {
			return err
		}
		if def.CorpusRoot, err = filepath.Abs(root); err != nil {
			return fmt.Errorf("cannot resolve corpus root: %w", err)
		}
		if err := config.Save(def); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
		printInfo("", fmt.Sprintf("corpus_root: %s", def.CorpusRoot))
	} else {
		printInfo("", fmt.Sprintf("Config already exists: %s (use --force to overwrite)", cfgPath))
	}

	// ── 3. Dotenv template ────────────────────────────────────────────────────
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	if p, err := config.DotEnvPath(); err == nil {
		printOK("", fmt.Sprintf("Environment overrides: %s", p))
	}
	return nil
}
