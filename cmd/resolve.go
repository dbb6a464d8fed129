package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/assemble"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/resolver"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search"
)

var (
	flagResolveQuery    string
	flagResolveBudget   int
	flagResolveAgent    string
	flagResolveDeadline time.Duration
	flagResolveRefs     []string
	flagResolveExplain  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [task...]",
	Short: "Resolve the agent, skills and references for a task",
	Long: `Match a task description against the corpus and print the assembled
context as a JSON array on stdout. Warnings go to stderr.

Exit status is 0 on success, 2 when nothing matched confidently and 1 on
internal errors.

Example:
  skillctx resolve --query "Add signal-based state to the Angular cart" --budget 4000
  skillctx resolve --agent react-expert --ref references/effects.md "memoize the list rows"`,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVarP(&flagResolveQuery, "query", "q", "", "Task description (or pass it as arguments)")
	f.IntVarP(&flagResolveBudget, "budget", "b", -1, "Token budget (default: DEFAULT_BUDGET_TOKENS or default_budget_tokens)")
	f.StringVar(&flagResolveAgent, "agent", "", "Restrict the match to this agent id")
	f.DurationVar(&flagResolveDeadline, "deadline", 0, "Return partial context after this long, e.g. 500ms")
	f.StringArrayVar(&flagResolveRefs, "ref", nil, "Reference path to include (repeatable)")
	f.BoolVar(&flagResolveExplain, "explain", false, "Wrap the payload with matches, scores and warnings")
	rootCmd.AddCommand(resolveCmd)
}

// explained is the --explain output.
type explained struct {
	Matches         []search.MatchResult `json:"matches"`
	Entries         []assemble.Entry     `json:"entries"`
	Warnings        []assemble.Warning   `json:"warnings"`
	Partial         bool                 `json:"partial"`
	Budget          int                  `json:"budget"`
	Used            int                  `json:"used"`
	SnapshotVersion uint64               `json:"snapshotVersion"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	task := strings.TrimSpace(flagResolveQuery)
	if task == "" {
		task = strings.TrimSpace(strings.Join(args, " "))
	}
	if task == "" {
		return &exitError{code: exitInternal, err: errors.New("a task is required: pass --query or arguments")}
	}
	budget := flagResolveBudget
	if budget < 0 {
		budget = cfg.DefaultBudgetTokens
	}

	eng, mgr, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer mgr.Close()

	res, err := eng.Resolve(cmd.Context(), resolver.Query{
		Task:       task,
		Budget:     budget,
		Agent:      flagResolveAgent,
		Deadline:   flagResolveDeadline,
		References: flagResolveRefs,
	})
	var ncm *search.NoConfidentMatch
	if errors.As(err, &ncm) {
		printCandidates(cmd.ErrOrStderr(), ncm)
		if flagResolveExplain {
			_ = writeJSON(cmd.OutOrStdout(), ncm)
		}
		return &exitError{code: exitNoConfidence, err: ncm, quiet: true}
	}
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "  ⚠  %s\n", w)
	}

	if flagResolveExplain {
		return writeJSON(cmd.OutOrStdout(), explained{
			Matches:         res.Matches,
			Entries:         res.Entries,
			Warnings:        nonNil(res.Warnings),
			Partial:         res.Partial,
			Budget:          res.Budget,
			Used:            res.Used,
			SnapshotVersion: res.SnapshotVersion,
		})
	}
	return writeJSON(cmd.OutOrStdout(), res.Entries)
}

func printCandidates(w io.Writer, ncm *search.NoConfidentMatch) {
	fmt.Fprintf(w, "  ✗  %s\n", ncm.Error())
	if len(ncm.Candidates) == 0 {
		return
	}
	fmt.Fprintln(w, "     Closest candidates:")
	for _, c := range ncm.Candidates {
		fmt.Fprintf(w, "       %-6s %-32s %.3f\n", c.Kind, c.ID, c.Score)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func nonNil(ws []assemble.Warning) []assemble.Warning {
	if ws == nil {
		return []assemble.Warning{}
	}
	return ws
}
