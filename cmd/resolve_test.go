package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/assemble"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/config"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search"
)

const goExpert = `---
name: go-expert
description: Go concurrency specialist for goroutines, channels and "context cancellation".
tools: Read, Edit
---

# Go Expert

Use goroutines and channels carefully.
`

// writeCorpus creates a one-agent corpus and returns its root.
func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	p := filepath.Join(root, "agents", "go-expert.md")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(goExpert), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

// resetFlags restores every flag of c and its children to its default so
// commands can run repeatedly in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command with args in an isolated home.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range config.EnvKeys() {
		t.Setenv(k, "")
	}
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestResolve_PrintsEntries(t *testing.T) {
	root := writeCorpus(t)
	stdout, _, err := runCLI(t, "resolve", "--corpus", root, "--budget", "500", "--query", "context cancellation in goroutines")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var entries []assemble.Entry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("stdout is not a JSON array: %v\n%s", err, stdout)
	}
	if len(entries) != 1 || entries[0].SourceID != "go-expert" || entries[0].Kind != "agent" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Truncated || !strings.Contains(entries[0].Body, "Use goroutines") {
		t.Fatalf("unexpected body: %+v", entries[0])
	}
}

func TestResolve_TaskFromArgsWithExplain(t *testing.T) {
	root := writeCorpus(t)
	stdout, _, err := runCLI(t, "resolve", "--corpus", root, "--no-cache", "--explain", "context", "cancellation")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var got explained
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(got.Matches) != 1 || got.Matches[0].ID != "go-expert" {
		t.Fatalf("unexpected matches: %+v", got.Matches)
	}
	if got.Budget != 8000 || got.SnapshotVersion != 1 {
		t.Fatalf("unexpected budget %d or version %d", got.Budget, got.SnapshotVersion)
	}
}

func TestResolve_NoConfidentMatchExitsTwo(t *testing.T) {
	root := writeCorpus(t)
	stdout, stderr, err := runCLI(t, "resolve", "--corpus", root, "--query", "bake sourdough bread")
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := exitCode(err); code != exitNoConfidence {
		t.Fatalf("exit code %d, want %d", code, exitNoConfidence)
	}
	if stdout != "" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	if !strings.Contains(stderr, "no manifest matched the query") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestResolve_WarningsGoToStderr(t *testing.T) {
	root := writeCorpus(t)
	stdout, stderr, err := runCLI(t, "resolve", "--corpus", root, "--budget", "0", "--query", "context cancellation")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(stderr, string(assemble.BudgetExceeded)) {
		t.Fatalf("missing budget warning on stderr: %q", stderr)
	}
	if strings.Contains(stdout, "⚠") {
		t.Fatalf("warning leaked to stdout: %q", stdout)
	}
}

func TestResolve_RequiresTask(t *testing.T) {
	root := writeCorpus(t)
	_, _, err := runCLI(t, "resolve", "--corpus", root)
	if err == nil || exitCode(err) != exitInternal {
		t.Fatalf("expected exit %d, got %v", exitInternal, err)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), exitInternal},
		{&search.NoConfidentMatch{}, exitNoConfidence},
		{fmt.Errorf("wrapped: %w", &search.NoConfidentMatch{}), exitNoConfidence},
		{&exitError{code: 7, err: errors.New("custom")}, 7},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v)=%d want %d", c.err, got, c.want)
		}
	}
}
