package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/manifest"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/snapshot"
)

var (
	flagInspectNoBody bool
	flagInspectJSON   bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Show metadata, triggers and references of an agent or skill",
	Long: `Display a formatted summary of a manifest in the corpus: its description,
trigger phrases, tools, declared references and whether each reference file
is present, followed by the body.

The argument is a manifest id (agent file stem or skill directory name). If
no id matches exactly, every id containing the argument is shown.

Example:
  skillctx inspect angular-expert
  skillctx inspect state --no-body`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&flagInspectNoBody, "no-body", false, "Do not print the manifest body")
	inspectCmd.Flags().BoolVar(&flagInspectJSON, "json", false, "Print the parsed manifests as JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	mgr, _, err := scanCorpus(cmd.Context())
	if err != nil {
		return err
	}
	defer mgr.Close()
	snap, err := mgr.Acquire()
	if err != nil {
		return err
	}
	defer snap.Release()

	found, err := lookupManifests(snap, args[0])
	if err != nil {
		return err
	}
	if flagInspectJSON {
		return writeJSON(cmd.OutOrStdout(), found)
	}
	for i, m := range found {
		if i > 0 {
			fmt.Println(strings.Repeat("─", 50))
		}
		printInspect(snap, m)
	}
	return nil
}

// lookupManifests returns the manifest with id arg or, failing that, every
// manifest whose id contains arg case-insensitively.
func lookupManifests(snap *snapshot.Snapshot, arg string) ([]*manifest.Manifest, error) {
	if m, ok := snap.Manifest(arg); ok {
		return []*manifest.Manifest{m}, nil
	}
	lower := strings.ToLower(arg)
	var matches []*manifest.Manifest
	for _, m := range snap.Manifests() {
		if strings.Contains(strings.ToLower(m.ID), lower) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no agent or skill %q in %s.\nTip: run 'skillctx index' to list what was found.", arg, snap.Root())
	}
	return matches, nil
}

// printInspect displays the formatted inspection output for one manifest.
func printInspect(snap *snapshot.Snapshot, m *manifest.Manifest) {
	label := "Agent"
	if m.Kind == manifest.KindSkill {
		label = "Skill"
	}
	fmt.Println(styled(headerStyle, fmt.Sprintf("📦 %s: %s", label, m.Name)))
	fmt.Printf("Id:       %s\n", m.ID)
	if desc := strings.Join(strings.Fields(manifest.Narrative(m.Description)), " "); desc != "" {
		fmt.Printf("Summary:  %s\n", desc)
	}
	if m.Opaque {
		fmt.Println("  (no front matter, indexed from file name and body)")
	}
	if a := m.Agent; a != nil {
		if a.Model != "" {
			fmt.Printf("Model:    %s\n", a.Model)
		}
		if a.Color != "" {
			fmt.Printf("Color:    %s\n", a.Color)
		}
	}
	if tools := m.Tools(); len(tools) > 0 {
		fmt.Printf("\nTools: %s\n", strings.Join(tools, ", "))
	}

	if len(m.Triggers) > 0 {
		fmt.Println("\nTriggers:")
		for _, t := range m.Triggers {
			fmt.Printf("  - %q\n", t)
		}
	}

	if nodes := snap.References().References(m.ID); len(nodes) > 0 {
		fmt.Println("\nReferences:")
		for _, n := range nodes {
			if n.Available {
				printOK("", fmt.Sprintf("%-40s %s (%d bytes)", n.Path, n.Title, n.Size))
			} else {
				printMiss("", fmt.Sprintf("%-40s %s (%s)", n.Path, n.Title, n.Problem))
			}
		}
	}

	if len(m.Validation) > 0 {
		fmt.Println("\nFront matter:")
		for _, v := range m.Validation {
			printWarn(v.Field, v.Reason)
		}
	}

	var lost []string
	for _, c := range snap.Conflicts() {
		if c.ID == m.ID {
			lost = append(lost, c.Loser)
		}
	}
	if len(lost) > 0 {
		sort.Strings(lost)
		fmt.Println("\nShadows:")
		for _, p := range lost {
			printInfo("", p)
		}
	}

	fmt.Printf("\nPath: %s\n", m.Path)
	fmt.Println(styled(dimStyle, fmt.Sprintf("Hash: %s  Modified: %s", m.Hash[:12], m.ModTime.Format("2006-01-02 15:04"))))
	if !flagInspectNoBody && m.Body != "" {
		fmt.Println()
		fmt.Print(renderMarkdown(m.Body))
	}
}
