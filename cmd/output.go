package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ── Unified output helpers ────────────────────────────────────────────────────
// Human-facing commands use these functions for consistent icons and
// indentation. resolve writes JSON and does not use them.
//
// Icon semantics:
//   ✓  success / healthy
//   ✗  error / failure          (written to stderr)
//   ⚠  warning
//   -  not found / missing
//   ~  neutral info / state change

var (
	colorPurple = lipgloss.Color("#A855F7")
	colorCyan   = lipgloss.Color("#06B6D4")
	colorDim    = lipgloss.Color("#6B7280")

	sectionStyle = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// stdoutIsTTY reports whether stdout is an interactive terminal; styles and
// markdown rendering are only applied then.
func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func styled(s lipgloss.Style, text string) string {
	if !stdoutIsTTY() {
		return text
	}
	return s.Render(text)
}

// printSection prints a top-level section header, e.g. "=== Doctor ===".
func printSection(title string) {
	fmt.Printf("\n%s\n", styled(sectionStyle, "=== "+title+" ==="))
}

// printGroup prints a check group heading, e.g. "[ Manifests ]".
func printGroup(title string) {
	fmt.Println(styled(headerStyle, "[ "+title+" ]"))
}

// printOK prints a success line.
//   name = "" → "  ✓  msg"
//   name set  → "  ✓  [name] msg"
func printOK(name, msg string) {
	if name == "" {
		fmt.Printf("  ✓  %s\n", msg)
	} else {
		fmt.Printf("  ✓  [%s] %s\n", name, msg)
	}
}

// printErr prints an error line to stderr.
func printErr(name, msg string) {
	if name == "" {
		fmt.Fprintf(os.Stderr, "  ✗  %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "  ✗  [%s] %s\n", name, msg)
	}
}

// printWarn prints a warning line.
func printWarn(name, msg string) {
	if name == "" {
		fmt.Printf("  ⚠  %s\n", msg)
	} else {
		fmt.Printf("  ⚠  [%s] %s\n", name, msg)
	}
}

// printMiss prints a not-found / missing line.
func printMiss(name, msg string) {
	if name == "" {
		fmt.Printf("  -  %s\n", msg)
	} else {
		fmt.Printf("  -  [%s] %s\n", name, msg)
	}
}

// printInfo prints a neutral informational / state-change line.
func printInfo(name, msg string) {
	if name == "" {
		fmt.Printf("  ~  %s\n", msg)
	} else {
		fmt.Printf("  ~  [%s] %s\n", name, msg)
	}
}

// renderMarkdown renders md for the terminal, or returns it unchanged when
// stdout is not a terminal or rendering fails.
func renderMarkdown(md string) string {
	if !stdoutIsTTY() {
		return md
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}
