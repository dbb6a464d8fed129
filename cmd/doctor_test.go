package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDoctor_CleanCorpusPasses(t *testing.T) {
	root := writeCorpus(t)
	if _, _, err := runCLI(t, "doctor", "--corpus", root); err != nil {
		t.Fatalf("doctor on a clean corpus: %v", err)
	}
}

func TestDoctor_BrokenManifestExitsNonZero(t *testing.T) {
	cases := map[string]string{
		"unterminated front matter": "---\nname: broken\ndescription: never closed\n",
		"missing description":       "---\nname: broken\n---\n\nBody only.\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			root := writeCorpus(t)
			broken := filepath.Join(root, "agents", "broken.md")
			if err := os.WriteFile(broken, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, _, err := runCLI(t, "doctor", "--corpus", root)
			if err == nil {
				t.Fatal("expected doctor to fail")
			}
			if code := exitCode(err); code != exitInternal {
				t.Fatalf("exit code %d, want %d", code, exitInternal)
			}
			var ee *exitError
			if !errors.As(err, &ee) || !ee.quiet {
				t.Fatalf("expected a quiet exit error, got %v", err)
			}
		})
	}
}

func TestDoctor_MissingCorpusExitsNonZero(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, _, err := runCLI(t, "doctor", "--corpus", missing)
	if code := exitCode(err); err == nil || code != exitInternal {
		t.Fatalf("expected exit %d, got %v", exitInternal, err)
	}
}
