package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func setArgs(args ...string) func() {
	orig := os.Args
	os.Args = args
	return func() { os.Args = orig }
}

func captureStdout(f func()) (string, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old; w.Close() }()
	f()
	w.Close()
	data, _ := io.ReadAll(r)
	return string(data), nil
}

// resetFlags puts every flag back to its default; cobra keeps parsed values
// on the package-level commands between Execute calls.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// run executes progmem with args and returns what it printed on stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	defer setArgs(append([]string{"progmem"}, args...)...)()
	var runErr error
	out, err := captureStdout(func() { runErr = Execute() })
	if err != nil {
		t.Fatal(err)
	}
	return out, runErr
}

// tempMemory returns a memory path inside a fresh directory and clears the
// environment overrides.
func tempMemory(t *testing.T) string {
	t.Helper()
	t.Setenv("PROGMEM_MEMORY_PATH", "")
	t.Setenv("PROGMEM_LOG_LEVEL", "")
	return filepath.Join(t.TempDir(), ".claude", "project_memory.json")
}

func TestExecute_Help(t *testing.T) {
	out, err := run(t, "help")
	if err != nil {
		t.Fatalf("Execute(help): %v", err)
	}
	if !strings.Contains(out, "progmem") {
		t.Errorf("help output should contain 'progmem': %q", out)
	}
	for _, name := range []string{"append", "batch-upsert", "register-rejections", "parse-selection", "read"} {
		if !strings.Contains(out, name) {
			t.Errorf("help output should list %q", name)
		}
	}
}

func TestExecute_HelpShortFlag(t *testing.T) {
	out, err := run(t, "-h")
	if err != nil {
		t.Fatalf("Execute(-h): %v", err)
	}
	if len(out) == 0 {
		t.Error("help -h should print")
	}
}

func TestExecute_Version(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")

	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "progmem 1.2.3 (commit: abc123, built: 2026-01-01)" {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	if Version != "1.2.3" || Commit != "abc123" || Date != "2026-01-01" {
		t.Errorf("SetVersion: got Version=%q Commit=%q Date=%q", Version, Commit, Date)
	}
	// Restore for other tests
	SetVersion("dev", "none", "unknown")
}

func TestExecute_UnknownLogLevel(t *testing.T) {
	tempMemory(t)
	t.Setenv("PROGMEM_LOG_LEVEL", "chatty")

	_, err := run(t, "read")
	if err == nil || !strings.Contains(err.Error(), "config validation") {
		t.Errorf("expected config validation error, got %v", err)
	}
}

func TestExecute_BrokenConfigDoesNotBlockPureCommands(t *testing.T) {
	tempMemory(t)
	t.Setenv("PROGMEM_LOG_LEVEL", "chatty")
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".claude"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".claude", "progmem.yaml"), []byte("memory_path: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	out, err := run(t, "parse-selection", "--selection", "1", "--total", "1")
	if err != nil {
		t.Fatalf("parse-selection with a broken config: %v", err)
	}
	if !strings.Contains(out, "selected_indices") {
		t.Errorf("unexpected parse-selection output %q", out)
	}
	if _, err := run(t, "version"); err != nil {
		t.Errorf("version with a broken config: %v", err)
	}
}
