package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/CanopyHQ/progmem/internal/memory"
	"github.com/cucumber/godog"
)

var (
	buildOnce   sync.Once
	builtBinary string
	buildErr    error
)

// TestContext holds state between steps
type TestContext struct {
	dir        string
	memoryPath string
	corrupted  []byte
	remembered map[string]any

	// CLI run state
	lastCLIStdout   string
	lastCLIStderr   string
	lastCLIExitCode int
}

// ensureCLIBinary returns the progmem binary, building it once per test run.
func ensureCLIBinary() (string, error) {
	if p := os.Getenv("PROGMEM_TEST_BINARY"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "progmem-bin-*")
		if err != nil {
			buildErr = err
			return
		}
		builtBinary = filepath.Join(dir, "progmem")
		cmd := exec.Command("go", "build", "-o", builtBinary, ".")
		cmd.Dir = filepath.Join("..", "..")
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = fmt.Errorf("failed to build test binary: %w: %s", err, out)
		}
	})
	return builtBinary, buildErr
}

func (tc *TestContext) cleanup(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
	if tc.dir != "" {
		_ = os.RemoveAll(tc.dir)
	}
	return ctx, nil
}

func (tc *TestContext) freshProjectMemory() error {
	if _, err := ensureCLIBinary(); err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "progmem-acceptance-*")
	if err != nil {
		return err
	}
	tc.dir = dir
	tc.memoryPath = filepath.Join(dir, ".claude", memory.FileName)
	return nil
}

func (tc *TestContext) memoryFileContains(doc *godog.DocString) error {
	tc.corrupted = []byte(doc.Content)
	if err := os.MkdirAll(filepath.Dir(tc.memoryPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(tc.memoryPath, tc.corrupted, 0o644)
}

// syncRunsRecorded records n empty sync runs through the library to keep
// the scenario fast.
func (tc *TestContext) syncRunsRecorded(n int) error {
	store := memory.NewStore(tc.memoryPath)
	doc, _, err := store.Load()
	if err != nil {
		return err
	}
	for i := 1; i <= n; i++ {
		doc.BatchUpsert(nil, memory.SyncMeta{SyncID: fmt.Sprintf("sync-%d", i)})
	}
	return store.Save(doc)
}

func (tc *TestContext) fingerprintsRejected(n int) error {
	store := memory.NewStore(tc.memoryPath)
	doc, _, err := store.Load()
	if err != nil {
		return err
	}
	candidates := make([]json.RawMessage, n)
	for i := range candidates {
		candidates[i] = json.RawMessage(strconv.Quote(fmt.Sprintf("fp-%04d", i)))
	}
	doc.RegisterRejections(candidates, "")
	return store.Save(doc)
}

// run executes the binary inside the scenario's project directory.
func (tc *TestContext) run(args ...string) error {
	binaryPath, err := ensureCLIBinary()
	if err != nil {
		return err
	}
	cmd := exec.Command(binaryPath, append([]string{"--memory-path", tc.memoryPath}, args...)...)
	cmd.Dir = tc.dir
	cmd.Env = append(os.Environ(), "PROGMEM_MEMORY_PATH=", "PROGMEM_LOG_LEVEL=")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	tc.lastCLIStdout = stdout.String()
	tc.lastCLIStderr = stderr.String()
	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.lastCLIExitCode = exitErr.ExitCode()
	} else if err != nil {
		tc.lastCLIExitCode = -1
		return err
	} else {
		tc.lastCLIExitCode = 0
	}
	return nil
}

func (tc *TestContext) runProgmem(cmdLine string) error {
	return tc.run(strings.Fields(cmdLine)...)
}

func (tc *TestContext) appendCapability(payload *godog.DocString) error {
	return tc.run("append", "--payload-json", payload.Content)
}

func (tc *TestContext) batchUpsert(meta string, payloads *godog.DocString) error {
	return tc.run("batch-upsert", "--payload-json", payloads.Content, "--sync-meta-json", meta)
}

func (tc *TestContext) registerRejections(candidates *godog.DocString) error {
	return tc.run("register-rejections", "--payload-json", candidates.Content)
}

func (tc *TestContext) registerRejectionsForSync(syncID string, candidates *godog.DocString) error {
	return tc.run("register-rejections", "--payload-json", candidates.Content, "--sync-id", syncID)
}

func (tc *TestContext) checkCommandSucceeded() error {
	if tc.lastCLIExitCode != 0 {
		return fmt.Errorf("expected exit code 0, got %d; stderr: %s", tc.lastCLIExitCode, tc.lastCLIStderr)
	}
	return nil
}

func (tc *TestContext) checkCommandFailed() error {
	if tc.lastCLIExitCode == 0 {
		return fmt.Errorf("expected command to fail but it succeeded; stdout: %s", tc.lastCLIStdout)
	}
	return nil
}

func (tc *TestContext) outputShouldContain(text string) error {
	if !strings.Contains(tc.lastCLIStdout, text) {
		return fmt.Errorf("expected output to contain %q, got: %s", text, tc.lastCLIStdout)
	}
	return nil
}

func (tc *TestContext) errorShouldContain(text string) error {
	if !strings.Contains(tc.lastCLIStderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got: %s", text, tc.lastCLIStderr)
	}
	return nil
}

// outputField walks a dotted path ("capability.cap_id", "added_fingerprints.0")
// through the JSON printed by the last command.
func (tc *TestContext) outputField(path string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(tc.lastCLIStdout), &v); err != nil {
		return nil, fmt.Errorf("output is not JSON: %w: %s", err, tc.lastCLIStdout)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in output", path)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %q", part, path)
		}
	}
	return v, nil
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

func (tc *TestContext) outputFieldShouldBe(path, want string) error {
	v, err := tc.outputField(path)
	if err != nil {
		return err
	}
	if got := render(v); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", path, want, got)
	}
	return nil
}

func (tc *TestContext) rememberOutputField(path string) error {
	v, err := tc.outputField(path)
	if err != nil {
		return err
	}
	if tc.remembered == nil {
		tc.remembered = map[string]any{}
	}
	tc.remembered[path] = v
	return nil
}

func (tc *TestContext) outputFieldUnchanged(path string) error {
	prev, ok := tc.remembered[path]
	if !ok {
		return fmt.Errorf("field %q was not remembered", path)
	}
	return tc.outputFieldShouldBe(path, render(prev))
}

func (tc *TestContext) loadDocument() (*memory.Document, error) {
	data, err := os.ReadFile(tc.memoryPath)
	if err != nil {
		return nil, err
	}
	return memory.ParseDocument(data)
}

func (tc *TestContext) capabilityCount(n int) error {
	doc, err := tc.loadDocument()
	if err != nil {
		return err
	}
	if len(doc.Capabilities) != n {
		return fmt.Errorf("expected %d capabilities, got %d", n, len(doc.Capabilities))
	}
	return nil
}

func (tc *TestContext) syncHistoryCount(n int) error {
	doc, err := tc.loadDocument()
	if err != nil {
		return err
	}
	if len(doc.SyncHistory) != n {
		return fmt.Errorf("expected %d sync history entries, got %d", n, len(doc.SyncHistory))
	}
	return nil
}

func (tc *TestContext) rejectedCount(n int) error {
	doc, err := tc.loadDocument()
	if err != nil {
		return err
	}
	if len(doc.RejectedFingerprints) != n {
		return fmt.Errorf("expected %d rejected fingerprints, got %d", n, len(doc.RejectedFingerprints))
	}
	return nil
}

func (tc *TestContext) oldestSyncEntry(syncID string) error {
	doc, err := tc.loadDocument()
	if err != nil {
		return err
	}
	if len(doc.SyncHistory) == 0 || doc.SyncHistory[0].SyncID != syncID {
		return fmt.Errorf("expected oldest sync entry %q", syncID)
	}
	return nil
}

func (tc *TestContext) syncEntryRejectedCount(syncID string, n int) error {
	doc, err := tc.loadDocument()
	if err != nil {
		return err
	}
	for _, e := range doc.SyncHistory {
		if e.SyncID == syncID {
			if e.RejectedCount != n {
				return fmt.Errorf("expected %s rejected_count %d, got %d", syncID, n, e.RejectedCount)
			}
			return nil
		}
	}
	return fmt.Errorf("sync entry %q not found", syncID)
}

func (tc *TestContext) nextCapabilityID(want string) error {
	doc, err := tc.loadDocument()
	if err != nil {
		return err
	}
	if got := fmt.Sprintf("CAP-%03d", doc.NextCapabilitySeq); got != want {
		return fmt.Errorf("expected next id %s, got %s", want, got)
	}
	return nil
}

func (tc *TestContext) backupExists() error {
	matches, err := filepath.Glob(tc.memoryPath + ".corrupt.*")
	if err != nil {
		return err
	}
	if len(matches) != 1 {
		return fmt.Errorf("expected one backup, found %d", len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return err
	}
	if !bytes.Equal(data, tc.corrupted) {
		return fmt.Errorf("backup content differs from the corrupted file")
	}
	return nil
}

func (tc *TestContext) noMemoryFile() error {
	if _, err := os.Stat(tc.memoryPath); !os.IsNotExist(err) {
		return fmt.Errorf("expected no memory file at %s", tc.memoryPath)
	}
	return nil
}
