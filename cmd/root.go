package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CanopyHQ/progmem/internal/config"
	"github.com/CanopyHQ/progmem/internal/git"
	"github.com/CanopyHQ/progmem/internal/memory"
	"github.com/spf13/cobra"
)

// Build-time variables
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// SetVersion sets the version info from main
func SetVersion(v, c, d string) {
	Version = v
	Commit = c
	Date = d
}

var (
	flagMemoryPath string
	flagVerbose    bool

	// cfg is resolved before every command runs.
	cfg *config.Config
)

// annotationNoDocument marks commands that never read the project memory.
// They skip project root and config resolution, so a broken config file
// cannot fail them.
const annotationNoDocument = "progmem.no-document"

var noDocument = map[string]string{annotationNoDocument: "true"}

var rootCmd = &cobra.Command{
	Use:   "progmem",
	Short: "progmem - project memory for the progress tracker",
	Long: `Maintains .claude/project_memory.json: the capabilities recorded for a
project, the candidates a user rejected and the history of sync runs.

Every command loads the document, applies one change and saves it back.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := cmd.Annotations[annotationNoDocument]; ok {
			installLogger(slog.LevelInfo)
			return nil
		}
		return setup()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the progmem command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMemoryPath, "memory-path", "", "Path to project_memory.json (default <project>/.claude/project_memory.json)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging on stderr")

	// read, status, version (defined in status.go)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)

	// append, batch-upsert (defined in capabilities.go)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(batchUpsertCmd)

	// register-rejections, parse-selection (defined in review.go)
	rootCmd.AddCommand(registerRejectionsCmd)
	rootCmd.AddCommand(parseSelectionCmd)

	// export (defined in export.go)
	rootCmd.AddCommand(exportCmd)

	// doctor (defined in doctor.go)
	rootCmd.AddCommand(doctorCmd)
}

// setup resolves the project root and config and installs the logger.
func setup() error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	root := git.FindProjectRoot(wd, config.ClaudeDir)

	c, err := config.Load(root)
	if err != nil {
		return err
	}
	if flagMemoryPath != "" {
		abs, err := filepath.Abs(flagMemoryPath)
		if err != nil {
			return fmt.Errorf("invalid --memory-path: %w", err)
		}
		c.WithMemoryPath(abs)
	}
	if flagVerbose {
		c.LogLevel = "debug"
	}

	installLogger(c.SlogLevel())
	slog.Debug("config resolved", "project_root", c.ProjectRoot, "memory_path", c.MemoryPath)
	cfg = c
	return nil
}

func installLogger(level slog.Level) {
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadDocument opens the configured store and loads the document, warning on
// stderr when a corrupted file had to be reset.
func loadDocument() (*memory.Store, *memory.Document, error) {
	store := memory.NewStore(cfg.MemoryPath)
	doc, recovery, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	if recovery != nil {
		warnRecovered(recovery)
	}
	return store, doc, nil
}

func warnRecovered(r *memory.Recovery) {
	if r.BackupPath != "" {
		fmt.Fprintf(os.Stderr, "⚠️  Project memory was corrupted and has been reset. Backup: %s\n", r.BackupPath)
		return
	}
	fmt.Fprintf(os.Stderr, "⚠️  Project memory was corrupted and has been reset. No backup was written: %v\n", r.BackupErr)
}

// printJSON writes v to stdout as 2-space indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// objectArg validates that a flag value is a JSON object.
func objectArg(raw, flag string) (json.RawMessage, error) {
	msg, err := jsonArg(raw, flag)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(msg); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%s must decode to an object", flag)
	}
	return msg, nil
}

// arrayArg validates that a flag value is a JSON array and splits it.
func arrayArg(raw, flag string) ([]json.RawMessage, error) {
	msg, err := jsonArg(raw, flag)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%s must decode to an array", flag)
	}
	return items, nil
}

func jsonArg(raw, flag string) (json.RawMessage, error) {
	var msg json.RawMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("%s is not valid JSON: %w", flag, err)
	}
	return msg, nil
}
