package cmd

import (
	"fmt"

	"github.com/CanopyHQ/progmem/internal/git"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the project memory as JSON",
	Long: `Print the normalized project memory document as JSON.

Examples:
  progmem read
  progmem read --memory-path ./other/project_memory.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error { return runRead() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("progmem %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
	Annotations: noDocument,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project memory statistics",
	Long: `Show capability count, retention usage and sync state.

Examples:
  progmem status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error { return runStatus() },
}

func runRead() error {
	_, doc, err := loadDocument()
	if err != nil {
		return err
	}
	return printJSON(doc)
}

func runStatus() error {
	store, doc, err := loadDocument()
	if err != nil {
		return err
	}

	fmt.Printf("Project Memory Status:\n")
	fmt.Printf("  Path: %s\n", store.Path())
	fmt.Printf("  Capabilities: %d (next: CAP-%03d)\n", len(doc.Capabilities), doc.NextCapabilitySeq)
	fmt.Printf("  Rejected Fingerprints: %d / %d\n", len(doc.RejectedFingerprints), doc.Limits.MaxRejectedFingerprints)
	fmt.Printf("  Sync History: %d / %d\n", len(doc.SyncHistory), doc.Limits.MaxSyncHistory)

	lastSynced := "(never)"
	if doc.LastSyncedCommit != nil && *doc.LastSyncedCommit != "" {
		lastSynced = *doc.LastSyncedCommit
	}
	fmt.Printf("  Last Synced Commit: %s\n", lastSynced)
	if head, err := git.HeadCommit(cfg.ProjectRoot); err == nil {
		state := "behind"
		if head == lastSynced {
			state = "up to date"
		}
		fmt.Printf("  HEAD: %s (%s)\n", head, state)
	}
	if n := len(doc.SyncHistory); n > 0 {
		last := doc.SyncHistory[n-1]
		fmt.Printf("  Last Sync: %s at %s (%d inserted, %d deduped)\n", last.SyncID, last.Timestamp, last.InsertedCount, last.DedupedCount)
	}
	fmt.Printf("  Last Updated: %s\n", doc.UpdatedAt)
	return nil
}
