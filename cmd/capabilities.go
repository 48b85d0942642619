package cmd

import (
	"fmt"
	"strings"

	"github.com/CanopyHQ/progmem/internal/memory"
	"github.com/spf13/cobra"
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Record one capability",
	Long: `Record one capability. The document is only written when the capability
is new; a capability whose fingerprint is already stored is reported as deduped.

The payload may carry its origin in a nested "source" object or in the flat
fields commit_hash / source_commit / feature_id / commit_range / origin.

Examples:
  progmem append --payload-json '{"title":"Registration API","tags":["api"],"source":{"feature_id":1,"commit_hash":"abc123"}}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, _ := cmd.Flags().GetString("payload-json")
		return runAppend(payload)
	},
}

var batchUpsertCmd = &cobra.Command{
	Use:   "batch-upsert",
	Short: "Record a batch of capabilities from a sync run",
	Long: `Record a list of capability candidates and append one entry to the sync
history. Candidates without a title are counted as invalid and skipped.

Sync metadata keys: sync_id, commit_range, last_synced_commit, rejected_count.

Examples:
  progmem batch-upsert --payload-json '[{"title":"OAuth Login","source_commit":"deadbeef","feature_id":2}]' \
    --sync-meta-json '{"sync_id":"sync-1","last_synced_commit":"deadbeef"}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, _ := cmd.Flags().GetString("payload-json")
		meta, _ := cmd.Flags().GetString("sync-meta-json")
		return runBatchUpsert(payload, meta)
	},
}

func init() {
	appendCmd.Flags().String("payload-json", "", "Capability JSON object")
	_ = appendCmd.MarkFlagRequired("payload-json")

	batchUpsertCmd.Flags().String("payload-json", "", "JSON array of capabilities")
	batchUpsertCmd.Flags().String("sync-meta-json", "{}", "JSON object containing sync metadata")
	_ = batchUpsertCmd.MarkFlagRequired("payload-json")
}

func runAppend(payloadJSON string) error {
	raw, err := objectArg(payloadJSON, "--payload-json")
	if err != nil {
		return err
	}
	payload, err := memory.ParseCapabilityPayload(raw)
	if err != nil {
		return err
	}
	if strings.TrimSpace(payload.Title) == "" {
		return memory.ErrTitleRequired
	}

	store, doc, err := loadDocument()
	if err != nil {
		return err
	}
	result, err := doc.AppendCapability(payload)
	if err != nil {
		return err
	}
	if result.Status == memory.StatusInserted {
		if err := store.Save(doc); err != nil {
			return fmt.Errorf("failed to save project memory: %w", err)
		}
	}
	return printJSON(result)
}

func runBatchUpsert(payloadJSON, metaJSON string) error {
	payloads, err := arrayArg(payloadJSON, "--payload-json")
	if err != nil {
		return err
	}
	rawMeta, err := objectArg(metaJSON, "--sync-meta-json")
	if err != nil {
		return err
	}
	meta, err := memory.ParseSyncMeta(rawMeta)
	if err != nil {
		return fmt.Errorf("--sync-meta-json: %w", err)
	}

	store, doc, err := loadDocument()
	if err != nil {
		return err
	}
	result := doc.BatchUpsert(payloads, meta)
	if err := store.Save(doc); err != nil {
		return fmt.Errorf("failed to save project memory: %w", err)
	}
	return printJSON(result)
}
