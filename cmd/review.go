package cmd

import (
	"fmt"

	"github.com/CanopyHQ/progmem/internal/selection"
	"github.com/spf13/cobra"
)

var registerRejectionsCmd = &cobra.Command{
	Use:   "register-rejections",
	Short: "Remember candidates the user declined",
	Long: `Remember the fingerprints of rejected candidates so later syncs can skip
them. Each candidate is a fingerprint string or a capability payload.

With --sync-id, the matching sync history entry gets its rejected_count set
to the number of candidates passed.

Examples:
  progmem register-rejections --payload-json '["1a2b3c4d5e6f7a8b"]'
  progmem register-rejections --payload-json '[{"title":"B","source_commit":"c2","feature_id":2}]' --sync-id sync-42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, _ := cmd.Flags().GetString("payload-json")
		syncID, _ := cmd.Flags().GetString("sync-id")
		return runRegisterRejections(payload, syncID)
	},
}

var parseSelectionCmd = &cobra.Command{
	Use:   "parse-selection",
	Short: "Parse a 1,3,5-7 style selection",
	Long: `Parse a selection typed while reviewing a numbered list of candidates.
Prints the selected 0-based indices plus the selected and rejected 1-based
numbers. Does not touch the project memory.

Examples:
  progmem parse-selection --selection "1,3,5-7" --total 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("selection")
		total, _ := cmd.Flags().GetInt("total")
		return runParseSelection(text, total)
	},
	Annotations: noDocument,
}

func init() {
	registerRejectionsCmd.Flags().String("payload-json", "", "JSON array of rejected candidates")
	registerRejectionsCmd.Flags().String("sync-id", "", "Sync ID for history linkage")
	_ = registerRejectionsCmd.MarkFlagRequired("payload-json")

	parseSelectionCmd.Flags().String("selection", "", "Raw selection string")
	parseSelectionCmd.Flags().Int("total", 0, "Total candidate count")
	_ = parseSelectionCmd.MarkFlagRequired("selection")
	_ = parseSelectionCmd.MarkFlagRequired("total")
}

func runRegisterRejections(payloadJSON, syncID string) error {
	candidates, err := arrayArg(payloadJSON, "--payload-json")
	if err != nil {
		return err
	}

	store, doc, err := loadDocument()
	if err != nil {
		return err
	}
	result := doc.RegisterRejections(candidates, syncID)
	if err := store.Save(doc); err != nil {
		return fmt.Errorf("failed to save project memory: %w", err)
	}
	return printJSON(result)
}

func runParseSelection(text string, total int) error {
	selected, err := selection.ParseIndexSelection(text, total)
	if err != nil {
		return err
	}
	return printJSON(selection.Summarize(selected, total))
}
