// Package export writes snapshots of the project memory in other formats.
// Snapshots are one-shot files; nothing reads them back.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/CanopyHQ/progmem/internal/memory"
)

// Format names a snapshot format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatSQLite   Format = "sqlite"
)

// ParseFormat accepts a format name or a common alias.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unknown format: %s (supported: json, markdown, sqlite)", name)
	}
}

// Extension returns the file extension used for default output names.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatSQLite:
		return "db"
	default:
		return "json"
	}
}

// WriteJSON writes the document exactly as it would be saved.
func WriteJSON(w io.Writer, doc *memory.Document) error {
	data, err := memory.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteMarkdown renders capabilities and sync history as a readable report.
func WriteMarkdown(w io.Writer, doc *memory.Document) error {
	var sb strings.Builder
	sb.WriteString("# Project Memory\n\n")
	sb.WriteString(fmt.Sprintf("Updated: %s\n\n", doc.UpdatedAt))
	sb.WriteString(fmt.Sprintf("Capabilities: %d\n\n", len(doc.Capabilities)))
	if doc.LastSyncedCommit != nil && *doc.LastSyncedCommit != "" {
		sb.WriteString(fmt.Sprintf("Last synced commit: `%s`\n\n", *doc.LastSyncedCommit))
	}
	sb.WriteString("---\n\n")

	for _, c := range doc.Capabilities {
		if c.CapID == "" && c.Title == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s %s\n\n", c.CapID, c.Title))
		sb.WriteString(fmt.Sprintf("*%s*", c.CreatedAt))
		if len(c.Tags) > 0 {
			sb.WriteString(fmt.Sprintf(" | Tags: %s", strings.Join(c.Tags, ", ")))
		}
		sb.WriteString(fmt.Sprintf(" | Confidence: %.0f%%", c.Confidence*100))
		sb.WriteString("\n\n")
		if c.Summary != "" {
			sb.WriteString(c.Summary)
			sb.WriteString("\n\n")
		}
		var src []string
		if c.Source.FeatureID != "" {
			src = append(src, "feature "+c.Source.FeatureID.String())
		}
		if c.Source.CommitHash != "" {
			src = append(src, "commit `"+c.Source.CommitHash+"`")
		}
		if c.Source.Origin != "" {
			src = append(src, "via "+c.Source.Origin)
		}
		if len(src) > 0 {
			sb.WriteString("Source: " + strings.Join(src, ", ") + "\n\n")
		}
	}

	if len(doc.SyncHistory) > 0 {
		sb.WriteString("## Sync History\n\n")
		sb.WriteString("| Sync | Time | Candidates | Inserted | Deduped | Invalid | Rejected |\n")
		sb.WriteString("|------|------|-----------|----------|---------|---------|----------|\n")
		for i := len(doc.SyncHistory) - 1; i >= 0; i-- {
			e := doc.SyncHistory[i]
			if e.SyncID == "" && e.Timestamp == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %d |\n",
				e.SyncID, e.Timestamp, e.TotalCandidates, e.InsertedCount, e.DedupedCount, e.InvalidCount, e.RejectedCount))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
