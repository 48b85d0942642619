package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/CanopyHQ/progmem/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [format] [output]",
	Short: "Export a snapshot of the project memory",
	Long: `Export a snapshot of the project memory to a file.

Supported formats:
  json      - the document as stored (default)
  markdown  - a readable capability report
  sqlite    - a SQLite database with one table per list, for ad-hoc queries

If no output path is given, a default filename is generated. Use "-" to
write json or markdown to stdout.

Examples:
  progmem export
  progmem export markdown CAPABILITIES.md
  progmem export sqlite memory.db`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, output := "json", ""
		if len(args) >= 1 {
			format = args[0]
		}
		if len(args) >= 2 {
			output = args[1]
		}
		return runExport(format, output)
	},
}

// runExport exports the document in the given format
func runExport(formatName, output string) error {
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	_, doc, err := loadDocument()
	if err != nil {
		return err
	}

	if output == "" {
		output = fmt.Sprintf("project-memory-export-%s.%s", time.Now().Format("2006-01-02"), format.Extension())
	}

	if format == export.FormatSQLite {
		if output == "-" {
			return fmt.Errorf("sqlite export needs an output file")
		}
		written, err := export.WriteSQLite(output, doc)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("✅ Exported %d capabilities to %s\n", written, output)
		return nil
	}

	var buf bytes.Buffer
	switch format {
	case export.FormatMarkdown:
		err = export.WriteMarkdown(&buf, doc)
	default:
		err = export.WriteJSON(&buf, doc)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if output == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("✅ Exported %d capabilities to %s\n", len(doc.Capabilities), output)
	return nil
}
