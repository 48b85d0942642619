package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/CanopyHQ/progmem/internal/git"
	"github.com/CanopyHQ/progmem/internal/memory"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose problems in the project memory",
	Long: `Diagnose problems in the project memory and optionally fix them.

A corrupted file is reported but left alone unless --fix is given, in which
case it is backed up and reset. Capabilities are never removed by --fix.

Examples:
  progmem doctor        # check for issues
  progmem doctor --fix  # check and auto-fix issues`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")
		return runDoctor(fix)
	},
}

func init() {
	doctorCmd.Flags().Bool("fix", false, "Attempt to automatically fix issues")
}

// runDoctor diagnoses the memory file
func runDoctor(fix bool) error {
	fmt.Println("🔍 Project Memory Doctor")
	if fix {
		fmt.Println("🛠️  Auto-fix enabled")
	}
	fmt.Println()

	issues := 0
	warnings := 0
	fixed := 0

	fmt.Printf("✓ Checking project root... ✅ OK (%s)\n", cfg.ProjectRoot)

	fmt.Print("✓ Checking git repository... ")
	if head, err := git.HeadCommit(cfg.ProjectRoot); err != nil {
		fmt.Println("⚠️  WARNING")
		fmt.Println("  No HEAD commit found; sync ranges cannot be resolved")
		warnings++
	} else {
		fmt.Printf("✅ OK (HEAD %s)\n", head)
	}

	store := memory.NewStore(cfg.MemoryPath)
	var doc *memory.Document

	fmt.Print("✓ Checking memory file... ")
	data, err := os.ReadFile(store.Path())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Println("⚠️  WARNING")
		fmt.Printf("  Memory file does not exist: %s\n", store.Path())
		fmt.Println("  It will be created on first write")
		warnings++
	case err != nil:
		fmt.Println("❌ FAILED")
		fmt.Printf("  Issue: Cannot read memory file: %v\n", err)
		issues++
	default:
		doc, err = memory.ParseDocument(data)
		if err == nil {
			fmt.Printf("✅ OK (%s)\n", store.Path())
			break
		}
		if !fix {
			fmt.Println("❌ FAILED")
			fmt.Printf("  Issue: %v\n", err)
			fmt.Println("  Fix: Run 'progmem doctor --fix' to back it up and reset it")
			issues++
			break
		}
		fmt.Print("🛠️  Resetting... ")
		recovered, recovery, err := store.Load()
		if err != nil {
			fmt.Printf("❌ FAILED: %v\n", err)
			issues++
			break
		}
		doc = recovered
		if recovery != nil && recovery.BackupPath != "" {
			fmt.Printf("✅ FIXED (backup: %s)\n", recovery.BackupPath)
		} else {
			fmt.Println("✅ FIXED")
		}
		fixed++
	}

	if doc != nil {
		fmt.Print("✓ Checking document consistency... ")
		findings := doc.Check()
		if len(findings) == 0 {
			fmt.Printf("✅ OK (%d capabilities)\n", len(doc.Capabilities))
		} else {
			fmt.Println()
			fixable := 0
			for _, f := range findings {
				icon := "⚠️ "
				if f.Severity == memory.SeverityError {
					icon = "❌"
				}
				fmt.Printf("  %s %s\n", icon, f.Message)
				switch {
				case fix && f.Fixable:
					fixable++
				case f.Severity == memory.SeverityError:
					issues++
				default:
					warnings++
				}
			}
			if fixable > 0 {
				fmt.Print("🛠️  Repairing... ")
				doc.Repair()
				if err := store.Save(doc); err != nil {
					fmt.Printf("❌ FAILED: %v\n", err)
					issues += fixable
				} else {
					fmt.Println("✅ FIXED")
					fixed += fixable
				}
			}
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if issues == 0 && warnings == 0 {
		if fixed > 0 {
			fmt.Printf("🛠️  Auto-fixed %d issue(s)\n", fixed)
		}
		fmt.Println("✅ All checks passed! Project memory is healthy.")
	} else {
		if fixed > 0 {
			fmt.Printf("🛠️  Auto-fixed %d issue(s)\n", fixed)
		}
		if issues > 0 {
			fmt.Printf("❌ Found %d critical issue(s)\n", issues)
		}
		if warnings > 0 {
			fmt.Printf("⚠️  Found %d warning(s)\n", warnings)
		}
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if issues > 0 {
		return fmt.Errorf("found %d critical issue(s)", issues)
	}
	return nil
}
