// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/pipeline"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge stored records into one deduplicated CSV",
	Long: `Consolidate merges the records extracted from every stored document
with the stored OFAC and UN sets, normalizes countries, watchlists and
dates of birth, removes duplicates and writes
sanctions_cleaned_<timestamp>.csv to --output. With --xlsx an Excel
report with a summary sheet is written next to it.`,
	RunE: runConsolidate,
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	skipOFAC, _ := cmd.Flags().GetBool("skip-ofac")
	skipUN, _ := cmd.Flags().GetBool("skip-un")
	res, err := a.svc.ConsolidateStored(cmd.Context(), pipeline.BatchOptions{
		IncludeOFAC: !skipOFAC,
		IncludeUN:   !skipUN,
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("no records to consolidate: run extract, ofac or un first")
	}

	printSummary(os.Stdout, res.Summary, nil)
	return writeOutputs(cmd, res.Records, res.Summary)
}

// writeOutputs writes the consolidated CSV and, with --xlsx, the Excel
// report into --output.
func writeOutputs(cmd *cobra.Command, records []types.Record, summary types.Summary) error {
	dir, _ := cmd.Flags().GetString("output")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	now := time.Now()
	csvPath := filepath.Join(dir, consolidate.OutputName(now))
	if err := writeCSVFile(csvPath, records, true); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nWrote %s\n", csvPath)

	if xlsx, _ := cmd.Flags().GetBool("xlsx"); xlsx {
		xlsxPath := strings.TrimSuffix(csvPath, ".csv") + ".xlsx"
		f, err := os.Create(xlsxPath)
		if err != nil {
			return err
		}
		if err := consolidate.WriteExcel(f, records, summary); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", xlsxPath)
	}
	return nil
}

func writeCSVFile(path string, records []types.Record, withSource bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := consolidate.WriteCSV(f, records, withSource); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printSummary writes the consolidation summary and any file failures.
func printSummary(w io.Writer, s types.Summary, failures []types.FileFailure) {
	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "  %-20s %d\n", "Total records", s.TotalRecords)
	fmt.Fprintf(w, "  %-20s %d\n", "Files processed", s.FilesProcessed)
	fmt.Fprintf(w, "  %-20s %d\n", "Duplicates removed", s.DuplicatesRemoved)
	fmt.Fprintf(w, "  %-20s %d\n", "Data sources", s.DataSources)

	printCounts(w, "By source", s.RecordsBySource)
	printCounts(w, "By watchlist", s.ByWatchlist)
	printCounts(w, "By type", s.ByType)

	if len(failures) > 0 {
		fmt.Fprintf(w, "\nFailures (%d)\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(w, "  %s [%s]: %s\n", f.FileName, f.Stage, f.Error)
		}
	}
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-30s %d\n", k, counts[k])
	}
}

func init() {
	consolidateCmd.Flags().String("output", ".", "directory for the output files")
	consolidateCmd.Flags().Bool("xlsx", false, "also write an Excel report")
	consolidateCmd.Flags().Bool("skip-ofac", false, "leave the stored OFAC records out")
	consolidateCmd.Flags().Bool("skip-un", false, "leave the stored UN records out")

	rootCmd.AddCommand(consolidateCmd)
}
