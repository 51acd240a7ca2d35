// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sanctions-engine/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [pdfs...]",
	Short: "Run the full workflow over PDFs and the OFAC and UN lists",
	Long: `Batch runs every stage in one pass: it converts and extracts each PDF
(up to --concurrency at a time), fetches the OFAC and UN lists, merges
everything into one deduplicated set, stores the run and writes
sanctions_cleaned_<timestamp>.csv to --output.

A file that fails is reported and left out; the remaining files are still
consolidated. Without PDF arguments, --dir is scanned for *.pdf.`,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		dir, _ := cmd.Flags().GetString("dir")
		found, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
		if err != nil {
			return err
		}
		paths = found
	}

	if cmd.Flags().Changed("concurrency") {
		n, _ := cmd.Flags().GetInt("concurrency")
		viper.Set("concurrency", n)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if len(paths) > 0 && a.backend == nil {
		fmt.Fprintln(os.Stdout, "Gemini API key not configured: PDF files will be converted but not extracted")
	}

	uploads := make([]pipeline.Upload, 0, len(paths))
	for _, p := range paths {
		uploads = append(uploads, pipeline.FileUpload(p))
	}

	skipOFAC, _ := cmd.Flags().GetBool("skip-ofac")
	skipUN, _ := cmd.Flags().GetBool("skip-un")
	fmt.Fprintf(os.Stdout, "Processing %d PDF file(s)", len(uploads))
	if !skipOFAC {
		fmt.Fprint(os.Stdout, " + OFAC")
	}
	if !skipUN {
		fmt.Fprint(os.Stdout, " + UN")
	}
	fmt.Fprintln(os.Stdout)

	res, err := a.svc.RunBatch(cmd.Context(), uploads, pipeline.BatchOptions{
		IncludeOFAC: !skipOFAC,
		IncludeUN:   !skipUN,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nBatch %s finished in %s\n\n", res.Run.ID, res.Run.FinishedAt.Sub(res.Run.StartedAt).Round(time.Millisecond))
	printSummary(os.Stdout, res.Run.Summary, res.Run.Failures)
	if len(res.Records) == 0 {
		return fmt.Errorf("batch produced no records")
	}
	return writeOutputs(cmd, res.Records, res.Run.Summary)
}

func init() {
	batchCmd.Flags().String("dir", ".", "directory scanned for PDFs when none are given")
	batchCmd.Flags().String("output", ".", "directory for the output files")
	batchCmd.Flags().Bool("xlsx", false, "also write an Excel report")
	batchCmd.Flags().Bool("skip-ofac", false, "do not fetch the OFAC list")
	batchCmd.Flags().Bool("skip-un", false, "do not fetch the UN list")
	batchCmd.Flags().Int("concurrency", 0, "PDF files processed at once (default 3)")

	rootCmd.AddCommand(batchCmd)
}
