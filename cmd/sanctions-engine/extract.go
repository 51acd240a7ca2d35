package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sanctions-engine/internal/extract"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract sanctions records from converted documents",
	Long: `Extract sends each converted Markdown document to Gemini and parses the
returned CSV into records in the canonical 17-column layout. Results are
written to data/extracted/ and indexed into the record store. Documents
whose Markdown has not changed since the last extraction are skipped.

Requires a Gemini API key (GEMINI_API_KEY or .secrets/gemini-api-key).`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		viper.Set("extraction.model", v)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.backend == nil {
		return types.ErrGeminiNotConfigured
	}

	summary, err := extract.ExtractAll(cmd.Context(), a.backend, a.cfg.Extraction, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nExtraction summary: %d extracted (%d records), %d skipped, %d failed\n",
		summary.Extracted, summary.Records, summary.Skipped, summary.Failed)

	ingested, err := a.store.Ingest(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Index summary: %d indexed, %d updated, %d skipped, %d failed\n",
		ingested.Indexed, ingested.Updated, ingested.Skipped, ingested.Failed)

	if failed := summary.Failed + ingested.Failed; failed > 0 {
		return fmt.Errorf("%d document(s) failed", failed)
	}
	return nil
}

func init() {
	extractCmd.Flags().String("model", "", "Gemini model identifier (default gemini-2.5-pro)")

	rootCmd.AddCommand(extractCmd)
}
