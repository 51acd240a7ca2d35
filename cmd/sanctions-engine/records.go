// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Query and export the record store (ingest, retrieve, export)",
	Long: `Records manages the local SQLite store holding the records extracted
from documents, the latest OFAC and UN sets, and every batch run. Use
subcommands to index extraction results, query records, or export them.`,
}

// --- ingest subcommand ---

var recordsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index extraction results into the record store",
	Long: `Ingest reads the extraction YAML files in data/extracted/ and stores
their records. Documents whose results have not changed since the last
run are skipped.`,
	RunE: runRecordsIngest,
}

func runRecordsIngest(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.Ingest(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- retrieve subcommand ---

var recordsRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Search records by name or alias with optional filters",
	Long: `Retrieve searches record names and aliases with FTS5 full-text search,
structured filters (type, watchlist, source), or a combination of both.
Each query word matches as a prefix.`,
	RunE: runRecordsRetrieve,
}

func runRecordsRetrieve(cmd *cobra.Command, args []string) error {
	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --type, --watchlist, or --source")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.Retrieve(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRetrieveOutput(results, jsonOutput)
}

func formatRetrieveOutput(results []store.StoredRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-40s  %-10s  %-12s  %-12s  %s\n",
		"Rank", "Name", "Type", "Country", "Watchlist", "Source")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%-4d  %-40s  %-10s  %-12s  %-12s  %s\n",
			i+1, truncate(r.Name, 40), r.Type, truncate(r.Country, 12), truncate(r.Watchlist, 12), r.Source)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

// --- export subcommand ---

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records to YAML or JSON",
	Long: `Export writes every stored record (or a filtered subset) to
data/index/export.yaml or export.json. Supports the same filter flags as
retrieve for partial exports.`,
	RunE: runRecordsExport,
}

func runRecordsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	path, err := st.WriteExport(cmd.Context(), store.ExportFormat(format), queryOptsFromFlags(cmd, args))
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

// openStore opens the record store without wiring the rest of the pipeline.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewStore(cfg.Store)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) store.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	recordType, _ := cmd.Flags().GetString("type")
	watchlist, _ := cmd.Flags().GetString("watchlist")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	return store.QueryOptions{
		Query:      queryText,
		Type:       types.RecordType(recordType),
		Watchlist:  watchlist,
		Source:     source,
		MaxResults: limit,
	}
}

func addFilterFlags(cmd *cobra.Command, limitHelp string) {
	cmd.Flags().String("query", "", "full-text search over names and aliases")
	cmd.Flags().String("type", "", "filter by record type: Individual, Entity, Vessel, ...")
	cmd.Flags().String("watchlist", "", "filter by watchlist label")
	cmd.Flags().String("source", "", "filter by source: OFAC, UN, pdf, pdf:<document>, batch:<id>")
	cmd.Flags().Int("limit", 0, limitHelp)
}

func init() {
	addFilterFlags(recordsRetrieveCmd, "maximum results (0 = use default)")
	recordsRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	addFilterFlags(recordsExportCmd, "maximum records to export (0 = all)")
	recordsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	recordsCmd.AddCommand(recordsIngestCmd)
	recordsCmd.AddCommand(recordsRetrieveCmd)
	recordsCmd.AddCommand(recordsExportCmd)

	rootCmd.AddCommand(recordsCmd)
}
