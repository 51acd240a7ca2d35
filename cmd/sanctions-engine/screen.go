// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen extracted records against the OFAC and UN lists",
	Long: `Screen compares every record extracted from stored documents with the
stored OFAC and UN records. Names and aliases are normalized (case,
diacritics, punctuation, word order) and scored with Jaro-Winkler
similarity; pairs at or above the screening threshold are reported.`,
	RunE: runScreen,
}

func runScreen(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	matches, err := a.svc.ScreenStored(cmd.Context())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatMatches(matches, jsonOutput)
}

func formatMatches(matches []types.Match, jsonOutput bool) error {
	if jsonOutput {
		if matches == nil {
			matches = []types.Match{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Println("No matches found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-35s  %-35s  %-12s  %6s  %s\n",
		"Extracted", "Listed", "Watchlist", "Score", "Country")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 105))
	for _, m := range matches {
		country := ""
		if m.CountryMatch {
			country = "match"
		}
		fmt.Fprintf(os.Stdout, "%-35s  %-35s  %-12s  %5.1f%%  %s\n",
			truncate(m.Subject.Name, 35), truncate(m.Listed.Name, 35),
			truncate(m.Listed.Watchlist, 12), m.Score*100, country)
	}
	fmt.Fprintf(os.Stdout, "\n%d matches\n", len(matches))
	return nil
}

func init() {
	screenCmd.Flags().Bool("json", false, "output matches as JSON")

	rootCmd.AddCommand(screenCmd)
}
