// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sanctions-engine/internal/consolidate"
	"github.com/pdiddy/sanctions-engine/internal/pipeline"
)

var ofacCmd = &cobra.Command{
	Use:   "ofac",
	Short: "Fetch the latest OFAC sanctions changes",
	Long: `OFAC downloads the latest delta file from the OFAC sanctions list
service, parses the added entities into records and replaces the stored
OFAC set. Use --csv to also write the records to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(cmd, "OFAC", (*pipeline.Service).RefreshOFAC)
	},
}

var unCmd = &cobra.Command{
	Use:   "un",
	Short: "Fetch new listings from the UN Security Council consolidated list",
	Long: `UN finds the XML download link on the UN Security Council consolidated
list page, downloads the list and keeps the individuals and entities
listed within --lookback-days of the list's generation date. The result
replaces the stored UN set. Use --csv to also write the records to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("lookback-days") {
			days, _ := cmd.Flags().GetInt("lookback-days")
			viper.Set("un.lookback_days", days)
		}
		return runRefresh(cmd, "UN", (*pipeline.Service).RefreshUN)
	},
}

type refreshFunc func(*pipeline.Service, context.Context) (*pipeline.RefreshResult, error)

func runRefresh(cmd *cobra.Command, label string, refresh refreshFunc) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := refresh(a.svc, cmd.Context())
	if err != nil {
		return err
	}
	individuals, entities := consolidate.CountTypes(res.Records)
	fmt.Fprintf(os.Stdout, "%s: %d records (%d individuals, %d entities) from %s\n",
		label, len(res.Records), individuals, entities, res.Snapshot.URL)

	path, _ := cmd.Flags().GetString("csv")
	if path == "" {
		return nil
	}
	if err := writeCSVFile(path, res.Records, false); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
	return nil
}

func init() {
	ofacCmd.Flags().String("csv", "", "also write the records to this CSV file")
	unCmd.Flags().String("csv", "", "also write the records to this CSV file")
	unCmd.Flags().Int("lookback-days", 1, "days before the list generation date that still count as new")

	rootCmd.AddCommand(ofacCmd)
	rootCmd.AddCommand(unCmd)
}
