package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sanctions-engine/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdfs...]",
	Short: "Convert sanctions PDFs to Markdown",
	Long: `Convert copies PDF files into the data directory and converts them to
Markdown with the configured backend (markitdown in a container, or the
built-in pdftext reader). Files already converted are skipped.

With --batch every PDF in --dir is converted.`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		viper.Set("conversion.backend", v)
	}
	paths := args
	if batch, _ := cmd.Flags().GetBool("batch"); batch {
		dir, _ := cmd.Flags().GetString("dir")
		found, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files given: pass file paths or use --batch")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	docs := convert.ImportPaths(a.cfg.DataDir, paths, os.Stdout)
	result := convert.ConvertBatch(cmd.Context(), a.conv, docs, a.cfg.DataDir, os.Stdout)
	for _, d := range docs {
		if err := a.store.SaveDocument(cmd.Context(), d); err != nil {
			return err
		}
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

func init() {
	convertCmd.Flags().String("backend", "", "conversion backend: markitdown or pdftext")
	convertCmd.Flags().Bool("batch", false, "convert every PDF in --dir")
	convertCmd.Flags().String("dir", ".", "directory scanned by --batch")

	rootCmd.AddCommand(convertCmd)
}
