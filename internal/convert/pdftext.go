// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFTextConverter extracts the text layer of a PDF in-process. It needs no
// container runtime but loses table layout. Each page is preceded by a
// <!-- page N --> marker.
type PDFTextConverter struct{}

// Convert returns the plain text of every page in pdfPath.
func (PDFTextConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading page %d of %s: %w", i, pdfPath, err)
		}
		fmt.Fprintf(&b, "<!-- page %d -->\n%s\n\n", i, strings.TrimSpace(text))
	}

	out := b.String()
	if strings.TrimSpace(stripPageMarkers(out)) == "" {
		return "", fmt.Errorf("no text layer in %s (scanned PDF?)", pdfPath)
	}
	return out, nil
}

func stripPageMarkers(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "<!-- page ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
