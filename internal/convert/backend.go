// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"

	"github.com/pdiddy/sanctions-engine/internal/container"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// New builds the converter selected by cfg.Backend. The markitdown backend
// requires a working docker or podman installation.
func New(cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case types.BackendMarkitdown, "":
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(rt, cfg.Image)
	case types.BackendPDFText:
		return PDFTextConverter{}, nil
	default:
		return nil, fmt.Errorf("unknown conversion backend %q: use markitdown or pdftext", cfg.Backend)
	}
}
