package extraction

import (
	"context"
	"path/filepath"
	"strings"

	"invoice-ocr-platform/internal/domain/ports/adapter"
)

var _ adapter.ExtractionPipeline = (*LocalPipeline)(nil)

// LocalPipeline is a stand-in for the real extraction service. It derives the
// output location from the input path and reports OK for every supported file
// type. Useful for development and tests; the production deployment swaps in
// the OCR-backed implementation.
type LocalPipeline struct {
	outputDir string
}

func NewLocalPipeline(outputDir string) *LocalPipeline {
	if outputDir == "" {
		outputDir = "out"
	}
	return &LocalPipeline{outputDir: outputDir}
}

func (p *LocalPipeline) Process(_ context.Context, inputPath, tenantID string) (*adapter.ExtractionResult, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))
	switch ext {
	case ".pdf", ".png", ".jpg", ".jpeg", ".tiff":
	default:
		return &adapter.ExtractionResult{Status: adapter.ExtractionFailed}, nil
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), ext)
	out := filepath.Join(p.outputDir, tenantID, base+".csv")
	return &adapter.ExtractionResult{
		Status:     adapter.ExtractionOK,
		OutputPath: out,
		Metadata:   map[string]interface{}{"source": inputPath},
	}, nil
}
