package adapter

import "context"

// ExtractionStatus is the outcome reported by the invoice extraction pipeline.
type ExtractionStatus string

const (
	ExtractionOK          ExtractionStatus = "OK"
	ExtractionAutoFixed   ExtractionStatus = "AUTO_FIXED"
	ExtractionNeedsReview ExtractionStatus = "NEEDS_REVIEW"
	ExtractionFailed      ExtractionStatus = "FAILED"
)

// ExtractionResult carries the pipeline outcome for one input file.
type ExtractionResult struct {
	Status     ExtractionStatus
	OutputPath string
	Metadata   map[string]interface{}
}

// ExtractionPipeline turns an uploaded file into structured rows. The
// implementation (OCR, parsing, correction learning) lives outside this
// module; workers only consume this boundary.
type ExtractionPipeline interface {
	Process(ctx context.Context, inputPath, tenantID string) (*ExtractionResult, error)
}
