package out

import (
	"context"

	"triage_server/core/domain"
)

// ResultCache stores classification results by message key.
// Implementations must be safe for concurrent use and bounded in size.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.ClassificationResult, bool)
	Set(ctx context.Context, key string, result *domain.ClassificationResult)
}
