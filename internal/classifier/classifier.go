// Package classifier defines the emotion classifier collaborator.
package classifier

import (
	"context"

	"github.com/example/emovision/internal/emotion"
)

// Options controls a single analysis invocation.
type Options struct {
	// EnforceDetection, when false, asks the classifier for a best-effort
	// reading even when no face is located instead of failing the request.
	EnforceDetection bool
}

// Classifier exposes the subset of classifier functionality the ingestion
// flow uses. The model, weights, and preprocessing live behind this
// interface; implementations require a durable byte source, hence the staged
// file path rather than in-memory bytes.
type Classifier interface {
	Analyze(ctx context.Context, imagePath string, opts Options) (emotion.Outcome, error)
}
