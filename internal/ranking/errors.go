package ranking

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spigell/candidate-matcher/internal/documents"
)

// ValidationError reports an empty job description, an empty document set,
// an empty document or non-finite weights.
type ValidationError = documents.ValidationError

// ErrBatchCancelled is returned when the context of a ranking run is done
// before the run completes. No partial result accompanies it.
var ErrBatchCancelled = errors.New("ranking batch cancelled")

// DimensionMismatchError means the embedder returned vectors of different
// lengths within one run.
type DimensionMismatchError struct {
	DocumentID string
	Expected   int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding of %s has %d dimensions, job description has %d", e.DocumentID, e.Got, e.Expected)
}

// EmbeddingFailure records a document that was left out of the ranking because it could not be embedded.
type EmbeddingFailure struct {
	DocumentID string
	Err        error
}

func (f EmbeddingFailure) Error() string {
	return fmt.Sprintf("embed %s: %v", f.DocumentID, f.Err)
}

func (f EmbeddingFailure) Unwrap() error {
	return f.Err
}

func (f EmbeddingFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		DocumentID string `json:"document_id"`
		Error      string `json:"error"`
	}{f.DocumentID, msg})
}
