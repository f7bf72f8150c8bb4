package driving

import (
	"context"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

// IngestState identifies a phase of the ingestion pipeline.
type IngestState string

// Ingestion pipeline states. Persisting is the single commit point;
// a failure in any earlier state leaves the on-disk index untouched.
const (
	IngestIdle       IngestState = "idle"
	IngestLoading    IngestState = "loading"
	IngestChunking   IngestState = "chunking"
	IngestEmbedding  IngestState = "embedding"
	IngestPersisting IngestState = "persisting"
	IngestDone       IngestState = "done"
	IngestFailed     IngestState = "failed"
)

// Ingestor runs the ingestion pipeline: load the corpus, chunk it,
// embed the chunks, and atomically persist the vector index.
type Ingestor interface {
	// Ingest processes the PDFs under dataDir into the index.
	// It returns a report on success; on failure the previous
	// persisted index, if any, is left intact.
	Ingest(ctx context.Context, dataDir string) (*domain.IngestReport, error)

	// State returns the current pipeline state.
	State() IngestState
}
