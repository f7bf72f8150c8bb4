package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docchat-cli/internal/chunker"
	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docchat-cli/internal/logger"
	"github.com/custodia-labs/docchat-cli/internal/resilience"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// Default ingestion tuning values.
const (
	// DefaultEmbedBatchSize is the number of chunks sent per embedding
	// request.
	DefaultEmbedBatchSize = 16

	// DefaultEmbedRate caps embedding requests per second to stay under
	// provider rate limits.
	DefaultEmbedRate = 4
)

// BuilderFactory creates an index builder staged for the given path,
// embedding dimension and model.
type BuilderFactory func(path string, dimensions int, model string) (driven.IndexBuilder, error)

// IngestConfig holds configuration for the ingestion pipeline.
type IngestConfig struct {
	// IndexPath is the final location of the persisted index.
	IndexPath string

	// Chunking holds the text splitting settings. Invalid settings fall
	// back to the domain defaults.
	Chunking domain.ChunkingSettings

	// BatchSize is the number of chunks per embedding request
	// (default: DefaultEmbedBatchSize).
	BatchSize int

	// EmbedRate caps embedding requests per second
	// (default: DefaultEmbedRate).
	EmbedRate float64

	// Retry configures transient-failure retries for embedding calls.
	Retry resilience.RetryOpts
}

// IngestService runs the ingestion pipeline: load, chunk, embed,
// persist. Persisting is the single commit point; a failure in any
// earlier phase leaves the previous on-disk index untouched.
type IngestService struct {
	loader     driven.CorpusLoader
	embedder   driven.EmbeddingService
	newBuilder BuilderFactory
	splitter   *chunker.Splitter
	limiter    *rate.Limiter
	cfg        IngestConfig

	mu    sync.RWMutex
	state driving.IngestState
}

// NewIngestService creates a new ingestion service.
func NewIngestService(
	loader driven.CorpusLoader,
	embedder driven.EmbeddingService,
	newBuilder BuilderFactory,
	cfg IngestConfig,
) *IngestService {
	if !cfg.Chunking.IsValid() {
		cfg.Chunking = domain.ChunkingSettings{
			Size:    domain.DefaultChunkSize,
			Overlap: domain.DefaultChunkOverlap,
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedBatchSize
	}
	if cfg.EmbedRate <= 0 {
		cfg.EmbedRate = DefaultEmbedRate
	}

	return &IngestService{
		loader:     loader,
		embedder:   embedder,
		newBuilder: newBuilder,
		splitter: chunker.New(
			chunker.WithChunkSize(cfg.Chunking.Size),
			chunker.WithOverlap(cfg.Chunking.Overlap),
		),
		limiter: rate.NewLimiter(rate.Limit(cfg.EmbedRate), 1),
		cfg:     cfg,
	}
}

// State returns the current pipeline state.
func (s *IngestService) State() driving.IngestState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *IngestService) setState(state driving.IngestState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Ingest processes the PDFs under dataDir into the index.
func (s *IngestService) Ingest(ctx context.Context, dataDir string) (*domain.IngestReport, error) {
	start := time.Now()

	report, err := s.run(ctx, dataDir)
	if err != nil {
		s.setState(driving.IngestFailed)
		return nil, err
	}

	report.Duration = time.Since(start)
	s.setState(driving.IngestDone)
	return report, nil
}

func (s *IngestService) run(ctx context.Context, dataDir string) (*domain.IngestReport, error) {
	runID := uuid.NewString()
	logger.Section("Ingestion")
	logger.Debug("Run %s: ingesting %s", runID, dataDir)

	s.setState(driving.IngestLoading)
	pages, loadReport, err := s.loader.Load(ctx, dataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %d files (%d skipped), %d pages",
		loadReport.FilesLoaded, loadReport.FilesSkipped, len(pages))
	for _, path := range loadReport.Skipped {
		logger.Warn("Skipped unparsable file: %s", path)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no extractable documents under %q", domain.ErrLoad, dataDir)
	}

	documents := stampDocuments(loadReport.Documents)

	s.setState(driving.IngestChunking)
	chunks := s.chunkPages(pages)
	logger.Info("Split %d pages into %d chunks", len(pages), len(chunks))

	s.setState(driving.IngestEmbedding)
	entries, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	s.setState(driving.IngestPersisting)
	if err := s.persist(ctx, entries); err != nil {
		return nil, err
	}
	logger.Info("Persisted %d entries to %s", len(entries), s.cfg.IndexPath)

	return &domain.IngestReport{
		RunID:        runID,
		Documents:    documents,
		FilesLoaded:  loadReport.FilesLoaded,
		FilesSkipped: loadReport.FilesSkipped,
		Pages:        len(pages),
		Chunks:       len(chunks),
	}, nil
}

// stampDocuments assigns each loaded document an identity for this run.
func stampDocuments(documents []domain.Document) []domain.Document {
	now := time.Now()
	stamped := make([]domain.Document, len(documents))
	for i, doc := range documents {
		doc.ID = uuid.NewString()
		doc.IngestedAt = now
		stamped[i] = doc
	}
	return stamped
}

// chunkPages splits page text into chunks with stable IDs.
func (s *IngestService) chunkPages(pages []domain.PageText) []domain.Chunk {
	var chunks []domain.Chunk
	for _, page := range pages {
		for position, piece := range s.splitter.Split(page.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:           domain.ChunkID(page.Path, page.Page, position),
				DocumentPath: page.Path,
				Page:         page.Page,
				Position:     position,
				Content:      piece.Text,
			})
		}
	}
	return chunks
}

// embedChunks embeds chunks in rate-limited batches with retries.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.IndexEntry, error) {
	entries := make([]domain.IndexEntry, 0, len(chunks))

	for offset := 0; offset < len(chunks); offset += s.cfg.BatchSize {
		end := offset + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var embeddings [][]float32
		err := resilience.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
			var embedErr error
			embeddings, embedErr = s.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", offset, end-1, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d chunks",
				domain.ErrEmbedding, len(embeddings), len(batch))
		}

		for i, chunk := range batch {
			entries = append(entries, domain.IndexEntry{
				Chunk:     chunk,
				Embedding: embeddings[i],
			})
		}
		logger.Debug("Embedded chunks %d-%d of %d", offset, end-1, len(chunks))
	}

	return entries, nil
}

// persist stages all entries and commits the index atomically.
func (s *IngestService) persist(ctx context.Context, entries []domain.IndexEntry) error {
	builder, err := s.newBuilder(s.cfg.IndexPath, s.embedder.Dimensions(), s.embedder.ModelName())
	if err != nil {
		return err
	}
	defer builder.Abort()

	if err := builder.Add(ctx, entries); err != nil {
		return err
	}
	return builder.Commit()
}
