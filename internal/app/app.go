// Package app assembles the application: it resolves settings from the
// config file and environment, and constructs the services the CLI
// commands run on.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/docchat-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/docchat-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat-cli/internal/adapters/driven/index/sqlite"
	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docchat-cli/internal/core/services"
	pdfloader "github.com/custodia-labs/docchat-cli/internal/loaders/pdf"
	"github.com/custodia-labs/docchat-cli/internal/resilience"
)

// Config keys in ~/.docchat/config.toml.
const (
	keyDataDir       = "data_dir"
	keyIndexPath     = "index_path"
	keyRecursive     = "ingest.recursive"
	keyStrict        = "ingest.strict"
	keyChunkSize     = "chunking.size"
	keyChunkOverlap  = "chunking.overlap"
	keyTopK          = "retrieval.top_k"
	keyHistoryTurns  = "retrieval.history_turns"
	keyContextBudget = "retrieval.context_budget"

	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
)

// Environment variables that override file configuration.
const (
	envEmbedProvider = "DOCCHAT_EMBEDDING_PROVIDER"
	envLLMProvider   = "DOCCHAT_LLM_PROVIDER"
	envOpenAIKey     = "OPENAI_API_KEY"
	envAnthropicKey  = "ANTHROPIC_API_KEY"
)

// App is the composition root. It owns the resolved settings and
// builds the ingestion and chat pipelines on demand.
type App struct {
	Settings domain.AppSettings
	Config   driven.ConfigStore
}

// Overrides are per-invocation settings supplied by command flags.
// Zero values leave the configured setting unchanged.
type Overrides struct {
	DataDir      string
	IndexPath    string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	Recursive    *bool
	Strict       *bool
}

// New loads configuration and resolves settings. configDir empty means
// the default ~/.docchat.
func New(configDir string) (*App, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Settings: domain.DefaultAppSettings(),
		Config:   store,
	}
	a.applyConfig()
	a.applyEnv()

	if a.Settings.IndexPath == "" {
		a.Settings.IndexPath = filepath.Join(filepath.Dir(store.Path()), "index.db")
	}

	return a, nil
}

// applyConfig overlays file configuration on the defaults.
func (a *App) applyConfig() {
	s := &a.Settings
	cfg := a.Config

	if v := cfg.GetString(keyDataDir); v != "" {
		s.DataDir = v
	}
	if v := cfg.GetString(keyIndexPath); v != "" {
		s.IndexPath = v
	}
	if _, ok := cfg.Get(keyRecursive); ok {
		s.Recursive = cfg.GetBool(keyRecursive)
	}
	if _, ok := cfg.Get(keyStrict); ok {
		s.Strict = cfg.GetBool(keyStrict)
	}
	if v := cfg.GetInt(keyChunkSize); v > 0 {
		s.Chunking.Size = v
	}
	if v := cfg.GetInt(keyChunkOverlap); v > 0 {
		s.Chunking.Overlap = v
	}
	if v := cfg.GetInt(keyTopK); v > 0 {
		s.Retrieval.TopK = v
	}
	if v := cfg.GetInt(keyHistoryTurns); v > 0 {
		s.Retrieval.HistoryTurns = v
	}
	if v := cfg.GetInt(keyContextBudget); v > 0 {
		s.Retrieval.ContextBudget = v
	}

	s.Embedding.Provider = domain.AIProvider(cfg.GetString(keyEmbedProvider))
	s.Embedding.Model = cfg.GetString(keyEmbedModel)
	s.Embedding.BaseURL = cfg.GetString(keyEmbedBaseURL)
	s.Embedding.APIKey = cfg.GetString(keyEmbedAPIKey)

	s.LLM.Provider = domain.AIProvider(cfg.GetString(keyLLMProvider))
	s.LLM.Model = cfg.GetString(keyLLMModel)
	s.LLM.BaseURL = cfg.GetString(keyLLMBaseURL)
	s.LLM.APIKey = cfg.GetString(keyLLMAPIKey)
}

// applyEnv overlays environment variables on the file configuration.
// API keys from the environment only fill providers that need them.
func (a *App) applyEnv() {
	s := &a.Settings

	if v := os.Getenv(envEmbedProvider); v != "" {
		s.Embedding.Provider = domain.AIProvider(v)
	}
	if v := os.Getenv(envLLMProvider); v != "" {
		s.LLM.Provider = domain.AIProvider(v)
	}

	if key := os.Getenv(envOpenAIKey); key != "" {
		if s.Embedding.Provider == domain.AIProviderOpenAI && s.Embedding.APIKey == "" {
			s.Embedding.APIKey = key
		}
		if s.LLM.Provider == domain.AIProviderOpenAI && s.LLM.APIKey == "" {
			s.LLM.APIKey = key
		}
	}
	if key := os.Getenv(envAnthropicKey); key != "" {
		if s.LLM.Provider == domain.AIProviderAnthropic && s.LLM.APIKey == "" {
			s.LLM.APIKey = key
		}
	}

	// Unset providers default to local models when nothing is configured.
	if s.Embedding.Provider == "" {
		s.Embedding.Provider = domain.AIProviderOllama
	}
	if s.LLM.Provider == "" {
		s.LLM.Provider = domain.AIProviderOllama
	}
	if s.Embedding.Model == "" {
		s.Embedding.Model = domain.DefaultEmbeddingModels()[s.Embedding.Provider]
	}
	if s.LLM.Model == "" {
		s.LLM.Model = domain.DefaultLLMModels()[s.LLM.Provider]
	}
}

// apply merges command-line overrides into a copy of the settings.
func (a *App) apply(ov Overrides) domain.AppSettings {
	s := a.Settings
	if ov.DataDir != "" {
		s.DataDir = ov.DataDir
	}
	if ov.IndexPath != "" {
		s.IndexPath = ov.IndexPath
	}
	if ov.ChunkSize > 0 {
		s.Chunking.Size = ov.ChunkSize
	}
	if ov.ChunkOverlap > 0 {
		s.Chunking.Overlap = ov.ChunkOverlap
	}
	if ov.TopK > 0 {
		s.Retrieval.TopK = ov.TopK
	}
	if ov.Recursive != nil {
		s.Recursive = *ov.Recursive
	}
	if ov.Strict != nil {
		s.Strict = *ov.Strict
	}
	return s
}

// NewIngestor builds the ingestion pipeline. The returned cleanup
// function releases the embedding service.
func (a *App) NewIngestor(ctx context.Context, ov Overrides) (driving.Ingestor, func(), error) {
	s := a.apply(ov)

	embedder, err := ai.CreateAndValidateEmbeddingService(ctx, s.Embedding)
	if err != nil {
		return nil, nil, err
	}

	loader := pdfloader.New(
		pdfloader.WithRecursive(s.Recursive),
		pdfloader.WithStrict(s.Strict),
	)

	builders := func(path string, dimensions int, model string) (driven.IndexBuilder, error) {
		return sqlite.NewBuilder(path, dimensions, model)
	}

	ingestor := services.NewIngestService(loader, embedder, builders, services.IngestConfig{
		IndexPath: s.IndexPath,
		Chunking:  s.Chunking,
		Retry:     resilience.DefaultRetryOpts,
	})

	return ingestor, func() { embedder.Close() }, nil
}

// NewAnswerer builds the query pipeline over the persisted index. The
// returned cleanup function closes the index and both AI services.
func (a *App) NewAnswerer(ctx context.Context, ov Overrides) (driving.Answerer, func(), error) {
	s := a.apply(ov)

	index, err := sqlite.Open(s.IndexPath)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := ai.CreateAndValidateEmbeddingService(ctx, s.Embedding)
	if err != nil {
		index.Close()
		return nil, nil, err
	}
	if err := verifyIndexModel(index, embedder); err != nil {
		index.Close()
		embedder.Close()
		return nil, nil, err
	}

	llm, err := ai.CreateAndValidateLLMService(ctx, s.LLM)
	if err != nil {
		index.Close()
		embedder.Close()
		return nil, nil, err
	}

	answerer := services.NewChatService(embedder, index, llm, services.ChatConfig{
		Retrieval: s.Retrieval,
		Retry:     resilience.DefaultRetryOpts,
	})

	cleanup := func() {
		llm.Close()
		embedder.Close()
		index.Close()
	}
	return answerer, cleanup, nil
}

// verifyIndexModel rejects querying an index with embeddings from a
// different model or dimension than it was built with.
func verifyIndexModel(index driven.VectorIndex, embedder driven.EmbeddingService) error {
	if index.ModelName() != embedder.ModelName() || index.Dimensions() != embedder.Dimensions() {
		return fmt.Errorf("%w: index was built with %s (%d dims) but the configured embedding model is %s (%d dims); re-run 'docchat ingest'",
			domain.ErrStorage,
			index.ModelName(), index.Dimensions(),
			embedder.ModelName(), embedder.Dimensions())
	}
	return nil
}

// OpenIndex opens the persisted index read-only for inspection.
func (a *App) OpenIndex(ov Overrides) (driven.VectorIndex, error) {
	s := a.apply(ov)
	return sqlite.Open(s.IndexPath)
}

// IndexStatus describes the persisted index for the status command.
type IndexStatus struct {
	Path       string
	Entries    int
	Model      string
	Dimensions int
	ModifiedAt time.Time
}

// Status inspects the persisted index. A missing index returns an
// error wrapping domain.ErrStorage.
func (a *App) Status(ctx context.Context, ov Overrides) (*IndexStatus, error) {
	s := a.apply(ov)

	index, err := sqlite.Open(s.IndexPath)
	if err != nil {
		return nil, err
	}
	defer index.Close()

	count, err := index.Count(ctx)
	if err != nil {
		return nil, err
	}

	status := &IndexStatus{
		Path:       s.IndexPath,
		Entries:    count,
		Model:      index.ModelName(),
		Dimensions: index.Dimensions(),
	}
	if info, err := os.Stat(s.IndexPath); err == nil {
		status.ModifiedAt = info.ModTime()
	}
	return status, nil
}
