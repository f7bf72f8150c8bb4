package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Timeout bounds each embedding request.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds each generation request.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings holds text splitting configuration.
type ChunkingSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared between consecutive
	// chunks. Must be smaller than Size.
	Overlap int
}

// IsValid returns true if the overlap is smaller than the chunk size.
func (c ChunkingSettings) IsValid() bool {
	return c.Size > 0 && c.Overlap >= 0 && c.Overlap < c.Size
}

// RetrievalSettings holds query-time retrieval configuration.
type RetrievalSettings struct {
	// TopK is the number of nearest chunks supplied to the LLM.
	TopK int

	// HistoryTurns caps the rolling conversation history appended to
	// the prompt. Zero disables history.
	HistoryTurns int

	// ContextBudget is the maximum total characters of retrieved
	// context in a prompt. Lowest-ranked chunks are dropped first
	// when the budget is exceeded.
	ContextBudget int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir is the directory scanned for source PDFs.
	DataDir string

	// IndexPath is the location of the persisted vector index.
	IndexPath string

	// Recursive controls whether DataDir is walked recursively.
	Recursive bool

	// Strict aborts ingestion on the first unparsable file instead of
	// skipping it.
	Strict bool

	// Chunking holds text splitting settings.
	Chunking ChunkingSettings

	// Retrieval holds query-time settings.
	Retrieval RetrievalSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings
}

// Defaults for settings not supplied by configuration.
const (
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200
	DefaultTopK          = 4
	DefaultHistoryTurns  = 4
	DefaultContextBudget = 12000
	DefaultDataDir       = "data"
)

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users set them via
// `docchat settings` or environment variables.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		DataDir:   DefaultDataDir,
		Recursive: false,
		Strict:    false,
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalSettings{
			TopK:          DefaultTopK,
			HistoryTurns:  DefaultHistoryTurns,
			ContextBudget: DefaultContextBudget,
		},
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
