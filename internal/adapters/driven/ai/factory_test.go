package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.EmbeddingSettings
		wantErr  string
	}{
		{
			name: "ollama",
			settings: domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "nomic-embed-text",
			},
		},
		{
			name: "openai",
			settings: domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    "text-embedding-3-small",
				APIKey:   "sk-test",
			},
		},
		{
			name: "anthropic has no embeddings",
			settings: domain.EmbeddingSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "sk-ant-test",
			},
			wantErr: "anthropic does not support embeddings",
		},
		{
			name: "openai without key is unconfigured",
			settings: domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
			},
			wantErr: "not configured",
		},
		{
			name:     "unknown provider",
			settings: domain.EmbeddingSettings{Provider: "mystery"},
			wantErr:  "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, svc)
			defer svc.Close()

			assert.Equal(t, tt.settings.Model, svc.ModelName())
			assert.Positive(t, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.LLMSettings
		wantErr  bool
	}{
		{
			name:     "ollama",
			settings: domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
		},
		{
			name: "openai",
			settings: domain.LLMSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    "gpt-4o-mini",
				APIKey:   "sk-test",
			},
		},
		{
			name: "anthropic",
			settings: domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				Model:    "claude-3-5-sonnet-latest",
				APIKey:   "sk-ant-test",
			},
		},
		{
			name:     "anthropic without key is unconfigured",
			settings: domain.LLMSettings{Provider: domain.AIProviderAnthropic},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, svc)
			defer svc.Close()

			assert.Equal(t, tt.settings.Model, svc.ModelName())
		})
	}
}
