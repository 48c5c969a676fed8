package embedding

import (
	"fmt"

	"github.com/hyperjump/labnoted/internal/config"
)

// NewFromConfig builds the configured Embedder backend.
func NewFromConfig(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Backend {
	case config.EmbeddingBackendRemote:
		return NewRemoteEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.CacheSize), nil
	case config.EmbeddingBackendLocal:
		return NewLocalEmbedder(cfg.LocalEndpoint, cfg.Dimensions, cfg.CacheSize), nil
	case config.EmbeddingBackendONNX:
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, 256, cfg.CacheSize)
	case config.EmbeddingBackendMock, "":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}
