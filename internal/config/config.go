// Package config provides configuration loading and structs for the server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	AI        AIConfig        `yaml:"ai"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Quality   QualityConfig   `yaml:"quality"`
}

// WatchConfig holds directory watch settings for the local-capture ingestion path.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the in-process indices.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingBackend selects which backend the embedding service dials.
type EmbeddingBackend string

const (
	EmbeddingBackendRemote EmbeddingBackend = "remote" // hosted provider embeddings endpoint
	EmbeddingBackendLocal  EmbeddingBackend = "local"  // local HTTP POST /embed service
	EmbeddingBackendONNX   EmbeddingBackend = "onnx"   // in-process ONNX runtime (CGO)
	EmbeddingBackendMock   EmbeddingBackend = "mock"   // deterministic hash embedder, for tests/offline
)

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Backend         EmbeddingBackend `yaml:"backend"`
	APIKey          string           `yaml:"api_key"`
	BaseURL         string           `yaml:"base_url"` // remote backend only; defaults to OpenAI's endpoint
	Model           string           `yaml:"model"`
	LocalEndpoint   string           `yaml:"local_endpoint"`
	ModelPath       string           `yaml:"model_path"` // ONNX model file
	Dimensions      int              `yaml:"dimensions"`
	TokenChunkSize  int              `yaml:"token_chunk_size"`
	TokenOverlap    int              `yaml:"token_overlap"`
	CharChunkSize   int              `yaml:"char_chunk_size"`
	CharOverlap     int              `yaml:"char_overlap"`
	CacheSize       int              `yaml:"cache_size"`
}

// SearchConfig holds search, judge, and reranker settings.
type SearchConfig struct {
	DefaultLimit   int `yaml:"default_limit"`
	MaxLimit       int `yaml:"max_limit"`

	KeywordTitleBoost  float64 `yaml:"keyword_title_boost"`
	KeywordPhraseBoost float64 `yaml:"keyword_phrase_boost"`

	RRFK int `yaml:"rrf_k"`

	AdaptiveEnabled         bool    `yaml:"adaptive_enabled"`
	JudgeMinResults         int     `yaml:"judge_min_results"`
	JudgeMinAvgScore        float64 `yaml:"judge_min_avg_score"`
	JudgeMinAvgScoreKorean  float64 `yaml:"judge_min_avg_score_ko"`
	JudgeMinTermCoverage    float64 `yaml:"judge_min_term_coverage"`
	JudgeConfidenceThreshold float64 `yaml:"judge_confidence_threshold"`

	RerankerAPIKey string `yaml:"reranker_api_key"`
	RerankerModel  string `yaml:"reranker_model"`
}

// AIConfig holds AI provider credentials and base URLs.
type AIConfig struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key"`
	ZhipuAPIKey     string `yaml:"zhipu_api_key"`
	ZhipuBaseURL    string `yaml:"zhipu_base_url"`
	AnthropicMaxTokensDefault int `yaml:"anthropic_max_tokens_default"`
}

// OAuthConfig holds per-provider OAuth client configuration and the token encryption key.
type OAuthConfig struct {
	TokenEncryptionKey string                    `yaml:"token_encryption_key"` // 32 bytes, base64; empty = plaintext dev mode
	Providers          map[string]OAuthProvider  `yaml:"providers"`
}

// OAuthProvider is one OAuth-capable provider's endpoint configuration.
type OAuthProvider struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes"`
	DeviceAuthURL string  `yaml:"device_auth_url"`
}

// QualityConfig holds checklist and stream-monitor thresholds.
type QualityConfig struct {
	MinPassRatio       map[string]float64 `yaml:"min_pass_ratio"`
	StreamCheckInterval int               `yaml:"stream_check_interval"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
