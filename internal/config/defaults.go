package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/labnoted/data/db/notes.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/labnoted/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/labnoted/data/indices/vector"
	}

	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = EmbeddingBackendMock
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/labnoted/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.TokenChunkSize == 0 {
		cfg.Embedding.TokenChunkSize = 500
	}
	if cfg.Embedding.TokenOverlap == 0 {
		cfg.Embedding.TokenOverlap = 50
	}
	if cfg.Embedding.CharChunkSize == 0 {
		cfg.Embedding.CharChunkSize = 2000
	}
	if cfg.Embedding.CharOverlap == 0 {
		cfg.Embedding.CharOverlap = 200
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.KeywordTitleBoost == 0 {
		cfg.Search.KeywordTitleBoost = 10.0
	}
	if cfg.Search.KeywordPhraseBoost == 0 {
		cfg.Search.KeywordPhraseBoost = 2.0
	}
	if cfg.Search.RRFK == 0 {
		cfg.Search.RRFK = 60
	}
	if !cfg.Search.AdaptiveEnabled {
		cfg.Search.AdaptiveEnabled = true
	}
	if cfg.Search.JudgeMinResults == 0 {
		cfg.Search.JudgeMinResults = 3
	}
	if cfg.Search.JudgeMinAvgScore == 0 {
		cfg.Search.JudgeMinAvgScore = 0.05
	}
	if cfg.Search.JudgeMinAvgScoreKorean == 0 {
		cfg.Search.JudgeMinAvgScoreKorean = 0.05
	}
	if cfg.Search.JudgeMinTermCoverage == 0 {
		cfg.Search.JudgeMinTermCoverage = 0.5
	}
	if cfg.Search.JudgeConfidenceThreshold == 0 {
		cfg.Search.JudgeConfidenceThreshold = 0.7
	}
	if cfg.Search.RerankerModel == "" {
		cfg.Search.RerankerModel = "rerank-english-v3.0"
	}

	if cfg.AI.ZhipuBaseURL == "" {
		cfg.AI.ZhipuBaseURL = "https://api.z.ai/api/coding/paas/v4"
	}
	if cfg.AI.AnthropicMaxTokensDefault == 0 {
		cfg.AI.AnthropicMaxTokensDefault = 4096
	}

	if cfg.Quality.StreamCheckInterval == 0 {
		cfg.Quality.StreamCheckInterval = 300
	}
	if cfg.Quality.MinPassRatio == nil {
		cfg.Quality.MinPassRatio = map[string]float64{
			"insight":    0.75,
			"search_qa":  0.75,
			"writing":    0.75,
			"spellcheck": 1.0,
			"template":   0.75,
		}
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
