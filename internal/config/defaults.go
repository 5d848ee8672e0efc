package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/molegis/data/db/molegis.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/molegis/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/molegis/data/indices/vectors.bin"
	}
	if cfg.Storage.BlobCachePath == "" {
		cfg.Storage.BlobCachePath = "/usr/local/var/molegis/data/blobs"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Chunking.TargetTokens == 0 {
		cfg.Chunking.TargetTokens = 800
	}
	if cfg.Chunking.OverlapTokens == 0 {
		cfg.Chunking.OverlapTokens = 100
	}
	if cfg.Chunking.Encoding == "" {
		cfg.Chunking.Encoding = "cl100k_base"
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.Scraper.Headless == nil {
		t := true
		cfg.Scraper.Headless = &t
	}
	if cfg.Scraper.PageTimeout == 0 {
		cfg.Scraper.PageTimeout = 60 * time.Second
	}
	if cfg.Scraper.HouseBaseURL == "" {
		cfg.Scraper.HouseBaseURL = "https://house.mo.gov"
	}
	if cfg.Scraper.SenateBaseURL == "" {
		cfg.Scraper.SenateBaseURL = "https://www.senate.mo.gov"
	}
	if cfg.Scraper.Chamber == "" {
		cfg.Scraper.Chamber = ChamberHouse
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 5
	}
	if cfg.Pipeline.DownloadTimeout == 0 {
		cfg.Pipeline.DownloadTimeout = 30 * time.Second
	}
	if cfg.Pipeline.DownloadRetries == 0 {
		cfg.Pipeline.DownloadRetries = 3
	}
	if cfg.Pipeline.RetryBaseDelay == 0 {
		cfg.Pipeline.RetryBaseDelay = time.Second
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.KeywordWeight == 0 && cfg.Search.SemanticWeight == 0 {
		cfg.Search.KeywordWeight = 0.4
		cfg.Search.SemanticWeight = 0.6
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
