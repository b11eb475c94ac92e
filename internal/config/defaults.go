package config

// defaultDistanceThreshold is the cosine-distance cutoff beyond which a
// retrieved chunk is not treated as evidence.
const defaultDistanceThreshold = 1.2

// ApplyDefaults sets default values for any unset fields in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/kotae.db"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = "nomic-embed-text"
	}
	if cfg.LLM.GenerateModel == "" {
		cfg.LLM.GenerateModel = "llama3"
	}
	if cfg.LLM.Dimensions == 0 {
		cfg.LLM.Dimensions = 384
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.DistanceThreshold == nil {
		th := defaultDistanceThreshold
		cfg.Retrieval.DistanceThreshold = &th
	}
	if cfg.Retrieval.Metric == "" {
		cfg.Retrieval.Metric = "cosine"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 512
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 50
	}
	if cfg.Chunking.Boundary == "" {
		cfg.Chunking.Boundary = "sentence"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}
