package config

// Config is the process-wide configuration for the retrieval core.
// The vector backend choice is made once here, at startup, and injected
// everywhere; it is never a per-query decision.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	VectorDB  VectorDBConfig  `yaml:"vectordb"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Expansion ExpansionConfig `yaml:"expansion"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	Context   ContextConfig   `yaml:"context"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      *HTTPClientConfig `yaml:"http,omitempty"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig points at an OpenAI-compatible chat completion service.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// EmbeddingConfig points at an OpenAI-compatible embeddings service.
// The same endpoint serves index-time and query-time embedding so both
// live in one vector space.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key,omitempty"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// BatchSize caps texts per embedding request.
	BatchSize int `yaml:"batch_size,omitempty"`
	// MaxInFlight caps concurrent batches per document.
	MaxInFlight int `yaml:"max_in_flight,omitempty"`
	// Retries per batch before the document-level operation fails.
	Retries int `yaml:"retries,omitempty"`
}

// VectorDBConfig selects and configures the vector backend.
type VectorDBConfig struct {
	// Provider is "qdrant" (server, hybrid-capable) or "chromem"
	// (embedded, file-based, dense-only).
	Provider string        `yaml:"provider"`
	Qdrant   QdrantConfig  `yaml:"qdrant,omitempty"`
	Chromem  ChromemConfig `yaml:"chromem,omitempty"`
}

// QdrantConfig configures the gRPC client for a Qdrant server.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the persistence directory. Empty means in-memory.
	Path     string `yaml:"path,omitempty"`
	Compress bool   `yaml:"compress,omitempty"`
}

// SplitterConfig bounds chunk sizes. Sizes are in characters of the
// linearized text; the soft target closes a chunk at the nearest unit
// boundary, the hard ceiling is only crossed by a single indivisible unit.
type SplitterConfig struct {
	ChunkSize   int `yaml:"chunk_size,omitempty"`
	HardCeiling int `yaml:"hard_ceiling,omitempty"`
}

// RetrievalConfig holds process defaults for the read path; workspaces
// override the user-tunable subset (see Workspace).
type RetrievalConfig struct {
	TopK int `yaml:"top_k,omitempty"`
	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int `yaml:"rrf_k,omitempty"`
	// Threshold is the similarity-score floor applied per ranked list
	// before fusion.
	Threshold float64 `yaml:"threshold,omitempty"`
}

// RerankConfig configures the optional cross-encoder rerank stage.
type RerankConfig struct {
	Enable    bool   `yaml:"enable,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	TimeoutMs int    `yaml:"timeout_ms,omitempty"`
}

// ExpansionConfig configures the optional LLM query expansion stage.
type ExpansionConfig struct {
	Enable      bool `yaml:"enable,omitempty"`
	MaxVariants int  `yaml:"max_variants,omitempty"`
	TimeoutMs   int  `yaml:"timeout_ms,omitempty"`
}

// WebSearchConfig points at the external web-search agent webhook.
type WebSearchConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
	MaxResults int    `yaml:"max_results,omitempty"`
	TimeoutMs  int    `yaml:"timeout_ms,omitempty"`
}

// ContextConfig fixes the token ceiling and the three budget ratios.
// Ratios must sum to 1.0.
type ContextConfig struct {
	MaxTokens    int     `yaml:"max_tokens"`
	HistoryRatio float64 `yaml:"history_ratio"`
	SystemRatio  float64 `yaml:"system_ratio"`
	UserRatio    float64 `yaml:"user_ratio"`
}

// CacheConfig controls the L1 retrieval-result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries,omitempty"`
	TTLSeconds int  `yaml:"ttl_seconds,omitempty"`
}

// HTTPClientConfig holds defaults for outbound HTTP calls
// (reranker, web-search agent).
type HTTPClientConfig struct {
	TimeoutMs              int      `yaml:"timeout_ms,omitempty"`
	Retry                  int      `yaml:"retry,omitempty"`
	BackoffMinMs           int      `yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `yaml:"circuit_open_seconds,omitempty"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // json|console
}

// ApplyDefaults fills unset fields with the shipped defaults.
func (c *Config) ApplyDefaults() {
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.MaxInFlight <= 0 {
		c.Embedding.MaxInFlight = 4
	}
	if c.Embedding.Retries <= 0 {
		c.Embedding.Retries = 3
	}
	if c.VectorDB.Provider == "" {
		c.VectorDB.Provider = "chromem"
	}
	if c.VectorDB.Qdrant.Host == "" {
		c.VectorDB.Qdrant.Host = "localhost"
	}
	if c.VectorDB.Qdrant.Port == 0 {
		c.VectorDB.Qdrant.Port = 6334
	}
	if c.Splitter.ChunkSize <= 0 {
		c.Splitter.ChunkSize = 1000
	}
	if c.Splitter.HardCeiling <= 0 {
		c.Splitter.HardCeiling = 4 * c.Splitter.ChunkSize
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = 60
	}
	if c.Retrieval.Threshold == 0 {
		c.Retrieval.Threshold = 0.25
	}
	if c.Rerank.TimeoutMs <= 0 {
		c.Rerank.TimeoutMs = 2000
	}
	if c.Expansion.MaxVariants <= 0 {
		c.Expansion.MaxVariants = 2
	}
	if c.Expansion.TimeoutMs <= 0 {
		c.Expansion.TimeoutMs = 3000
	}
	if c.WebSearch.MaxResults <= 0 {
		c.WebSearch.MaxResults = 3
	}
	if c.WebSearch.TimeoutMs <= 0 {
		c.WebSearch.TimeoutMs = 10000
	}
	if c.Context.MaxTokens <= 0 {
		c.Context.MaxTokens = 128000
	}
	if c.Context.HistoryRatio == 0 && c.Context.SystemRatio == 0 && c.Context.UserRatio == 0 {
		c.Context.HistoryRatio = 0.7
		c.Context.SystemRatio = 0.15
		c.Context.UserRatio = 0.15
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 500
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 120
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
