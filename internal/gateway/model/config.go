package model

// ================ Config ================

// ConversationConfig bounds the sliding history window supplied to the
// classifier and handlers. Exchanges counts user/assistant pairs, so the
// stored message cap is twice this value.
type ConversationConfig struct {
	TTL       string `envconfig:"CONVERSATION_TTL" default:"15m"`
	Exchanges int    `envconfig:"CONVERSATION_WINDOW_EXCHANGES" default:"4"`
}

// EngineConfig configures the generation engine shared by the classifier
// and the response/synthesis steps.
type EngineConfig struct {
	Model       string  `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"300"`
	Temperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.7"`
}

// WeatherConfig keys the weather-by-city upstream. An absent key degrades
// the adapter, never process startup.
type WeatherConfig struct {
	APIKey  string `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL string `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5"`
}

// StockConfig keys the quote/profile upstream.
type StockConfig struct {
	APIKey  string `envconfig:"FINNHUB_API_KEY"`
	BaseURL string `envconfig:"FINNHUB_BASE_URL" default:"https://finnhub.io/api/v1"`
}

// NewsConfig keys the article-search upstream.
type NewsConfig struct {
	APIKey   string `envconfig:"NEWS_API_KEY"`
	BaseURL  string `envconfig:"NEWS_BASE_URL" default:"https://newsapi.org/v2"`
	Language string `envconfig:"NEWS_LANGUAGE" default:"en"`
	PageSize int    `envconfig:"NEWS_PAGE_SIZE" default:"5"`
}

// ImageConfig points at the image-synthesis deployment.
type ImageConfig struct {
	APIKey     string `envconfig:"IMAGE_API_KEY"`
	Endpoint   string `envconfig:"IMAGE_ENDPOINT"`
	Deployment string `envconfig:"IMAGE_DEPLOYMENT" default:"dall-e-3-deployment"`
	APIVersion string `envconfig:"IMAGE_API_VERSION" default:"2024-02-01"`
	Size       string `envconfig:"IMAGE_SIZE" default:"1024x1024"`
}

// RetrievalConfig locates the passage index and its embedding model.
type RetrievalConfig struct {
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	IndexName      string `envconfig:"RETRIEVAL_INDEX" default:"book_passages"`
	TopK           int    `envconfig:"RETRIEVAL_TOP_K" default:"4"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
}

// IngestConfig tunes the offline chunk/embed/upsert pipeline.
type IngestConfig struct {
	SourcePath   string `envconfig:"INGEST_SOURCE" default:"data/adam-and-eve.txt"`
	ChunkSize    int    `envconfig:"INGEST_CHUNK_SIZE" default:"1100"`
	ChunkOverlap int    `envconfig:"INGEST_CHUNK_OVERLAP" default:"20"`
	BatchSize    int    `envconfig:"INGEST_BATCH_SIZE" default:"100"`
	MaxRetries   int    `envconfig:"INGEST_MAX_RETRIES" default:"5"`
	ProbeQuery   string `envconfig:"INGEST_PROBE_QUERY" default:"who is adam?"`
	VectorDim    int    `envconfig:"INGEST_VECTOR_DIM" default:"3072"`
}
