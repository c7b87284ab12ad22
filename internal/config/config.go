package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	OpenAI    OpenAIConfig
	Ingest    IngestConfig
	Retrieval RetrievalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir   string
	UploadDir string
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
}

// IngestConfig holds the knobs of the extraction/chunking pipeline.
type IngestConfig struct {
	// MinTextChars is the minimum direct-extraction yield below which a PDF
	// is treated as scanned and sent through OCR.
	MinTextChars int
	// MaxChunkChars and ChunkOverlap control chunk windowing.
	MaxChunkChars int
	ChunkOverlap  int
	// OCRDPI is the raster resolution for PDF page rendering.
	OCRDPI int
	// MaxUploadBytes rejects oversized uploads before any extraction work.
	MaxUploadBytes int64
}

type RetrievalConfig struct {
	TopK int
	// SimilarityCutoff drops matches below this cosine similarity.
	SimilarityCutoff float64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Storage: StorageConfig{
			DataDir:   defaultDataDir(),
			UploadDir: filepath.Join(defaultDataDir(), "uploads"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "gpt-4o-mini",
		},
		Ingest: IngestConfig{
			MinTextChars:   20,
			MaxChunkChars:  1500,
			ChunkOverlap:   200,
			OCRDPI:         300,
			MaxUploadBytes: 50 << 20, // 50 MiB
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			SimilarityCutoff: 0.3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docchat"
	}
	return filepath.Join(home, ".docchat")
}

// Load reads configuration from defaults, an optional .env file in the
// working directory, and DOCCHAT_* environment variables (highest
// precedence). The OpenAI API key is required; everything else has a
// working default.
func Load() (Config, error) {
	// Missing .env is fine; env vars may come from the environment proper.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set DOCCHAT_OPENAI_API_KEY (or add it to .env)")
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.MaxChunkChars {
		return Config{}, fmt.Errorf("chunk overlap (%d) must be smaller than max chunk chars (%d)",
			cfg.Ingest.ChunkOverlap, cfg.Ingest.MaxChunkChars)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("DOCCHAT_PORT", &cfg.Server.Port)
	setString("DOCCHAT_DATA_DIR", &cfg.Storage.DataDir)
	setString("DOCCHAT_UPLOAD_DIR", &cfg.Storage.UploadDir)
	setString("DOCCHAT_OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setString("DOCCHAT_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setString("DOCCHAT_EMBED_MODEL", &cfg.OpenAI.EmbedModel)
	setString("DOCCHAT_CHAT_MODEL", &cfg.OpenAI.ChatModel)
	setInt("DOCCHAT_MIN_TEXT_CHARS", &cfg.Ingest.MinTextChars)
	setInt("DOCCHAT_MAX_CHUNK_CHARS", &cfg.Ingest.MaxChunkChars)
	setInt("DOCCHAT_CHUNK_OVERLAP", &cfg.Ingest.ChunkOverlap)
	setInt("DOCCHAT_OCR_DPI", &cfg.Ingest.OCRDPI)
	setInt("DOCCHAT_TOP_K", &cfg.Retrieval.TopK)
	setString("DOCCHAT_LOG_LEVEL", &cfg.Log.Level)

	if v := os.Getenv("DOCCHAT_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ingest.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("DOCCHAT_SIMILARITY_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.SimilarityCutoff = f
		}
	}
}
