// Package config loads the pipeline configuration from environment variables
// and an optional .env file, with sensible defaults and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLMConfig holds the connection parameters for the summarization endpoint.
type LLMConfig struct {
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	MaxRetries      int
	Enabled         bool

	// Circuit breaker tuning.
	FailureThreshold int
	ResetTimeout     time.Duration
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Backend    string // "local" or "remote"
	RemoteURL  string
	OllamaHost string
	Model      string
	Dimension  int
	BatchSize  int
}

// DBConfig holds the document store connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// GateConfig carries the significance-gate thresholds. The defaults are the
// documented heuristics; operators may tune them.
type GateConfig struct {
	Enabled     bool
	CosineHigh  float64
	CosineLow   float64
	RatioNotSig float64
	RatioSig    float64
}

// Config holds the application's configuration values.
type Config struct {
	ReposPath     string
	ReposFile     string
	LockPath      string
	RunMode       string
	ExcludedRepos []string

	GitHubToken string

	LogLevel  string
	LogFormat string
	LogDir    string

	LLM       LLMConfig
	Embedding EmbeddingConfig
	DB        DBConfig

	QdrantHost string

	Threshold          float64
	MaxConcurrentFiles int

	Gate GateConfig

	DashboardPath string
}

// tokenPrefixes are the GitHub token shapes we accept without warning.
var tokenPrefixes = []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("REPOS_PATH", "/repos")
	viper.SetDefault("REPOS_FILE", "repos_to_ingest.txt")
	viper.SetDefault("LOCK_PATH", "/tmp/code-atlas.lock")
	viper.SetDefault("RUN_MODE", "once")
	viper.SetDefault("GIT_TOKEN_ENV_NAME", "GITHUB_TOKEN")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_DIR", "logs")

	viper.SetDefault("LLM_BASE_URL", "http://localhost:8000")
	viper.SetDefault("LLM_MODEL", "qwen3-coder")
	viper.SetDefault("LLM_TEMPERATURE", 0.2)
	viper.SetDefault("LLM_MAX_OUTPUT_TOKENS", 1024)
	viper.SetDefault("LLM_TIMEOUT_SECONDS", 60)
	viper.SetDefault("LLM_MAX_RETRIES", 2)
	viper.SetDefault("LLM_ENABLED", true)
	viper.SetDefault("LLM_FAILURE_THRESHOLD", 5)
	viper.SetDefault("LLM_RESET_TIMEOUT_SECONDS", 300)

	viper.SetDefault("EMBEDDING_BACKEND", "local")
	viper.SetDefault("EMBEDDING_REMOTE_URL", "http://localhost:8001")
	viper.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	viper.SetDefault("EMBEDDER_MODEL_NAME", "nomic-embed-text")
	viper.SetDefault("EMBEDDING_DIMENSION", 768)
	viper.SetDefault("EMBEDDING_BATCH_SIZE", 32)

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "atlas")
	viper.SetDefault("DB_NAME", "atlas")

	viper.SetDefault("QDRANT_HOST", "localhost:6334")

	viper.SetDefault("CHANGE_THRESHOLD", 0.05)
	viper.SetDefault("MAX_CONCURRENT_FILES", 4)

	viper.SetDefault("GATE_ENABLED", true)
	viper.SetDefault("GATE_COSINE_HIGH", 0.95)
	viper.SetDefault("GATE_COSINE_LOW", 0.80)
	viper.SetDefault("GATE_RATIO_NOT_SIGNIFICANT", 0.90)
	viper.SetDefault("GATE_RATIO_SIGNIFICANT", 0.70)

	viper.SetDefault("DASHBOARD_PATH", "logs/kpi_dashboard.html")

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Debug("no .env file loaded", "error", err)
		}
	}

	backend := strings.ToLower(viper.GetString("EMBEDDING_BACKEND"))
	if backend != "local" && backend != "remote" {
		return nil, fmt.Errorf("EMBEDDING_BACKEND must be 'local' or 'remote', got %q", backend)
	}

	runMode := strings.ToLower(viper.GetString("RUN_MODE"))
	if runMode != "once" && runMode != "continuous" {
		return nil, fmt.Errorf("RUN_MODE must be 'once' or 'continuous', got %q", runMode)
	}

	token := resolveGitToken(viper.GetString("GIT_TOKEN_ENV_NAME"))

	var excluded []string
	for _, r := range strings.Split(viper.GetString("EXCLUDED_REPOS"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			excluded = append(excluded, r)
		}
	}

	return &Config{
		ReposPath:     viper.GetString("REPOS_PATH"),
		ReposFile:     viper.GetString("REPOS_FILE"),
		LockPath:      viper.GetString("LOCK_PATH"),
		RunMode:       runMode,
		ExcludedRepos: excluded,
		GitHubToken:   token,
		LogLevel:      viper.GetString("LOG_LEVEL"),
		LogFormat:     viper.GetString("LOG_FORMAT"),
		LogDir:        viper.GetString("LOG_DIR"),
		LLM: LLMConfig{
			BaseURL:          viper.GetString("LLM_BASE_URL"),
			Model:            viper.GetString("LLM_MODEL"),
			Temperature:      viper.GetFloat64("LLM_TEMPERATURE"),
			MaxOutputTokens:  viper.GetInt("LLM_MAX_OUTPUT_TOKENS"),
			Timeout:          time.Duration(viper.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second,
			MaxRetries:       viper.GetInt("LLM_MAX_RETRIES"),
			Enabled:          viper.GetBool("LLM_ENABLED"),
			FailureThreshold: viper.GetInt("LLM_FAILURE_THRESHOLD"),
			ResetTimeout:     time.Duration(viper.GetInt("LLM_RESET_TIMEOUT_SECONDS")) * time.Second,
		},
		Embedding: EmbeddingConfig{
			Backend:    backend,
			RemoteURL:  viper.GetString("EMBEDDING_REMOTE_URL"),
			OllamaHost: viper.GetString("OLLAMA_HOST"),
			Model:      viper.GetString("EMBEDDER_MODEL_NAME"),
			Dimension:  viper.GetInt("EMBEDDING_DIMENSION"),
			BatchSize:  viper.GetInt("EMBEDDING_BATCH_SIZE"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			Username: viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_NAME"),
		},
		QdrantHost:         viper.GetString("QDRANT_HOST"),
		Threshold:          viper.GetFloat64("CHANGE_THRESHOLD"),
		MaxConcurrentFiles: viper.GetInt("MAX_CONCURRENT_FILES"),
		Gate: GateConfig{
			Enabled:     viper.GetBool("GATE_ENABLED"),
			CosineHigh:  viper.GetFloat64("GATE_COSINE_HIGH"),
			CosineLow:   viper.GetFloat64("GATE_COSINE_LOW"),
			RatioNotSig: viper.GetFloat64("GATE_RATIO_NOT_SIGNIFICANT"),
			RatioSig:    viper.GetFloat64("GATE_RATIO_SIGNIFICANT"),
		},
		DashboardPath: viper.GetString("DASHBOARD_PATH"),
	}, nil
}

// resolveGitToken reads the GitHub token from the env var named by
// GIT_TOKEN_ENV_NAME and warns when its prefix does not look like a GitHub
// token.
func resolveGitToken(envName string) string {
	token := os.Getenv(envName)
	if token == "" {
		return ""
	}
	for _, p := range tokenPrefixes {
		if strings.HasPrefix(token, p) {
			return token
		}
	}
	slog.Warn("git token does not match a known GitHub token prefix", "env", envName)
	return token
}
