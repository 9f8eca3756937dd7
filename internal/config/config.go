package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds mailsieve configuration.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Training    TrainingConfig    `yaml:"training"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Reasoning   ReasoningConfig   `yaml:"reasoning"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Retry       RetryConfig       `yaml:"retry"`
	Activation  ActivationConfig  `yaml:"activation"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// PathsConfig lists every file and folder the CLI reads or writes.
type PathsConfig struct {
	TrainSet        string `yaml:"train_set"`
	ValidationSet   string `yaml:"validation_set"`
	TestSet         string `yaml:"test_set"`
	EmailsDir       string `yaml:"emails_dir"`
	LogsDir         string `yaml:"logs_dir"`
	ModelFile       string `yaml:"model_file"`
	ResultsFile     string `yaml:"results_file"`
	AggregationFile string `yaml:"aggregation_file"`
	MetricsFile     string `yaml:"metrics_file"`
}

type TrainingConfig struct {
	Epochs          int     `yaml:"epochs"`
	LearningRate    float64 `yaml:"learning_rate"`
	InitScale       float64 `yaml:"init_scale"`
	Seed            int64   `yaml:"seed"`
	Shuffle         bool    `yaml:"shuffle"`
	CacheValidation bool    `yaml:"cache_validation"`
	Concurrency     int     `yaml:"concurrency"` // parallel embedding fetches
}

type EmbeddingConfig struct {
	Type             string        `yaml:"type"` // ollama | openai | onnx | hashing
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	APIKey           string        `yaml:"api_key"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
	Dim              int           `yaml:"dim"` // hashing only
	ONNX             ONNXConfig    `yaml:"onnx"`
}

type ONNXConfig struct {
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	SeqLen      int    `yaml:"seq_len"`
	Normalize   bool   `yaml:"normalize"`
}

type ReasoningConfig struct {
	Type      string        `yaml:"type"` // ollama | openai | anthropic | none
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int64         `yaml:"max_tokens"`
}

type AggregationConfig struct {
	Samples     int `yaml:"samples"`
	Concurrency int `yaml:"concurrency"`
}

type RetryConfig struct {
	MaxRetries uint64        `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

type ActivationConfig struct {
	Sinks     []ActivationSinkConfig `yaml:"sinks"`
	QueueSize int                    `yaml:"queue_size"`
	Workers   int                    `yaml:"workers"`
	Preview   string                 `yaml:"preview"` // metadata | redacted | full
}

type ActivationSinkConfig struct {
	Type      string            `yaml:"type"` // file_jsonl | webhook
	Path      string            `yaml:"path"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   time.Duration     `yaml:"timeout"`
	Secret    string            `yaml:"secret"`     // webhook HMAC key
	SecretEnv string            `yaml:"secret_env"` // or the env var holding it
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

type LoggingConfig struct {
	Level string `yaml:"level"` // info | debug
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	p := &cfg.Paths
	setDefault(&p.TrainSet, "data/train.jsonl")
	setDefault(&p.ValidationSet, "data/val.jsonl")
	setDefault(&p.TestSet, "data/test.jsonl")
	setDefault(&p.EmailsDir, "emails")
	setDefault(&p.LogsDir, "logs")
	setDefault(&p.ModelFile, filepath.Join(p.LogsDir, "model.json"))
	setDefault(&p.ResultsFile, filepath.Join(p.LogsDir, "results.json"))
	setDefault(&p.AggregationFile, filepath.Join(p.LogsDir, "aggregation.json"))
	setDefault(&p.MetricsFile, filepath.Join(p.LogsDir, "metrics.json"))

	if cfg.Training.Epochs == 0 {
		cfg.Training.Epochs = 20
	}
	if cfg.Training.LearningRate == 0 {
		cfg.Training.LearningRate = 0.05
	}
	if cfg.Training.InitScale == 0 {
		cfg.Training.InitScale = 0.005
	}
	if cfg.Training.Concurrency == 0 {
		cfg.Training.Concurrency = 1
	}

	setDefault(&cfg.Embedding.Type, "ollama")
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxResponseBytes == 0 {
		cfg.Embedding.MaxResponseBytes = 16 * 1024 * 1024
	}
	switch strings.ToLower(cfg.Embedding.Type) {
	case "ollama":
		setDefault(&cfg.Embedding.BaseURL, "http://localhost:11434")
		setDefault(&cfg.Embedding.Model, "mxbai-embed-large")
	case "openai":
		setDefault(&cfg.Embedding.BaseURL, "https://api.openai.com/v1")
		setDefault(&cfg.Embedding.Model, "text-embedding-3-small")
		setDefault(&cfg.Embedding.APIKeyEnv, "OPENAI_API_KEY")
	case "hashing":
		if cfg.Embedding.Dim == 0 {
			cfg.Embedding.Dim = 256
		}
	}
	if cfg.Embedding.ONNX.SeqLen == 0 {
		cfg.Embedding.ONNX.SeqLen = 256
	}

	setDefault(&cfg.Reasoning.Type, "ollama")
	if cfg.Reasoning.Timeout == 0 {
		cfg.Reasoning.Timeout = 60 * time.Second
	}
	if cfg.Reasoning.MaxTokens == 0 {
		cfg.Reasoning.MaxTokens = 256
	}
	switch strings.ToLower(cfg.Reasoning.Type) {
	case "ollama":
		setDefault(&cfg.Reasoning.BaseURL, "http://localhost:11434")
		setDefault(&cfg.Reasoning.Model, "qwen2.5:1.5b")
	case "openai":
		setDefault(&cfg.Reasoning.BaseURL, "https://api.openai.com/v1")
		setDefault(&cfg.Reasoning.Model, "gpt-4o-mini")
		setDefault(&cfg.Reasoning.APIKeyEnv, "OPENAI_API_KEY")
	case "anthropic":
		setDefault(&cfg.Reasoning.Model, "claude-haiku-4-5")
		setDefault(&cfg.Reasoning.APIKeyEnv, "ANTHROPIC_API_KEY")
	}

	if cfg.Aggregation.Samples == 0 {
		cfg.Aggregation.Samples = 5
	}
	if cfg.Aggregation.Concurrency == 0 {
		cfg.Aggregation.Concurrency = 1
	}

	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}

	if cfg.Activation.QueueSize == 0 {
		cfg.Activation.QueueSize = 1000
	}
	if cfg.Activation.Workers == 0 {
		cfg.Activation.Workers = 1
	}
	setDefault(&cfg.Activation.Preview, "metadata")

	setDefault(&cfg.Telemetry.Protocol, "grpc")
	setDefault(&cfg.Logging.Level, "info")
}

// applyEnv lets MAILSIEVE_* variables override file values.
func applyEnv(cfg *Config) {
	envOverride(&cfg.Paths.TrainSet, "MAILSIEVE_TRAIN_SET")
	envOverride(&cfg.Paths.ValidationSet, "MAILSIEVE_VALIDATION_SET")
	envOverride(&cfg.Paths.TestSet, "MAILSIEVE_TEST_SET")
	envOverride(&cfg.Paths.EmailsDir, "MAILSIEVE_EMAILS_DIR")
	envOverride(&cfg.Paths.LogsDir, "MAILSIEVE_LOGS_DIR")
	envOverride(&cfg.Embedding.Type, "MAILSIEVE_EMBEDDING_TYPE")
	envOverride(&cfg.Embedding.BaseURL, "MAILSIEVE_EMBEDDING_BASE_URL")
	envOverride(&cfg.Embedding.Model, "MAILSIEVE_EMBEDDING_MODEL")
	envOverride(&cfg.Reasoning.Type, "MAILSIEVE_REASONING_TYPE")
	envOverride(&cfg.Reasoning.BaseURL, "MAILSIEVE_REASONING_BASE_URL")
	envOverride(&cfg.Reasoning.Model, "MAILSIEVE_REASONING_MODEL")
	envOverride(&cfg.Logging.Level, "MAILSIEVE_LOG_LEVEL")
	if v := os.Getenv("MAILSIEVE_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Training.Epochs = n
		}
	}
}

// ResolveAPIKey returns the inline key, or the value of the named env var.
func ResolveAPIKey(inline, envName string) string {
	if strings.TrimSpace(inline) != "" {
		return inline
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

func envOverride(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}
