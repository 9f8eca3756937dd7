package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Paths.ModelFile) == "" {
		return errors.New("paths.model_file must be set")
	}
	if strings.TrimSpace(cfg.Paths.MetricsFile) == "" {
		return errors.New("paths.metrics_file must be set")
	}

	if err := validateTrainingConfig(cfg.Training); err != nil {
		return err
	}

	if err := validateEmbeddingConfig(cfg.Embedding); err != nil {
		return err
	}

	if err := validateReasoningConfig(cfg.Reasoning); err != nil {
		return err
	}

	if cfg.Aggregation.Samples < 1 {
		return fmt.Errorf("aggregation.samples must be >= 1, got %d", cfg.Aggregation.Samples)
	}
	if cfg.Aggregation.Concurrency < 1 {
		return fmt.Errorf("aggregation.concurrency must be >= 1, got %d", cfg.Aggregation.Concurrency)
	}

	if err := validateActivationConfig(cfg.Activation); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "info", "debug":
	default:
		return fmt.Errorf("logging.level must be info or debug, got %q", cfg.Logging.Level)
	}

	return nil
}

func validateTrainingConfig(t TrainingConfig) error {
	if t.Epochs < 1 {
		return fmt.Errorf("training.epochs must be >= 1, got %d", t.Epochs)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("training.learning_rate must be > 0, got %g", t.LearningRate)
	}
	if t.InitScale < 0 {
		return fmt.Errorf("training.init_scale must be >= 0, got %g", t.InitScale)
	}
	if t.Concurrency < 1 {
		return fmt.Errorf("training.concurrency must be >= 1, got %d", t.Concurrency)
	}
	return nil
}

func validateEmbeddingConfig(e EmbeddingConfig) error {
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "ollama":
		return validateBaseURL("embedding.base_url", e.BaseURL)
	case "openai":
		if strings.TrimSpace(e.APIKeyEnv) == "" && strings.TrimSpace(e.APIKey) == "" {
			return errors.New("embedding missing api key (api_key_env or api_key)")
		}
		return validateBaseURL("embedding.base_url", e.BaseURL)
	case "onnx":
		if strings.TrimSpace(e.ONNX.ModelPath) == "" {
			return errors.New("embedding.onnx.model_path must be set")
		}
		if strings.TrimSpace(e.ONNX.VocabPath) == "" {
			return errors.New("embedding.onnx.vocab_path must be set")
		}
		if e.ONNX.SeqLen < 2 {
			return fmt.Errorf("embedding.onnx.seq_len must be >= 2, got %d", e.ONNX.SeqLen)
		}
		return nil
	case "hashing":
		if e.Dim < 1 {
			return fmt.Errorf("embedding.dim must be >= 1, got %d", e.Dim)
		}
		return nil
	default:
		return fmt.Errorf("embedding.type must be ollama, openai, onnx or hashing, got %q", e.Type)
	}
}

func validateReasoningConfig(r ReasoningConfig) error {
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "none":
		return nil
	case "ollama":
		return validateBaseURL("reasoning.base_url", r.BaseURL)
	case "openai":
		if strings.TrimSpace(r.APIKeyEnv) == "" && strings.TrimSpace(r.APIKey) == "" {
			return errors.New("reasoning missing api key (api_key_env or api_key)")
		}
		return validateBaseURL("reasoning.base_url", r.BaseURL)
	case "anthropic":
		if strings.TrimSpace(r.APIKeyEnv) == "" && strings.TrimSpace(r.APIKey) == "" {
			return errors.New("reasoning missing api key (api_key_env or api_key)")
		}
		if r.BaseURL != "" {
			return validateBaseURL("reasoning.base_url", r.BaseURL)
		}
		return nil
	default:
		return fmt.Errorf("reasoning.type must be ollama, openai, anthropic or none, got %q", r.Type)
	}
}

func validateBaseURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is invalid", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https", field)
	}
	return nil
}

func validateActivationConfig(a ActivationConfig) error {
	switch strings.ToLower(strings.TrimSpace(a.Preview)) {
	case "", "metadata", "redacted", "full":
	default:
		return fmt.Errorf("activation.preview must be metadata, redacted or full, got %q", a.Preview)
	}
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("activation sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("activation sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("activation sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("activation sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("activation sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
