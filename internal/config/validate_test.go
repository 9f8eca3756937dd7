package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return defaultConfig()
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "zero epochs",
			mutate: func(c *Config) { c.Training.Epochs = 0 },
			want:   "training.epochs",
		},
		{
			name:   "negative learning rate",
			mutate: func(c *Config) { c.Training.LearningRate = -0.1 },
			want:   "training.learning_rate",
		},
		{
			name:   "unknown embedding type",
			mutate: func(c *Config) { c.Embedding.Type = "word2vec" },
			want:   "embedding.type",
		},
		{
			name: "openai embedding without key",
			mutate: func(c *Config) {
				c.Embedding.Type = "openai"
				c.Embedding.BaseURL = "https://api.openai.com/v1"
				c.Embedding.APIKeyEnv = ""
			},
			want: "api key",
		},
		{
			name:   "invalid embedding url",
			mutate: func(c *Config) { c.Embedding.BaseURL = "::://bad" },
			want:   "embedding.base_url",
		},
		{
			name:   "onnx without model path",
			mutate: func(c *Config) { c.Embedding.Type = "onnx" },
			want:   "embedding.onnx.model_path",
		},
		{
			name:   "unknown reasoning type",
			mutate: func(c *Config) { c.Reasoning.Type = "oracle" },
			want:   "reasoning.type",
		},
		{
			name:   "zero samples",
			mutate: func(c *Config) { c.Aggregation.Samples = 0 },
			want:   "aggregation.samples",
		},
		{
			name: "activation sink missing path",
			mutate: func(c *Config) {
				c.Activation.Sinks = []ActivationSinkConfig{{Type: "file_jsonl"}}
			},
			want: "missing path",
		},
		{
			name:   "bad preview level",
			mutate: func(c *Config) { c.Activation.Preview = "everything" },
			want:   "activation.preview",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			want: "endpoint",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "trace" },
			want:   "logging.level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			} else if !contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid default config, got %v", err)
	}

	hashing := validConfig()
	hashing.Embedding.Type = "hashing"
	hashing.Embedding.Dim = 64
	hashing.Reasoning.Type = "none"
	if err := Validate(hashing); err != nil {
		t.Fatalf("expected hashing config valid, got %v", err)
	}

	anthropic := validConfig()
	anthropic.Reasoning.Type = "anthropic"
	anthropic.Reasoning.BaseURL = ""
	anthropic.Reasoning.APIKeyEnv = "ANTHROPIC_API_KEY"
	if err := Validate(anthropic); err != nil {
		t.Fatalf("expected anthropic config valid, got %v", err)
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
