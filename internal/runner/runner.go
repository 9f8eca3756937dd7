// Package runner wires configuration, providers and the classifier into the
// CLI commands: train, evaluate, classify, aggregate and run-all.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/straja-ai/mailsieve/internal/activation"
	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/embedding"
	"github.com/straja-ai/mailsieve/internal/metrics"
	"github.com/straja-ai/mailsieve/internal/provider"
	"github.com/straja-ai/mailsieve/internal/reasoning"
	"github.com/straja-ai/mailsieve/internal/store"
	"github.com/straja-ai/mailsieve/internal/telemetry"
)

// Deps are the collaborators a Runner needs. Nil optional fields disable
// the feature.
type Deps struct {
	Embedder      embedding.Provider
	EmbedderName  string
	EmbedderModel string
	Explainer     reasoning.Explainer
	Telemetry     *telemetry.Provider
	Emitter       *activation.Emitter
	Out           io.Writer
}

// Runner executes pipeline commands against one configuration.
type Runner struct {
	cfg       *config.Config
	deps      Deps
	models    *store.ModelStore
	history   *metrics.History
	runID     string
	debug     bool
	closeFunc []func() error
}

func New(cfg *config.Config, deps Deps) *Runner {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Explainer == nil {
		deps.Explainer = reasoning.None{}
	}
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		models:  store.NewModelStore(cfg.Paths.ModelFile),
		history: metrics.NewHistory(cfg.Paths.MetricsFile),
		runID:   uuid.NewString(),
		debug:   strings.EqualFold(cfg.Logging.Level, "debug"),
	}
}

// FromConfig builds every provider the configuration names.
func FromConfig(ctx context.Context, cfg *config.Config, version string) (*Runner, error) {
	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "mailsieve",
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	emb, name, closer, err := BuildEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	emb = embedding.WithTimeout(emb, cfg.Embedding.Timeout)
	emb = embedding.WithRetry(emb, embedding.RetryConfig{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay})
	emb = telemetry.WrapEmbedder(emb, tel, name)

	chat, err := provider.FromConfig(cfg.Reasoning)
	if err != nil {
		return nil, err
	}
	chat = telemetry.WrapChat(chat, tel, cfg.Reasoning.Type)

	emitter, err := activation.FromConfig(cfg.Activation)
	if err != nil {
		return nil, err
	}

	r := New(cfg, Deps{
		Embedder:      emb,
		EmbedderName:  name,
		EmbedderModel: cfg.Embedding.Model,
		Explainer:     reasoning.New(chat, cfg.Reasoning.Model, cfg.Reasoning.Timeout, cfg.Reasoning.MaxTokens),
		Telemetry:     tel,
		Emitter:       emitter,
	})
	if closer != nil {
		r.closeFunc = append(r.closeFunc, closer)
	}
	return r, nil
}

// BuildEmbedder constructs the configured embedding backend. The returned
// closer is non-nil only for backends holding native resources.
func BuildEmbedder(cfg config.EmbeddingConfig) (embedding.Provider, string, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "ollama":
		p := embedding.NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout)
		return p, p.Name(), nil, nil
	case "openai":
		key := config.ResolveAPIKey(cfg.APIKey, cfg.APIKeyEnv)
		p := embedding.NewOpenAI(cfg.BaseURL, key, cfg.Model, cfg.Timeout, cfg.MaxResponseBytes)
		return p, p.Name(), nil, nil
	case "onnx":
		p, err := embedding.NewONNX(embedding.ONNXConfig{
			ModelPath:   cfg.ONNX.ModelPath,
			VocabPath:   cfg.ONNX.VocabPath,
			LibraryPath: cfg.ONNX.LibraryPath,
			SeqLen:      cfg.ONNX.SeqLen,
			Normalize:   cfg.ONNX.Normalize,
		})
		if err != nil {
			return nil, "", nil, err
		}
		return p, p.Name(), p.Close, nil
	case "hashing":
		p := embedding.NewHashing(cfg.Dim)
		return p, p.Name(), nil, nil
	default:
		return nil, "", nil, fmt.Errorf("unknown embedding type %q", cfg.Type)
	}
}

// Close drains the event emitter, flushes telemetry and releases native
// resources.
func (r *Runner) Close(ctx context.Context) {
	r.deps.Emitter.Close(ctx)
	r.deps.Telemetry.Shutdown(ctx)
	for _, c := range r.closeFunc {
		if err := c(); err != nil {
			log.Printf("runner: close error: %v", err)
		}
	}
}

// RunID identifies this process in emitted events.
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) debugf(format string, args ...any) {
	if r.debug {
		log.Printf(format, args...)
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.deps.Out, format, args...)
}

func (r *Runner) emit(ctx context.Context, p activation.BuildParams) {
	if r.deps.Emitter == nil {
		return
	}
	p.RunID = r.runID
	p.Provider = r.deps.EmbedderName
	p.Model = r.deps.EmbedderModel
	p.PreviewLevel = r.cfg.Activation.Preview
	r.deps.Emitter.Emit(ctx, activation.BuildEvent(p))
}
