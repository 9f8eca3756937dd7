// Package activation emits one event per classification decision to
// pluggable sinks.
package activation

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/mailsieve/internal/redact"
)

const EventVersion = "1"

// Kind distinguishes the command that produced the event.
type Kind string

const (
	KindClassify  Kind = "classify"
	KindAggregate Kind = "aggregate"
	KindEvaluate  Kind = "evaluate"
)

// Preview levels control how much email text reaches sinks.
const (
	PreviewMetadata = "metadata"
	PreviewRedacted = "redacted"
	PreviewFull     = "full"
)

type EmbeddingMeta struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

type TimingMs struct {
	Predict   float64 `json:"predict"`
	Reasoning float64 `json:"reasoning,omitempty"`
	Total     float64 `json:"total"`
}

// Event is the canonical decision payload.
type Event struct {
	Version   string        `json:"version"`
	ID        string        `json:"id"`
	RunID     string        `json:"run_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      Kind          `json:"kind"`
	Email     string        `json:"email"`
	Preview   string        `json:"preview,omitempty"`
	Scores    []float64     `json:"scores"`
	Decision  string        `json:"decision"`
	Reasoning string        `json:"reasoning,omitempty"`
	GoldLabel *int          `json:"gold_label,omitempty"`
	Embedding EmbeddingMeta `json:"embedding"`
	TimingMs  TimingMs      `json:"timing_ms"`
}

// BuildParams collects inputs needed to assemble a decision event.
type BuildParams struct {
	RunID        string
	Kind         Kind
	Email        string
	Text         string
	Scores       []float64
	Decision     string
	Reasoning    string
	GoldLabel    *int
	Provider     string
	Model        string
	PreviewLevel string
	Predict      time.Duration
	Reasoned     time.Duration
	Now          func() time.Time
}

// BuildEvent creates a decision event. Text only appears as a preview and
// only at the redacted or full level.
func BuildEvent(params BuildParams) *Event {
	now := time.Now
	if params.Now != nil {
		now = params.Now
	}
	predictMs := durationMillis(params.Predict)
	reasonMs := durationMillis(params.Reasoned)

	scores := make([]float64, len(params.Scores))
	copy(scores, params.Scores)

	return &Event{
		Version:   EventVersion,
		ID:        uuid.NewString(),
		RunID:     params.RunID,
		Timestamp: now().UTC(),
		Kind:      params.Kind,
		Email:     params.Email,
		Preview:   buildPreview(params.PreviewLevel, params.Text),
		Scores:    scores,
		Decision:  params.Decision,
		Reasoning: redact.String(params.Reasoning),
		GoldLabel: params.GoldLabel,
		Embedding: EmbeddingMeta{Provider: params.Provider, Model: params.Model},
		TimingMs:  TimingMs{Predict: predictMs, Reasoning: reasonMs, Total: predictMs + reasonMs},
	}
}

// LogEvent prints a redacted JSON representation of the event.
func LogEvent(ev *Event) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		redact.Logf("activation: failed to marshal event: %v", err)
		return
	}
	redact.Logf("activation: %s", string(data))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var (
	emailRegex = regexp.MustCompile(`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	tokenRegex = regexp.MustCompile(`[A-Za-z0-9_\-]{20,}`)
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

func buildPreview(level, text string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case PreviewFull:
		return redact.String(truncate(text, 500))
	case PreviewRedacted:
		return redact.String(truncate(simpleRedact(text), 500))
	default:
		// metadata-only
		return ""
	}
}

func simpleRedact(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = phoneRegex.ReplaceAllString(s, "[REDACTED_PHONE]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// back off to a rune boundary
	for max > 0 && !utf8RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
