package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/straja-ai/mailsieve/internal/activation"
	"github.com/straja-ai/mailsieve/internal/classifier"
	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/embedding"
	"github.com/straja-ai/mailsieve/internal/metrics"
	"github.com/straja-ai/mailsieve/internal/provider"
	"github.com/straja-ai/mailsieve/internal/reasoning"
)

const (
	spamText = "claim your free prize"
	hamText  = "meeting notes attached"
)

var staticEmbedder = embedding.Static{
	spamText: {1, 0},
	hamText:  {0, 1},
}

type fixture struct {
	cfg  *config.Config
	dir  string
	out  *bytes.Buffer
	chat *provider.FakeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	logs := filepath.Join(dir, "logs")
	cfg.Paths.TrainSet = filepath.Join(dir, "train.jsonl")
	cfg.Paths.ValidationSet = filepath.Join(dir, "val.jsonl")
	cfg.Paths.TestSet = filepath.Join(dir, "test.jsonl")
	cfg.Paths.EmailsDir = filepath.Join(dir, "emails")
	cfg.Paths.ModelFile = filepath.Join(logs, "model.json")
	cfg.Paths.ResultsFile = filepath.Join(logs, "results.json")
	cfg.Paths.AggregationFile = filepath.Join(logs, "aggregation.json")
	cfg.Paths.MetricsFile = filepath.Join(logs, "metrics.json")
	cfg.Training.Epochs = 50
	cfg.Training.Seed = 1
	cfg.Aggregation.Samples = 3

	examples := `{"text":"claim your free prize","label":0}
{"text":"meeting notes attached","label":1}
`
	writeFile(t, cfg.Paths.TrainSet, examples)
	writeFile(t, cfg.Paths.ValidationSet, examples)
	writeFile(t, filepath.Join(cfg.Paths.EmailsDir, "spam_01.txt"), spamText)
	writeFile(t, filepath.Join(cfg.Paths.EmailsDir, "ham_01.txt"), hamText)
	writeFile(t, filepath.Join(cfg.Paths.EmailsDir, "unlabeled.txt"), hamText)
	writeFile(t, filepath.Join(cfg.Paths.EmailsDir, "notes.md"), "ignored")

	return &fixture{cfg: cfg, dir: dir, out: &bytes.Buffer{}, chat: provider.NewFake("Looks like routine work mail.")}
}

func (f *fixture) runner(emitter *activation.Emitter) *Runner {
	return New(f.cfg, Deps{
		Embedder:     staticEmbedder,
		EmbedderName: "static",
		Explainer:    reasoning.New(f.chat, "test-model", 0, 64),
		Emitter:      emitter,
		Out:          f.out,
	})
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestTrainSavesModel(t *testing.T) {
	f := newFixture(t)
	r := f.runner(nil)

	m, err := r.Train(context.Background(), TrainOptions{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if m.Dim() != 2 || len(m.History) != 50 {
		t.Fatalf("unexpected model: dim=%d history=%d", m.Dim(), len(m.History))
	}
	if m.History[len(m.History)-1].Accuracy != 1 {
		t.Fatalf("expected final accuracy 1, got %v", m.History[len(m.History)-1].Accuracy)
	}
	if _, err := os.Stat(f.cfg.Paths.ModelFile); err != nil {
		t.Fatalf("model file not written: %v", err)
	}
}

func TestTrainFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.cfg.Paths.TrainSet, "")
	r := f.runner(nil)

	_, err := r.Train(context.Background(), TrainOptions{})
	if !errors.Is(err, classifier.ErrEmptyTrainingSet) {
		t.Fatalf("expected ErrEmptyTrainingSet, got %v", err)
	}
	if _, err := os.Stat(f.cfg.Paths.ModelFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("model file should not exist, stat err=%v", err)
	}
}

func TestEvaluatePrintsAccuracyAndRecordsHistory(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.cfg.Paths.TestSet, `{"text":"claim your free prize","label":0}
{"text":"meeting notes attached","label":1}
`)
	r := f.runner(nil)
	if _, err := r.Train(context.Background(), TrainOptions{}); err != nil {
		t.Fatalf("train: %v", err)
	}

	m, err := r.Evaluate(context.Background(), "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m.Accuracy != 1 || m.TP != 1 || m.TN != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if !strings.Contains(f.out.String(), "Test accuracy = 1\n") {
		t.Fatalf("missing accuracy line in %q", f.out.String())
	}

	entries, err := metrics.NewHistory(f.cfg.Paths.MetricsFile).Entries()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "evaluate" {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestClassifyWithoutModel(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.runner(nil).Classify(context.Background(), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestClassifyWritesResultsAndEvents(t *testing.T) {
	f := newFixture(t)
	eventsPath := filepath.Join(f.dir, "events.jsonl")
	sink, err := activation.NewFileSink(eventsPath)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	emitter := activation.NewEmitter(activation.EmitterConfig{}, []activation.Sink{sink})
	r := f.runner(emitter)

	if _, err := r.Train(context.Background(), TrainOptions{}); err != nil {
		t.Fatalf("train: %v", err)
	}
	results, m, err := r.Classify(context.Background(), "")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	emitter.Close(context.Background())

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := map[string]classifier.Decision{
		"ham_01.txt":    classifier.Forward,
		"spam_01.txt":   classifier.Discard,
		"unlabeled.txt": classifier.Forward,
	}
	for _, res := range results {
		if res.Recommendation != want[res.Email] {
			t.Fatalf("%s: got %s want %s", res.Email, res.Recommendation, want[res.Email])
		}
	}
	if m.Total() != 2 || m.Accuracy != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}

	data, err := os.ReadFile(f.cfg.Paths.ResultsFile)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	var onDisk []map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("results json: %v", err)
	}
	if len(onDisk) != 3 || onDisk[0]["email"] != "ham_01.txt" || onDisk[0]["recommendation"] != "forward" {
		t.Fatalf("unexpected results file %s", data)
	}
	if _, ok := onDisk[0]["ham_score"].(float64); !ok {
		t.Fatalf("ham_score missing in %s", data)
	}
	if !strings.Contains(f.out.String(), "Email: spam_01.txt\n") {
		t.Fatalf("missing email header in %q", f.out.String())
	}

	entries, err := metrics.NewHistory(f.cfg.Paths.MetricsFile).Entries()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "classify" || entries[0].Skipped != 1 {
		t.Fatalf("unexpected history %+v", entries)
	}

	ef, err := os.Open(eventsPath)
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer ef.Close()
	var events []activation.Event
	sc := bufio.NewScanner(ef)
	for sc.Scan() {
		var ev activation.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("event json: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Kind != activation.KindClassify || ev.RunID != r.RunID() {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Preview != "" {
			t.Fatalf("metadata level must not carry text, got %q", ev.Preview)
		}
	}
}

func TestAggregateWritesRecords(t *testing.T) {
	f := newFixture(t)
	r := f.runner(nil)
	if _, err := r.Train(context.Background(), TrainOptions{}); err != nil {
		t.Fatalf("train: %v", err)
	}

	recs, err := r.Aggregate(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if len(rec.Scores) != 3 {
			t.Fatalf("%s: expected 3 scores, got %d", rec.Email, len(rec.Scores))
		}
		if rec.Reasoning != "Looks like routine work mail." {
			t.Fatalf("%s: unexpected reasoning %q", rec.Email, rec.Reasoning)
		}
	}
	if recs[1].Email != "spam_01.txt" || recs[1].Final != classifier.Discard {
		t.Fatalf("unexpected spam record %+v", recs[1])
	}
	if got := len(f.chat.Requests()); got != 3 {
		t.Fatalf("expected one reasoning call per email, got %d", got)
	}
	if !strings.Contains(f.out.String(), "Aggregated ham_01.txt → forward") {
		t.Fatalf("missing aggregate line in %q", f.out.String())
	}

	data, err := os.ReadFile(f.cfg.Paths.AggregationFile)
	if err != nil {
		t.Fatalf("read aggregation: %v", err)
	}
	if !strings.Contains(string(data), `"final": "discard"`) {
		t.Fatalf("unexpected aggregation file %s", data)
	}
}

func TestAggregateReasoningFailureKeepsDecision(t *testing.T) {
	f := newFixture(t)
	f.chat.Error = errors.New("model offline")
	r := f.runner(nil)
	if _, err := r.Train(context.Background(), TrainOptions{}); err != nil {
		t.Fatalf("train: %v", err)
	}

	recs, err := r.Aggregate(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	for _, rec := range recs {
		if rec.Reasoning != reasoning.Fallback {
			t.Fatalf("expected fallback reasoning, got %q", rec.Reasoning)
		}
	}
}

func TestRunAllSkipsMissingTestSet(t *testing.T) {
	f := newFixture(t)
	r := f.runner(nil)

	if err := r.RunAll(context.Background()); err != nil {
		t.Fatalf("run-all: %v", err)
	}
	for _, p := range []string{f.cfg.Paths.ModelFile, f.cfg.Paths.ResultsFile, f.cfg.Paths.AggregationFile, f.cfg.Paths.MetricsFile} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s: %v", p, err)
		}
	}
	out := f.out.String()
	if strings.Contains(out, "Test accuracy") {
		t.Fatalf("evaluation should have been skipped: %q", out)
	}
	if !strings.Contains(out, "=== ALL TASKS COMPLETED ===") {
		t.Fatalf("missing completion banner in %q", out)
	}
}

func TestBuildEmbedder(t *testing.T) {
	p, name, closer, err := BuildEmbedder(config.EmbeddingConfig{Type: "hashing", Dim: 8})
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if name != "hashing" || closer != nil {
		t.Fatalf("unexpected name=%q closer=%v", name, closer != nil)
	}
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil || len(vec) != 8 {
		t.Fatalf("embed: len=%d err=%v", len(vec), err)
	}

	if _, _, _, err := BuildEmbedder(config.EmbeddingConfig{Type: "word2vec"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestFromConfigHashingNoReasoning(t *testing.T) {
	f := newFixture(t)
	f.cfg.Embedding.Type = "hashing"
	f.cfg.Embedding.Dim = 16
	f.cfg.Reasoning.Type = "none"

	r, err := FromConfig(context.Background(), f.cfg, "test")
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	defer r.Close(context.Background())
	if _, ok := r.deps.Explainer.(reasoning.None); !ok {
		t.Fatalf("expected None explainer, got %T", r.deps.Explainer)
	}
	if r.RunID() == "" {
		t.Fatalf("expected run id")
	}
}
