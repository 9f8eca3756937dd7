package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func labels(m map[string]int) func(string) (int, bool) {
	return func(id string) (int, bool) {
		v, ok := m[id]
		return v, ok
	}
}

func TestEvaluateOneOfEach(t *testing.T) {
	records := []Record{
		{ID: "ham_1.txt", Score: 0.9}, // tp
		{ID: "spam_1.txt", Score: 0.1}, // tn
		{ID: "spam_2.txt", Score: 0.7}, // fp
		{ID: "ham_2.txt", Score: 0.2}, // fn
	}
	gold := labels(map[string]int{"ham_1.txt": 1, "spam_1.txt": 0, "spam_2.txt": 0, "ham_2.txt": 1})

	m := Evaluate(records, gold)
	if m.TP != 1 || m.TN != 1 || m.FP != 1 || m.FN != 1 {
		t.Fatalf("unexpected confusion matrix %+v", m)
	}
	if m.Precision != 0.5 || m.Recall != 0.5 || m.F1 != 0.5 || m.Accuracy != 0.5 {
		t.Fatalf("expected all 0.5, got %+v", m)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	m := Evaluate(nil, labels(nil))
	if m != (Metrics{}) {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
}

func TestEvaluateSkipsUnknownGold(t *testing.T) {
	records := []Record{
		{ID: "ham.txt", Score: 0.8},
		{ID: "mystery.txt", Score: 0.1},
		{ID: "other.txt", Score: 0.9},
	}
	m, skipped := EvaluateWithSkipped(records, labels(map[string]int{"ham.txt": 1}))
	if skipped != 2 {
		t.Fatalf("expected 2 skipped, got %d", skipped)
	}
	if m.Total() != 1 || m.TP != 1 || m.Accuracy != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestEvaluateNoPositives(t *testing.T) {
	records := []Record{{ID: "a", Score: 0.1}, {ID: "b", Score: 0.2}}
	m := Evaluate(records, labels(map[string]int{"a": 0, "b": 0}))
	if m.Precision != 0 || m.Recall != 0 || m.F1 != 0 || m.Accuracy != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestEvaluateThresholdIsHam(t *testing.T) {
	m := Evaluate([]Record{{ID: "a", Score: 0.5}}, labels(map[string]int{"a": 1}))
	if m.TP != 1 {
		t.Fatalf("score 0.5 should count as ham, got %+v", m)
	}
}

func TestHistoryAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "metrics.json")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHistory(path).WithClock(func() time.Time { return fixed })

	first, err := h.Append("classify", Metrics{TP: 1, Accuracy: 1}, 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == "" || !first.Timestamp.Equal(fixed) {
		t.Fatalf("entry not stamped: %+v", first)
	}
	second, err := h.Append("evaluate", Metrics{TN: 2, Accuracy: 1}, 3)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected unique ids")
	}

	entries, err := h.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Source != "classify" || entries[1].Skipped != 3 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestHistoryCorruptStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	if err := os.WriteFile(path, []byte("{not an array"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := NewHistory(path)
	if _, err := h.Append("classify", Metrics{}, 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := h.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected fresh history with 1 entry, got %d", len(entries))
	}
}

func TestHistoryConcurrentAppends(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "metrics.json"))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Append("classify", Metrics{}, 0); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()
	entries, _ := h.Entries()
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
}
