package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSONLSkipsBlankLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "train.jsonl", `{"text":"win a prize","label":0}

  {"text":"lunch tomorrow?","label":1}
`)
	got, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(got))
	}
	if got[0].Label != LabelSpam || got[1].Label != LabelHam {
		t.Fatalf("unexpected labels: %+v", got)
	}
	if got[1].ID != "train.jsonl#3" {
		t.Fatalf("expected id train.jsonl#3, got %q", got[1].ID)
	}
}

func TestLoadJSONLFailsFast(t *testing.T) {
	cases := []struct {
		name string
		body string
		line int
	}{
		{"bad json", "{\"text\":\"ok\",\"label\":1}\n{not json}\n", 2},
		{"missing text", "{\"label\":1}\n", 1},
		{"label out of range", "{\"text\":\"a\",\"label\":2}\n", 1},
		{"label not int", "{\"text\":\"a\",\"label\":\"ham\"}\n", 1},
		{"missing label", "{\"text\":\"a\"}\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "d.jsonl", tc.body)
			_, err := LoadJSONL(path)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FormatError, got %v", err)
			}
			if fe.Line != tc.line {
				t.Fatalf("expected line %d, got %d", tc.line, fe.Line)
			}
		})
	}
}

func TestLoadJSONLMissingFile(t *testing.T) {
	_, err := LoadJSONL(filepath.Join(t.TempDir(), "nope.jsonl"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestReadEmailsSortedTxtOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_spam.txt", "buy now")
	writeFile(t, dir, "a_ham.txt", "see you")
	writeFile(t, dir, "notes.md", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	emails, err := ReadEmails(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(emails))
	}
	if emails[0].Name != "a_ham.txt" || emails[0].Text != "see you" {
		t.Fatalf("unexpected first email %+v", emails[0])
	}
}

func TestGoldLabelFromFilename(t *testing.T) {
	cases := []struct {
		name  string
		label int
		ok    bool
	}{
		{"ham_01.txt", LabelHam, true},
		{"SPAM-offer.txt", LabelSpam, true},
		{"invoice.spam.txt", LabelSpam, true},
		{"hamster.txt", 0, false},
		{"ham_or_spam.txt", 0, false},
		{"message.txt", 0, false},
	}
	for _, tc := range cases {
		label, ok := GoldLabelFromFilename(tc.name)
		if ok != tc.ok || (ok && label != tc.label) {
			t.Errorf("%s: got (%d,%v), want (%d,%v)", tc.name, label, ok, tc.label, tc.ok)
		}
	}
}

func TestLabelIndex(t *testing.T) {
	lookup := LabelIndex([]Example{{ID: "t#1", Label: 1}, {ID: "t#2", Label: 0}})
	if l, ok := lookup("t#2"); !ok || l != 0 {
		t.Fatalf("expected label 0, got %d %v", l, ok)
	}
	if _, ok := lookup("t#9"); ok {
		t.Fatalf("unknown id should be unresolved")
	}
}
