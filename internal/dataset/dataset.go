// Package dataset loads labeled JSONL training data and raw email folders.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	LabelSpam = 0
	LabelHam  = 1
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 8 * 1024 * 1024

// Example is one labeled email.
type Example struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
	// ID is "<file>#<line>" and identifies the record for evaluation.
	ID string `json:"-"`
}

// FormatError reports a malformed dataset line. The whole load fails.
type FormatError struct {
	Path string
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("dataset %s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var (
	errMissingText  = errors.New("missing text")
	errInvalidLabel = errors.New("label must be 0 or 1")
)

type rawExample struct {
	Text  *string          `json:"text"`
	Label *json.RawMessage `json:"label"`
}

// LoadJSONL reads line-delimited {"text","label"} records. Blank lines are
// ignored; the first malformed line aborts the load.
func LoadJSONL(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	base := filepath.Base(path)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var out []Example
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		ex, err := parseLine(raw)
		if err != nil {
			return nil, &FormatError{Path: path, Line: line, Err: err}
		}
		ex.ID = fmt.Sprintf("%s#%d", base, line)
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Path: path, Line: line + 1, Err: err}
	}
	return out, nil
}

func parseLine(raw []byte) (Example, error) {
	var r rawExample
	if err := json.Unmarshal(raw, &r); err != nil {
		return Example{}, err
	}
	if r.Text == nil {
		return Example{}, errMissingText
	}
	if r.Label == nil {
		return Example{}, errInvalidLabel
	}
	var label int
	if err := json.Unmarshal(*r.Label, &label); err != nil {
		return Example{}, errInvalidLabel
	}
	if label != LabelSpam && label != LabelHam {
		return Example{}, errInvalidLabel
	}
	return Example{Text: *r.Text, Label: label}, nil
}

// Texts returns the example texts in order.
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Text
	}
	return out
}

// LabelIndex maps example IDs to gold labels.
func LabelIndex(examples []Example) func(id string) (int, bool) {
	idx := make(map[string]int, len(examples))
	for _, ex := range examples {
		idx[ex.ID] = ex.Label
	}
	return func(id string) (int, bool) {
		l, ok := idx[id]
		return l, ok
	}
}

// Email is a raw message file read from a folder.
type Email struct {
	Name string
	Text string
}

// ReadEmails returns every *.txt file in dir, sorted by name.
func ReadEmails(dir string) ([]Email, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read emails dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Email, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read email %s: %w", name, err)
		}
		out = append(out, Email{Name: name, Text: string(data)})
	}
	return out, nil
}

// GoldLabelFromFilename derives ground truth from names like "ham_01.txt" or
// "invoice-spam.txt". Names carrying both or neither token are unresolved.
func GoldLabelFromFilename(name string) (int, bool) {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	tokens := strings.FieldsFunc(stem, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	var ham, spam bool
	for _, t := range tokens {
		switch t {
		case "ham":
			ham = true
		case "spam":
			spam = true
		}
	}
	switch {
	case ham && !spam:
		return LabelHam, true
	case spam && !ham:
		return LabelSpam, true
	default:
		return 0, false
	}
}
