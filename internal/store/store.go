// Package store persists models and result logs as whole-file JSON.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/straja-ai/mailsieve/internal/classifier"
)

// DataFormatError reports a model file that exists but cannot be used.
type DataFormatError struct {
	Path string
	Err  error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("model file %s: %v", e.Path, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

var (
	errNoWeights     = errors.New("weights are empty")
	errBadHistory    = errors.New("history epochs out of order")
	errBadAccuracy   = errors.New("history accuracy outside [0,1]")
	errNonFiniteData = errors.New("weights or bias not finite")
)

// ModelStore reads and writes one model file.
type ModelStore struct {
	path string
}

func NewModelStore(path string) *ModelStore {
	return &ModelStore{path: path}
}

func (s *ModelStore) Path() string { return s.path }

// Save writes the model atomically; readers never observe a partial file.
func (s *ModelStore) Save(m *classifier.Model) error {
	if m == nil {
		return errors.New("store: nil model")
	}
	if err := validate(m); err != nil {
		return fmt.Errorf("store: refusing to save: %w", err)
	}
	return WriteJSON(s.path, m)
}

// Load reads the model. A missing file wraps os.ErrNotExist.
func (s *ModelStore) Load() (*classifier.Model, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m classifier.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &DataFormatError{Path: s.path, Err: err}
	}
	if err := validate(&m); err != nil {
		return nil, &DataFormatError{Path: s.path, Err: err}
	}
	return &m, nil
}

func validate(m *classifier.Model) error {
	if len(m.Weights) == 0 {
		return errNoWeights
	}
	for _, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return errNonFiniteData
		}
	}
	if math.IsNaN(m.Bias) || math.IsInf(m.Bias, 0) {
		return errNonFiniteData
	}
	for i, h := range m.History {
		if i > 0 && h.Epoch <= m.History[i-1].Epoch {
			return errBadHistory
		}
		if h.Accuracy < 0 || h.Accuracy > 1 || math.IsNaN(h.Accuracy) {
			return errBadAccuracy
		}
	}
	return nil
}

// WriteJSON marshals v with indentation and replaces path atomically,
// creating parent directories as needed.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
