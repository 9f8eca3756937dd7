package classifier

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTrainingSet   = errors.New("classifier: training set is empty")
	ErrInvalidEpochs      = errors.New("classifier: epochs must be >= 1")
	ErrInvalidSampleCount = errors.New("classifier: sample count must be >= 1")
	ErrNaNScore           = errors.New("classifier: score is NaN")
)

// DimensionMismatchError reports an embedding whose length differs from the
// model's weight vector.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("classifier: embedding dimension %d does not match model dimension %d", e.Got, e.Want)
}

// ExampleError names the dataset and position of a failing example.
type ExampleError struct {
	Set   string // "train" or "validation"
	Index int
	Err   error
}

func (e *ExampleError) Error() string {
	return fmt.Sprintf("%s example %d: %v", e.Set, e.Index, e.Err)
}

func (e *ExampleError) Unwrap() error { return e.Err }
