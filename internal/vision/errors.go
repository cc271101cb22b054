package vision

import (
	"errors"
	"fmt"
)

// ErrModelNotFound is returned by NewClassifier when the artifact is missing.
var ErrModelNotFound = errors.New("model artifact not found")

// ErrorKind names the prediction stage that failed.
type ErrorKind string

const (
	KindDecode     ErrorKind = "decode"
	KindPreprocess ErrorKind = "preprocess"
	KindInference  ErrorKind = "inference"
)

// PredictError is the failure half of a prediction result.
type PredictError struct {
	Kind ErrorKind
	Err  error
}

func (e *PredictError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *PredictError) Unwrap() error {
	return e.Err
}

func newPredictError(kind ErrorKind, err error) *PredictError {
	return &PredictError{Kind: kind, Err: err}
}

// KindOf reports the failed stage of err, or "" when err is not a PredictError.
func KindOf(err error) ErrorKind {
	var pe *PredictError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
