package modelerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels for failures that carry no payload.
var (
	// ErrNotFound means the model id does not exist in the registry.
	ErrNotFound = errors.New("model not found")
	// ErrCorruptArtifact means the uploaded bytes could not be deserialized.
	ErrCorruptArtifact = errors.New("corrupt model artifact")
	// ErrUnsupportedModelKind means the artifact deserialized to something
	// that is neither a classifier nor a regressor.
	ErrUnsupportedModelKind = errors.New("unsupported model kind")
)

// MissingFeaturesError reports which declared features were absent from a
// prediction request. Extra keys are never an error.
type MissingFeaturesError struct {
	Missing []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("missing required features: [%s]", strings.Join(e.Missing, ", "))
}

// InvalidVersionRequestError reports a bad explicit parent reference on
// upload: unknown parent id, or a parent from a different family.
type InvalidVersionRequestError struct {
	Reason string
}

func (e *InvalidVersionRequestError) Error() string {
	return "invalid version request: " + e.Reason
}

// LoadError wraps a deferred deserialization failure at first predict.
type LoadError struct {
	ModelID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.ModelID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InferenceError wraps a failure raised by the underlying model call.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Code returns a stable machine-readable identifier for a domain error, used
// in HTTP error envelopes and tool results.
func Code(err error) string {
	var (
		missing *MissingFeaturesError
		badVer  *InvalidVersionRequestError
		loadErr *LoadError
		infErr  *InferenceError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCorruptArtifact):
		return "corrupt_artifact"
	case errors.Is(err, ErrUnsupportedModelKind):
		return "unsupported_model_kind"
	case errors.As(err, &missing):
		return "missing_features"
	case errors.As(err, &badVer):
		return "invalid_version_request"
	case errors.As(err, &loadErr):
		return "load_error"
	case errors.As(err, &infErr):
		return "inference_error"
	default:
		return "internal"
	}
}

// HTTPStatus maps a domain error onto the status its entry point responds
// with. Unknown errors are 500s.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "not_found":
		return http.StatusNotFound
	case "corrupt_artifact", "unsupported_model_kind", "missing_features", "invalid_version_request":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
