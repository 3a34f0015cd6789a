package internal

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid setting detected before
// any file or network work starts.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// NotFoundError reports a missing input artifact (graph, reference document
// or rule file).
type NotFoundError struct {
	Kind string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s file %s not found", e.Kind, e.Path)
}

// TranslationError wraps the failure of a single chunk. Sent and Received
// hold the chunk text and whatever the service returned, when available.
type TranslationError struct {
	ChunkIndex int
	Sent       string
	Received   string
	Err        error
}

func (e *TranslationError) Error() string {
	// chunks are numbered from 1 in user-facing messages
	return fmt.Sprintf("translation request failed on chunk %d: %v", e.ChunkIndex+1, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// ValidationError is one operator-mapping violation found by the verifier.
type ValidationError struct {
	Operator string
	Expected string
	Message  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
