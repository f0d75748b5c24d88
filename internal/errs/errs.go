// Package errs defines the error types surfaced by docqa operations.
// Callers inspect them with errors.As.
package errs

import "fmt"

// ConfigurationError reports an invalid setting or argument: chunk parameters,
// retrieval k, unsupported file types. Never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Configf builds a ConfigurationError for field with a formatted reason.
func Configf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EmbeddingError reports a failed or inconsistent embedding call.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StoreNotFoundError reports a missing or incomplete persisted index.
type StoreNotFoundError struct {
	Path    string
	Missing string
}

func (e *StoreNotFoundError) Error() string {
	if e.Missing == "" {
		return fmt.Sprintf("vector store not found at %s", e.Path)
	}
	return fmt.Sprintf("vector store not found at %s: missing %s", e.Path, e.Missing)
}

// StoreCorruptError reports persisted index files that cannot be read back.
type StoreCorruptError struct {
	Path string
	Err  error
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("vector store at %s is corrupt: %v", e.Path, e.Err)
}

func (e *StoreCorruptError) Unwrap() error { return e.Err }

// GenerationError reports a failed language-model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
