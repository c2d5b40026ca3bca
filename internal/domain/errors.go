package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery          = errors.New("query must not be empty")
	ErrInvalidDocument     = errors.New("invalid document")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
	ErrMissingCredential   = errors.New("missing credential")
	ErrCollectionNotFound  = errors.New("collection not found")
)

// UpstreamError wraps a failure of an external collaborator (vector store, embedder, LLM, reranker).
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for service. A nil err stays nil.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Service == service {
		return err
	}
	return &UpstreamError{Service: service, Err: err}
}

// PipelineError records which stage of a pipeline failed.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
