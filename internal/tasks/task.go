// Package tasks runs background work on an in-process worker pool and keeps
// task state in a Store keyed by task id.
package tasks

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Kinds registered by the backend.
const (
	KindProcessDocument = "process_document"
	KindEcho            = "echo"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrQueueFull    = errors.New("task queue is full")
	ErrUnknownKind  = errors.New("unknown task kind")
	ErrQueueClosed  = errors.New("task queue is closed")
)

// Task is the stored record of one submission.
type Task struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Payload    map[string]string `json:"payload,omitempty"`
	Status     Status            `json:"status"`
	Result     string            `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Handler executes one task and returns its human-readable result.
type Handler func(ctx context.Context, payload map[string]string) (string, error)

// Store persists task records.
type Store interface {
	Put(ctx context.Context, task Task) error
	Get(ctx context.Context, id string) (Task, error)
}

// Echo is the generic test task: it greets payload["name"].
func Echo(_ context.Context, payload map[string]string) (string, error) {
	return "Hello " + payload["name"], nil
}
