// Package task wraps management mutations as asynchronous tasks with
// observable completion state.
package task

import (
	"time"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/kit/platform/errors"
)

// Status is the lifecycle state of a management task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Task is a management task. Mutating management calls return a Task
// immediately; callers poll it for the outcome.
type Task struct {
	ID     volauth.ID `json:"id"`
	Kind   string     `json:"kind"`
	Status Status     `json:"status"`

	// Result holds the operation's return value once succeeded.
	Result interface{} `json:"result,omitempty"`
	// Error holds the failure description once failed.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// TaskFilter restricts task listings.
type TaskFilter struct {
	Kind   *string
	Status *Status
}

var (
	// ErrTaskNotFound indicates no task could be found for given ID.
	ErrTaskNotFound = &errors.Error{
		Code: errors.ENotFound,
		Msg:  "task not found",
	}

	// ErrTaskNotTerminal indicates an acknowledgment of a task that is
	// still queued or running.
	ErrTaskNotTerminal = &errors.Error{
		Code: errors.EConflict,
		Msg:  "task has not finished",
	}
)
