// Package job defines handles for circuits that have been handed off to a
// backend for execution, along with helpers for waiting on them.
package job

import (
	"fmt"

	"github.com/alan-christopher/qrun/circuit"
)

// Status is the lifecycle state a backend reports for a job.
type Status int

const (
	StatusInitializing Status = iota
	StatusQueued
	StatusRunning
	StatusDone
	StatusCancelled
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "INITIALIZING"
	case StatusQueued:
		return "QUEUED"
	case StatusRunning:
		return "RUNNING"
	case StatusDone:
		return "DONE"
	case StatusCancelled:
		return "CANCELLED"
	case StatusError:
		return "ERROR"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether a job in status s will never change status again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled || s == StatusError
}

// A Result is the raw outcome of a finished job.
type Result interface {
	// Registers returns the classical register layout the memory is recorded
	// against.
	Registers() []circuit.Register

	// Memory returns one entry per shot, in shot order.
	Memory() ([]string, error)
}

// A Job is a handle on a circuit execution owned by a backend.
type Job interface {
	ID() string
	Status() Status

	// Result returns the job's result. It fails unless the job is done.
	Result() (Result, error)
}

// A Canceller is a Job that can be asked to stop early. Cancelling a job that
// already reached a terminal status has no effect.
type Canceller interface {
	Cancel()
}
