package run

import (
	"errors"
	"fmt"

	"github.com/alan-christopher/qrun/job"
)

// ErrInvariant is wrapped by every error reporting a malformed batch or a
// corrupted run state.
var ErrInvariant = errors.New("run invariant violated")

// A JobNotReadyError reports a job that had not finished successfully when a
// run was finalized.
type JobNotReadyError struct {
	Index  int
	JobID  string
	Status job.Status
}

func (e *JobNotReadyError) Error() string {
	return fmt.Sprintf("job %d (%s) is %v, want %v", e.Index, e.JobID, e.Status, job.StatusDone)
}

func invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
