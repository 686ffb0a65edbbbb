package jobx

import "github.com/Pikiko14/motowork-products/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrNotFound       = jobxErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, 404, "Job not found")
	ErrEnqueueFailed  = jobxErrors.Register("ENQUEUE_FAILED", errx.TypeExternal, 502, "Broker did not accept the job")
	ErrDequeueFailed  = jobxErrors.Register("DEQUEUE_FAILED", errx.TypeExternal, 502, "Failed to dequeue job")
	ErrCompleteFailed = jobxErrors.Register("COMPLETE_FAILED", errx.TypeExternal, 502, "Failed to complete job")
	ErrFailFailed     = jobxErrors.Register("FAIL_FAILED", errx.TypeExternal, 502, "Failed to record job failure")
	ErrRetryFailed    = jobxErrors.Register("RETRY_FAILED", errx.TypeExternal, 502, "Failed to schedule job retry")
	ErrNoHandler      = jobxErrors.Register("NO_HANDLER", errx.TypeValidation, 400, "No handler registered for job type")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Queue client is already running")
	ErrUnknownQueue   = jobxErrors.Register("UNKNOWN_QUEUE", errx.TypeNotFound, 404, "Queue is not registered")
)

// IsEnqueueFailure reports whether err means the broker could not accept a
// job. Callers treat this as best-effort: the triggering write is not
// rolled back.
func IsEnqueueFailure(err error) bool {
	return errx.IsCode(err, ErrEnqueueFailed)
}
