package jobxredis

import "github.com/Pikiko14/motowork-products/pkg/errx"

var redisErrors = errx.NewRegistry("JOBX_REDIS")

var (
	ErrEnqueue   = redisErrors.Register("ENQUEUE", errx.TypeExternal, 502, "Redis rejected the enqueue")
	ErrDequeue   = redisErrors.Register("DEQUEUE", errx.TypeExternal, 502, "Redis dequeue failed")
	ErrGetJob    = redisErrors.Register("GET_JOB", errx.TypeExternal, 502, "Failed to read job record")
	ErrNotFound  = redisErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Job record not found")
	ErrComplete  = redisErrors.Register("COMPLETE", errx.TypeExternal, 502, "Failed to mark job completed")
	ErrFail      = redisErrors.Register("FAIL", errx.TypeExternal, 502, "Failed to record job failure")
	ErrRetry     = redisErrors.Register("RETRY", errx.TypeExternal, 502, "Failed to schedule retry")
	ErrPromote   = redisErrors.Register("PROMOTE", errx.TypeExternal, 502, "Failed to promote scheduled jobs")
	ErrRequeue   = redisErrors.Register("REQUEUE", errx.TypeExternal, 502, "Failed to requeue stalled jobs")
	ErrMarshal   = redisErrors.Register("MARSHAL", errx.TypeInternal, 500, "Failed to marshal job record")
	ErrUnmarshal = redisErrors.Register("UNMARSHAL", errx.TypeInternal, 500, "Failed to unmarshal job record")
)
