package poller

import (
	"context"
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/cadence"
)

type CycleResult int

const (
	ResultCompleted CycleResult = iota
	ResultRateLimited
	ResultFailed
	ResultCancelled
)

func (r CycleResult) String() string {
	switch r {
	case ResultCompleted:
		return "completed"
	case ResultRateLimited:
		return "rate_limited"
	case ResultCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

type CycleReport struct {
	Result        CycleResult
	Pincodes      int
	Requests      int
	Skipped       int
	Dispatched    int
	RateLimitedAt string
	Err           error
}

// Backoff сколько спать после цикла.
func (r CycleReport) Backoff(c cadence.Class) time.Duration {
	switch r.Result {
	case ResultRateLimited:
		return c.BackoffOnRateLimit
	case ResultFailed:
		return c.BackoffOnError
	default:
		return c.PollInterval
	}
}

func (r CycleReport) fail(ctx context.Context, err error) CycleReport {
	r.Result = ResultFailed
	if ctx.Err() != nil {
		r.Result = ResultCancelled
	}
	r.Err = err
	return r
}
