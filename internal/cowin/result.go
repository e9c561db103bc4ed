package cowin

import (
	"errors"

	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

var (
	ErrRateLimited  = errors.New("cowin: too many requests")
	ErrInvalidInput = errors.New("cowin: invalid input")
	ErrUnavailable  = errors.New("cowin: unavailable")
)

// Status исход запроса к провайдеру.
type Status int

const (
	StatusOK Status = iota
	StatusRateLimited
	StatusInvalidInput
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRateLimited:
		return "rate_limited"
	case StatusInvalidInput:
		return "invalid_input"
	default:
		return "unavailable"
	}
}

// Result либо снимок (StatusOK), либо классифицированная ошибка.
// Err оборачивает соответствующий sentinel, так что errors.Is тоже работает.
type Result struct {
	Status   Status
	Snapshot availability.Snapshot
	Err      error
}

func (r Result) OK() bool { return r.Status == StatusOK }

func ok(s availability.Snapshot) Result { return Result{Status: StatusOK, Snapshot: s} }

func failed(status Status, err error) Result { return Result{Status: status, Err: err} }
