package clock

import "time"

// Clock источник текущего времени; в тестах подменяется.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Func адаптер для функций вида time.Now.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
