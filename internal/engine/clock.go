package engine

import "time"

// Timer - отменяемый таймер. *time.Timer подходит как есть.
type Timer interface {
	Stop() bool
}

// Clock - источник времени и таймеров. В тестах подменяется.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
