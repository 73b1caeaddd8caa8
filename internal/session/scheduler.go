package session

import "time"

// Timer is a pending deferred callback
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Implementations must never invoke f
// synchronously from AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules callbacks on the runtime timer
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
