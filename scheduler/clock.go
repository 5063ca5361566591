package scheduler

import "time"

// Clock abstracts wall time so the queue and scheduler can be driven by a
// fake clock in tests instead of sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

var SystemClock Clock = systemClock{}
