package cqp

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReconnectionSchedule is a stateful sequence of delays pacing one node's
// reconnection attempts. NextDelay returns false when the schedule has given
// up on the node.
type ReconnectionSchedule interface {
	NextDelay() (time.Duration, bool)
}

// ReconnectionPolicy creates a fresh schedule for every reconnection loop.
type ReconnectionPolicy interface {
	NewNodeSchedule() ReconnectionSchedule
}

// backoffSchedule adapts a backoff.BackOff to a ReconnectionSchedule.
type backoffSchedule struct {
	backoff backoff.BackOff
}

func (s *backoffSchedule) NextDelay() (time.Duration, bool) {
	delay := s.backoff.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	return delay, true
}

// ConstantReconnectionPolicy retries with a fixed delay. With MaxRetries of
// zero it never gives up on a node.
type ConstantReconnectionPolicy struct {
	Delay      time.Duration
	MaxRetries uint64
}

// NewNodeSchedule returns a fixed-delay schedule.
func (p *ConstantReconnectionPolicy) NewNodeSchedule() ReconnectionSchedule {
	var schedule backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	if p.MaxRetries > 0 {
		schedule = backoff.WithMaxRetries(schedule, p.MaxRetries)
	}
	return &backoffSchedule{backoff: schedule}
}

// ExponentialReconnectionPolicy retries with exponentially growing delays,
// capped at MaxInterval. A non-zero MaxElapsedTime bounds the total time spent
// before the schedule gives up; zero retries forever.
type ExponentialReconnectionPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// NewNodeSchedule returns an exponential schedule starting at InitialInterval.
func (p *ExponentialReconnectionPolicy) NewNodeSchedule() ReconnectionSchedule {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = p.InitialInterval
	schedule.MaxInterval = p.MaxInterval
	schedule.MaxElapsedTime = p.MaxElapsedTime

	schedule.Reset() // required to re-setup config options

	return &backoffSchedule{backoff: schedule}
}
