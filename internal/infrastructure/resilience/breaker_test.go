package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

func run(b *Breaker, success bool) error {
	_, err := b.Execute(func() (interface{}, error) {
		if success {
			return "ok", nil
		}
		return nil, errUpstream
	})
	return err
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []bool // true = success
		want     State
	}{
		{"all successes stay closed", []bool{true, true, true}, StateClosed},
		{"failures below threshold stay closed", []bool{false, false}, StateClosed},
		{"threshold failures open", []bool{false, false, false}, StateOpen},
		{"success resets the streak", []bool{false, false, true, false, false}, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("fetch", Settings{
				Interval: time.Minute,
				Timeout:  time.Minute,
				ReadyToTrip: func(c Counts) bool {
					return c.ConsecutiveFailures >= 3
				},
			})
			for _, ok := range tt.outcomes {
				_ = run(b, ok)
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCountsTrackOutcomes(t *testing.T) {
	b := New("fetch", Settings{Interval: time.Minute, Timeout: time.Minute})

	require.NoError(t, run(b, true))
	c := b.Counts()
	assert.Equal(t, uint32(1), c.Requests)
	assert.Equal(t, uint32(1), c.ConsecutiveSuccesses)
	assert.Zero(t, c.TotalFailures)

	require.Error(t, run(b, false))
	c = b.Counts()
	assert.Equal(t, uint32(2), c.Requests)
	assert.Equal(t, uint32(1), c.TotalFailures)
	assert.Equal(t, uint32(1), c.ConsecutiveFailures)
	assert.Zero(t, c.ConsecutiveSuccesses)
}

func TestBreakerOpenRejectsImmediately(t *testing.T) {
	b := New("fetch", Settings{
		Interval: time.Minute,
		Timeout:  time.Minute,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})

	_ = run(b, false)
	_ = run(b, false)
	require.Equal(t, StateOpen, b.State())

	called := false
	_, err := b.Execute(func() (interface{}, error) {
		called = true
		return "ok", nil
	})
	assert.Equal(t, ErrCircuitOpen, err)
	assert.False(t, called)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New("fetch", Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})

	_ = run(b, false)
	_ = run(b, false)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, run(b, true))
	require.NoError(t, run(b, true))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := New("fetch", Settings{
		Interval: time.Minute,
		Timeout:  20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	})

	_ = run(b, false)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	_ = run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenProbeQuota(t *testing.T) {
	b := New("fetch", Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	})

	_ = run(b, false)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// Hold one probe slot open, then try a second call.
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = b.Execute(func() (interface{}, error) {
			close(started)
			<-release
			return "ok", nil
		})
	}()
	<-started

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	assert.Equal(t, ErrHalfOpenLimit, err)
	close(release)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string

	b := New("fetch", Settings{
		Interval: time.Minute,
		Timeout:  10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = run(b, false)
	_ = run(b, false)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	assert.Contains(t, transitions, "closed->open")
	assert.Contains(t, transitions, "open->half-open")
}
