package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsOnEveryTick(t *testing.T) {
	mock := clock.NewMock()
	var runs atomic.Int32

	s := New(5*time.Minute, func() { runs.Add(1) }, WithClock(mock))
	s.Start()
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Equal(t, int32(0), runs.Load())

	mock.Add(5 * time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	mock.Add(5 * time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	mock := clock.NewMock()
	var runs atomic.Int32

	s := New(time.Minute, func() { runs.Add(1) }, WithClock(mock))
	s.Stop()
	assert.False(t, s.IsRunning())

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	mock.Add(time.Hour)
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_RealClock(t *testing.T) {
	var runs atomic.Int32

	s := New(5*time.Millisecond, func() { runs.Add(1) })
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
}
