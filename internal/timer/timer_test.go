package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 10 * time.Millisecond

type recorder struct {
	mu       sync.Mutex
	ticks    []int
	warnings []int
	expired  atomic.Int32
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnTick: func(rem int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ticks = append(r.ticks, rem)
		},
		OnExpired: func() { r.expired.Add(1) },
		OnWarning: func(rem int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.warnings = append(r.warnings, rem)
		},
	}
}

func (r *recorder) Ticks() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...)
}

func (r *recorder) Warnings() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.warnings...)
}

func TestCountdownExpiresOnce(t *testing.T) {
	s := New(WithInterval(tick))
	rec := &recorder{}
	require.NoError(t, s.Start("ROOM", 5, rec.callbacks()))
	assert.Equal(t, []int{5}, rec.Ticks(), "first tick is immediate")

	require.Eventually(t, func() bool { return rec.expired.Load() == 1 }, time.Second, tick)
	assert.Equal(t, []int{5, 4, 3, 2, 1}, rec.Ticks())

	time.Sleep(5 * tick)
	assert.EqualValues(t, 1, rec.expired.Load(), "expired fires exactly once")
	st, ok := s.State("ROOM")
	require.True(t, ok)
	assert.False(t, st.Running)
	assert.Equal(t, 0, st.Remaining)
	assert.Equal(t, 0, s.Active())
}

func TestReplacementCancelsPrevious(t *testing.T) {
	s := New(WithInterval(tick))
	first, second := &recorder{}, &recorder{}
	require.NoError(t, s.Start("ROOM", 5, first.callbacks()))
	time.Sleep(2*tick + tick/2)
	require.NoError(t, s.Start("ROOM", 3, second.callbacks()))
	seen := len(first.Ticks())

	require.Eventually(t, func() bool { return second.expired.Load() == 1 }, time.Second, tick)
	time.Sleep(5 * tick)
	assert.EqualValues(t, 0, first.expired.Load(), "replaced countdown must not expire")
	assert.Len(t, first.Ticks(), seen, "replaced countdown must not tick after replacement")
	assert.Equal(t, []int{3, 2, 1}, second.Ticks())
	assert.EqualValues(t, 1, second.expired.Load())
}

func TestWarningFiresOnceAtTen(t *testing.T) {
	s := New(WithInterval(time.Millisecond))
	rec := &recorder{}
	require.NoError(t, s.Start("ROOM", 12, rec.callbacks()))
	require.Eventually(t, func() bool { return rec.expired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{10}, rec.Warnings())
}

func TestWarningSkippedWhenShorter(t *testing.T) {
	s := New(WithInterval(time.Millisecond))
	rec := &recorder{}
	require.NoError(t, s.Start("ROOM", 5, rec.callbacks()))
	require.Eventually(t, func() bool { return rec.expired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, rec.Warnings())
}

func TestStopPausesAndKeepsState(t *testing.T) {
	s := New(WithInterval(tick))
	rec := &recorder{}
	require.NoError(t, s.Start("ROOM", 50, rec.callbacks()))
	time.Sleep(3*tick + tick/2)
	s.Stop("ROOM")
	seen := len(rec.Ticks())

	st, ok := s.State("ROOM")
	require.True(t, ok)
	assert.False(t, st.Running)
	assert.Equal(t, 50, st.Duration)
	assert.Equal(t, st.Remaining, s.Remaining("ROOM"))

	time.Sleep(3 * tick)
	assert.Len(t, rec.Ticks(), seen)
	assert.EqualValues(t, 0, rec.expired.Load())

	s.Stop("UNKNOWN")
}

func TestRemainingUsesElapsedTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	s := New(WithInterval(time.Hour), WithClock(clock))
	require.NoError(t, s.Start("ROOM", 60, Callbacks{}))

	assert.Equal(t, 60, s.Remaining("ROOM"))
	advance(5 * time.Hour)
	assert.Equal(t, 55, s.Remaining("ROOM"))
	advance(100 * time.Hour)
	assert.Equal(t, 0, s.Remaining("ROOM"), "clamped at zero")

	s.Stop("ROOM")
	assert.Equal(t, 60, s.Remaining("ROOM"), "paused timer reports the stored count")
}

func TestCleanupForgetsRoom(t *testing.T) {
	s := New(WithInterval(tick))
	rec := &recorder{}
	require.NoError(t, s.Start("ROOM", 5, rec.callbacks()))
	s.Cleanup("ROOM")

	_, ok := s.State("ROOM")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Remaining("ROOM"))
	time.Sleep(7 * tick)
	assert.EqualValues(t, 0, rec.expired.Load())
}

func TestExpiredMayCleanup(t *testing.T) {
	s := New(WithInterval(tick))
	done := make(chan struct{})
	require.NoError(t, s.Start("ROOM", 2, Callbacks{
		OnExpired: func() {
			s.Cleanup("ROOM")
			close(done)
		},
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expiry callback did not complete")
	}
	_, ok := s.State("ROOM")
	assert.False(t, ok)
}

func TestRoomsAreIndependent(t *testing.T) {
	s := New(WithInterval(tick))
	a, b := &recorder{}, &recorder{}
	require.NoError(t, s.Start("A", 2, a.callbacks()))
	require.NoError(t, s.Start("B", 4, b.callbacks()))
	assert.Equal(t, 2, s.Active())
	s.Stop("B")

	require.Eventually(t, func() bool { return a.expired.Load() == 1 }, time.Second, tick)
	assert.EqualValues(t, 0, b.expired.Load())
}

func TestStartRejectsNonPositiveDuration(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Start("ROOM", 0, Callbacks{}), ErrInvalidDuration)
	_, ok := s.State("ROOM")
	assert.False(t, ok)
}

func TestStopAll(t *testing.T) {
	s := New(WithInterval(tick))
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, s.Start(id, 100, Callbacks{}))
	}
	s.StopAll()
	assert.Equal(t, 0, s.Active())
}
