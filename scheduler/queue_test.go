package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestQueue(t *testing.T, clock Clock, join JoinFunc) *MeetingQueue {
	t.Helper()
	q, err := NewMeetingQueue(join, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMeetingQueue: %v", err)
	}
	return q
}

func TestNewMeetingQueueRequiresCallback(t *testing.T) {
	if _, err := NewMeetingQueue(nil, SystemClock, zerolog.Nop()); err != ErrNilJoinCallback {
		t.Fatalf("expected ErrNilJoinCallback, got %v", err)
	}
}

func TestScheduleAppliesGraceOffset(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, clock, func(int64, string) bool { return true })

	meetingTime := clock.Now().Add(30 * time.Minute)
	if !q.Schedule(7, "https://example.com/j/7", meetingTime, 0) {
		t.Fatalf("expected schedule to succeed")
	}

	q.mu.Lock()
	state, ok := q.meetings[7]
	q.mu.Unlock()
	if !ok {
		t.Fatalf("meeting not tracked")
	}
	want := meetingTime.Add(time.Minute)
	if !state.joinTime.Equal(want) {
		t.Fatalf("join time = %v, want %v (scheduled + 1 minute grace)", state.joinTime, want)
	}
	if state.urgent {
		t.Fatalf("meeting 31 minutes out must not be urgent")
	}
}

func TestSchedulePastTimeBypassesQueue(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	var attempts int32
	q := newTestQueue(t, clock, func(int64, string) bool {
		atomic.AddInt32(&attempts, 1)
		return true
	})

	if !q.Schedule(3, "url", clock.Now().Add(-10*time.Minute), 0) {
		t.Fatalf("expected immediate join result to be returned")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("join attempts = %d, want 1", got)
	}
	if q.Pending() != 0 {
		t.Fatalf("past meeting must not be queued")
	}
	if len(q.entries) != 0 {
		t.Fatalf("heap must stay empty on bypass")
	}
}

func TestSchedulePastTimeReturnsCallbackResult(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, clock, func(int64, string) bool { return false })

	if q.Schedule(3, "url", clock.Now().Add(-10*time.Minute), 0) {
		t.Fatalf("expected failing callback result to propagate")
	}
}

func TestFencingDiscardsStaleEntries(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	var attempts int32
	q := newTestQueue(t, clock, func(int64, string) bool {
		atomic.AddInt32(&attempts, 1)
		return true
	})

	meetingTime := clock.Now().Add(10 * time.Minute)
	if !q.Schedule(1, "url", meetingTime, 5) {
		t.Fatalf("schedule failed")
	}
	if !q.Reschedule(1, 20*time.Minute) {
		t.Fatalf("first reschedule failed")
	}
	if !q.Reschedule(1, 30*time.Minute) {
		t.Fatalf("second reschedule failed")
	}

	// First schedule's due time: only a stale entry is due.
	clock.Advance(11 * time.Minute)
	q.dispatchDue()
	if got := atomic.LoadInt32(&attempts); got != 0 {
		t.Fatalf("stale entry fired: attempts = %d, want 0", got)
	}

	// First reschedule's due time: still stale.
	clock.Advance(9 * time.Minute)
	q.dispatchDue()
	if got := atomic.LoadInt32(&attempts); got != 0 {
		t.Fatalf("superseded entry fired: attempts = %d, want 0", got)
	}

	// Final reschedule's due time: exactly one join.
	clock.Advance(10 * time.Minute)
	q.dispatchDue()
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	if q.Pending() != 0 {
		t.Fatalf("joined meeting must be removed from state")
	}
}

func TestUrgencyPromotion(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, clock, func(int64, string) bool { return true })

	// Join time is 21 minutes out, beyond the 15-minute window.
	if !q.Schedule(5, "url", clock.Now().Add(20*time.Minute), 0) {
		t.Fatalf("schedule failed")
	}
	q.mu.Lock()
	urgent := q.meetings[5].urgent
	q.mu.Unlock()
	if urgent {
		t.Fatalf("meeting must not start urgent")
	}

	clock.Advance(6 * time.Minute)
	q.CheckForUrgentMeetings()

	q.mu.Lock()
	urgent = q.meetings[5].urgent
	q.mu.Unlock()
	if !urgent {
		t.Fatalf("meeting within 15 minutes must be promoted to urgent")
	}
}

func TestScheduleWithinWindowIsUrgentImmediately(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, clock, func(int64, string) bool { return true })

	if !q.Schedule(6, "url", clock.Now().Add(5*time.Minute), 0) {
		t.Fatalf("schedule failed")
	}
	q.mu.Lock()
	urgent := q.meetings[6].urgent
	q.mu.Unlock()
	if !urgent {
		t.Fatalf("meeting 6 minutes out must be urgent at schedule time")
	}
}

func TestRetryExhaustionDropsMeeting(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	var attempts int32
	q := newTestQueue(t, clock, func(int64, string) bool {
		atomic.AddInt32(&attempts, 1)
		return false
	})

	// Urgent meeting, so failed attempts come back every 3 minutes.
	if !q.Schedule(9, "url", clock.Now().Add(2*time.Minute), 2) {
		t.Fatalf("schedule failed")
	}

	for i := 0; i < 10; i++ {
		clock.Advance(3 * time.Minute)
		q.dispatchDue()
	}

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", got)
	}
	if q.Pending() != 0 {
		t.Fatalf("exhausted meeting must be dropped from state")
	}
}

func TestRescheduleUnknownMeeting(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, clock, func(int64, string) bool { return true })

	if q.Reschedule(42, 0) {
		t.Fatalf("rescheduling an unknown meeting must fail")
	}
}

func TestCancelDiscardsPendingEntry(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	var attempts int32
	q := newTestQueue(t, clock, func(int64, string) bool {
		atomic.AddInt32(&attempts, 1)
		return true
	})

	if !q.Schedule(4, "url", clock.Now().Add(5*time.Minute), 0) {
		t.Fatalf("schedule failed")
	}
	if !q.Cancel(4) {
		t.Fatalf("cancel of a scheduled meeting must succeed")
	}
	if q.Cancel(4) {
		t.Fatalf("double cancel must fail")
	}

	clock.Advance(10 * time.Minute)
	q.dispatchDue()
	if got := atomic.LoadInt32(&attempts); got != 0 {
		t.Fatalf("cancelled meeting fired: attempts = %d, want 0", got)
	}
}

func TestDispatchInOrder(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	var order []int64
	q := newTestQueue(t, clock, func(meetingID int64, _ string) bool {
		order = append(order, meetingID)
		return true
	})

	q.Schedule(2, "url", clock.Now().Add(8*time.Minute), 0)
	q.Schedule(1, "url", clock.Now().Add(4*time.Minute), 0)
	q.Schedule(3, "url", clock.Now().Add(12*time.Minute), 0)

	clock.Advance(15 * time.Minute)
	q.dispatchDue()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("dispatch order = %v, want [1 2 3]", order)
	}
}

func TestJoinPanicTreatedAsFailure(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC))
	var attempts int32
	q := newTestQueue(t, clock, func(int64, string) bool {
		atomic.AddInt32(&attempts, 1)
		panic("boom")
	})

	if !q.Schedule(8, "url", clock.Now().Add(2*time.Minute), 1) {
		t.Fatalf("schedule failed")
	}

	clock.Advance(3 * time.Minute)
	q.dispatchDue()
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	// Panic counts as a failed attempt, so a retry must be pending.
	if q.Pending() != 1 {
		t.Fatalf("panicked join must leave a rescheduled meeting")
	}
}
