package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JoinFunc attempts to join a meeting immediately. It returns true when the
// join attempt succeeded. A panic inside the callback is treated as failure.
type JoinFunc func(meetingID int64, url string) bool

const (
	// The host needs time to actually start the session, so every join is
	// attempted one minute after the requested meeting time.
	joinGracePeriod = time.Minute

	// Meetings within this window of their join time get the faster retry delay.
	urgentWindow = 15 * time.Minute

	urgentRetryDelay = 3 * time.Minute
	normalRetryDelay = 5 * time.Minute

	defaultMaxRetries = 5

	queuePollInterval = time.Second
)

var ErrNilJoinCallback = errors.New("scheduler: join callback is required")

// queueEntry is one deferred join attempt. retryCount doubles as a fencing
// token: the entry is only honored at pop time if it still matches the retry
// count stored for the meeting, so superseded entries are discarded without
// touching the heap.
type queueEntry struct {
	joinTime   time.Time
	meetingID  int64
	url        string
	retryCount int
	seq        uint64
}

type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].joinTime.Equal(h[j].joinTime) {
		return h[i].joinTime.Before(h[j].joinTime)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueEntry))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

type meetingState struct {
	joinTime   time.Time
	url        string
	retryCount int
	maxRetries int
	urgent     bool
}

// MeetingQueue is a priority queue of scheduled meetings with retry support.
// A single worker goroutine polls the heap once per second and invokes the
// join callback for due entries.
type MeetingQueue struct {
	mu       sync.Mutex
	entries  entryHeap
	meetings map[int64]*meetingState
	seq      uint64

	join  JoinFunc
	clock Clock
	log   zerolog.Logger

	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewMeetingQueue(join JoinFunc, clock Clock, log zerolog.Logger) (*MeetingQueue, error) {
	if join == nil {
		return nil, ErrNilJoinCallback
	}
	if clock == nil {
		clock = SystemClock
	}
	return &MeetingQueue{
		meetings: make(map[int64]*meetingState),
		join:     join,
		clock:    clock,
		log:      log,
	}, nil
}

// Start launches the queue processor.
func (q *MeetingQueue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		q.log.Warn().Msg("meeting queue is already running")
		return
	}
	q.running = true
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.mu.Unlock()

	go q.processLoop()
	q.log.Info().Msg("started meeting queue processor")
}

// Stop halts the queue processor and waits for the worker to exit.
func (q *MeetingQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stop)
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-time.After(10 * time.Second):
	}
	q.log.Info().Msg("stopped meeting queue processor")
}

// Schedule registers a meeting to be joined one minute after scheduledTime.
// A meeting whose join time is already in the past is joined synchronously,
// bypassing the queue. Scheduling an id that is already present supersedes
// the previous schedule. maxRetries <= 0 selects the default of 5.
func (q *MeetingQueue) Schedule(meetingID int64, url string, scheduledTime time.Time, maxRetries int) bool {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	q.mu.Lock()
	if _, ok := q.meetings[meetingID]; ok {
		// Old heap entries for this id turn stale via the fencing check.
		delete(q.meetings, meetingID)
	}

	now := q.clock.Now()
	joinTime := scheduledTime.Add(joinGracePeriod)

	if !joinTime.After(now) {
		q.mu.Unlock()
		q.log.Warn().Int64("meeting_id", meetingID).Msg("meeting is scheduled in the past, joining immediately")
		return q.invokeJoin(meetingID, url)
	}

	urgent := joinTime.Sub(now) <= urgentWindow
	if urgent {
		q.log.Info().Int64("meeting_id", meetingID).Msg("meeting is within 15 minutes, marking as urgent")
	}

	q.meetings[meetingID] = &meetingState{
		joinTime:   joinTime,
		url:        url,
		retryCount: 0,
		maxRetries: maxRetries,
		urgent:     urgent,
	}
	q.push(joinTime, meetingID, url, 0)
	q.mu.Unlock()

	q.log.Info().
		Int64("meeting_id", meetingID).
		Time("scheduled_time", scheduledTime).
		Time("join_time", joinTime).
		Msg("scheduled meeting, joining 1 minute after scheduled start")
	return true
}

// Reschedule pushes a meeting back by delay and bumps its retry count.
// A zero or negative delay selects the urgency-derived default (3 minutes
// for urgent meetings, 5 otherwise). Returns false when the meeting is
// unknown or has exhausted its retries.
func (q *MeetingQueue) Reschedule(meetingID int64, delay time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.meetings[meetingID]
	if !ok {
		q.log.Warn().Int64("meeting_id", meetingID).Msg("cannot reschedule meeting: not found")
		return false
	}

	if state.retryCount >= state.maxRetries {
		q.log.Warn().
			Int64("meeting_id", meetingID).
			Int("max_retries", state.maxRetries).
			Msg("meeting has exceeded maximum retry attempts")
		return false
	}

	if delay <= 0 {
		if state.urgent {
			delay = urgentRetryDelay
		} else {
			delay = normalRetryDelay
		}
	}

	newTime := q.clock.Now().Add(delay)
	state.joinTime = newTime
	state.retryCount++
	q.push(newTime, meetingID, state.url, state.retryCount)

	retryType := "normal"
	if state.urgent {
		retryType = "urgent"
	}
	q.log.Info().
		Int64("meeting_id", meetingID).
		Str("retry_type", retryType).
		Time("join_time", newTime).
		Int("retry", state.retryCount).
		Int("max_retries", state.maxRetries).
		Msg("rescheduled meeting")
	return true
}

// Cancel removes a scheduled meeting. Its heap entries are left in place and
// discarded at pop time.
func (q *MeetingQueue) Cancel(meetingID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.meetings[meetingID]; !ok {
		return false
	}
	delete(q.meetings, meetingID)
	q.log.Info().Int64("meeting_id", meetingID).Msg("cancelled meeting")
	return true
}

// CheckForUrgentMeetings promotes pending meetings whose join time has come
// within 15 minutes. Intended to be called on a 1-minute cadence.
func (q *MeetingQueue) CheckForUrgentMeetings() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	for meetingID, state := range q.meetings {
		if !state.urgent && state.joinTime.Sub(now) <= urgentWindow {
			state.urgent = true
			q.log.Info().Int64("meeting_id", meetingID).Msg("meeting is now within 15 minutes, marking as urgent")
		}
	}
}

// Pending reports the number of meetings currently tracked.
func (q *MeetingQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.meetings)
}

// push appends a fenced heap entry. Caller must hold q.mu.
func (q *MeetingQueue) push(joinTime time.Time, meetingID int64, url string, retryCount int) {
	q.seq++
	heap.Push(&q.entries, &queueEntry{
		joinTime:   joinTime,
		meetingID:  meetingID,
		url:        url,
		retryCount: retryCount,
		seq:        q.seq,
	})
}

func (q *MeetingQueue) processLoop() {
	defer close(q.done)

	ticker := time.NewTicker(queuePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.dispatchDue()
		}
	}
}

// dispatchDue pops every due entry, validates its fencing token and invokes
// the join callback outside the lock. Failed joins are rescheduled with the
// urgency-derived delay; a meeting that exhausts its retries is dropped.
func (q *MeetingQueue) dispatchDue() {
	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.mu.Unlock()
			return
		}
		head := q.entries[0]
		if head.joinTime.After(q.clock.Now()) {
			q.mu.Unlock()
			return
		}
		heap.Pop(&q.entries)

		state, ok := q.meetings[head.meetingID]
		if !ok {
			q.mu.Unlock()
			q.log.Info().Int64("meeting_id", head.meetingID).Msg("meeting was cancelled, skipping")
			continue
		}
		if state.retryCount != head.retryCount {
			q.mu.Unlock()
			q.log.Info().Int64("meeting_id", head.meetingID).Msg("meeting retry count mismatch, skipping stale entry")
			continue
		}
		url := state.url
		q.mu.Unlock()

		if q.invokeJoin(head.meetingID, url) {
			q.mu.Lock()
			delete(q.meetings, head.meetingID)
			q.mu.Unlock()
			q.log.Info().Int64("meeting_id", head.meetingID).Msg("successfully joined meeting")
			continue
		}

		if !q.Reschedule(head.meetingID, 0) {
			q.mu.Lock()
			delete(q.meetings, head.meetingID)
			q.mu.Unlock()
			q.log.Warn().Int64("meeting_id", head.meetingID).Msg("dropping meeting after exhausting retries")
		}
	}
}

func (q *MeetingQueue) invokeJoin(meetingID int64, url string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Int64("meeting_id", meetingID).Interface("panic", r).Msg("join callback panicked")
			ok = false
		}
	}()
	return q.join(meetingID, url)
}
