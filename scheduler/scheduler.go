package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interview-worker/constant"
	"interview-worker/entities"
)

// MeetingStore is the persistence contract the scheduler needs: list the
// meetings still marked "scheduled" and update status/timestamps per row.
type MeetingStore interface {
	GetScheduledMeetings(ctx context.Context) ([]*entities.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id int64, status constant.MeetingStatus) error
	UpdateMeeting(ctx context.Context, id int64, updates map[string]interface{}) error
}

// RunResult carries the artifact references produced by a completed
// join-record-analyze run.
type RunResult struct {
	BotId          string
	RecordingPath  string
	TranscriptPath string
	AnalyticsPath  string
	InsightsPath   string
	ReportPath     string
}

// JoinRunner executes the full join -> record -> analyze pipeline for one
// meeting. Its outcome is reported only through the persisted meeting status.
type JoinRunner interface {
	Run(ctx context.Context, meetingID int64, url string) (*RunResult, error)
}

const urgentCheckInterval = time.Minute

type periodicJob struct {
	name     string
	interval time.Duration
	next     time.Time
	run      func()
}

// Scheduler combines the meeting queue with a periodic self-check loop and
// startup recovery of previously persisted meetings.
type Scheduler struct {
	store  MeetingStore
	runner JoinRunner
	queue  *MeetingQueue
	clock  Clock
	log    zerolog.Logger

	maxJoinRetry int

	mu      sync.Mutex
	jobs    []*periodicJob
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewScheduler(store MeetingStore, runner JoinRunner, clock Clock, log zerolog.Logger, maxJoinRetry int) (*Scheduler, error) {
	if clock == nil {
		clock = SystemClock
	}
	s := &Scheduler{
		store:        store,
		runner:       runner,
		clock:        clock,
		log:          log,
		maxJoinRetry: maxJoinRetry,
	}

	queue, err := NewMeetingQueue(s.JoinMeetingNow, clock, log)
	if err != nil {
		return nil, err
	}
	s.queue = queue

	s.addJob("check_urgent_meetings", urgentCheckInterval, s.checkUrgentMeetings)
	return s, nil
}

func (s *Scheduler) addJob(name string, interval time.Duration, run func()) {
	s.jobs = append(s.jobs, &periodicJob{
		name:     name,
		interval: interval,
		next:     s.clock.Now().Add(interval),
		run:      run,
	})
}

// Start launches the periodic-job loop and the queue processor, then reloads
// persisted meetings that are still waiting for their join time.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler is already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.schedulerLoop()
	s.queue.Start()
	s.log.Info().Msg("started meeting scheduler")

	s.loadScheduledMeetings(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
	}
	s.queue.Stop()
	s.log.Info().Msg("stopped meeting scheduler")
}

func (s *Scheduler) schedulerLoop() {
	defer close(s.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runPendingJobs()
		}
	}
}

// runPendingJobs fires every due periodic job. Job failures are contained
// here so the loop keeps ticking.
func (s *Scheduler) runPendingJobs() {
	now := s.clock.Now()

	s.mu.Lock()
	due := make([]*periodicJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !job.next.After(now) {
			job.next = now.Add(job.interval)
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.runJobSafely(job)
	}
}

func (s *Scheduler) runJobSafely(job *periodicJob) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("job", job.name).Interface("panic", r).Msg("periodic job panicked")
		}
	}()
	job.run()
}

func (s *Scheduler) checkUrgentMeetings() {
	s.log.Debug().Msg("checking for urgent meetings")
	s.queue.CheckForUrgentMeetings()
}

// loadScheduledMeetings re-registers persisted meetings whose time is still
// in the future. Meetings already in the past are skipped rather than joined
// to avoid a startup stampede.
func (s *Scheduler) loadScheduledMeetings(ctx context.Context) {
	meetings, err := s.store.GetScheduledMeetings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load scheduled meetings")
		return
	}

	now := s.clock.Now()
	for _, meeting := range meetings {
		if meeting.ScheduledTime == nil {
			continue
		}
		if !meeting.ScheduledTime.After(now) {
			s.log.Info().Int64("meeting_id", meeting.ID).Msg("skipping persisted meeting already in the past")
			continue
		}
		if s.ScheduleMeeting(ctx, meeting.ID, meeting.Url, *meeting.ScheduledTime) {
			s.log.Info().
				Int64("meeting_id", meeting.ID).
				Time("scheduled_time", *meeting.ScheduledTime).
				Msg("loaded scheduled meeting")
		}
	}
}

// ScheduleMeeting registers a meeting with the queue and persists its
// "scheduled" status. A meeting whose time has already passed is joined
// immediately instead.
func (s *Scheduler) ScheduleMeeting(ctx context.Context, meetingID int64, url string, meetingTime time.Time) bool {
	now := s.clock.Now()
	if !meetingTime.After(now) {
		s.log.Warn().Int64("meeting_id", meetingID).Msg("meeting is in the past, joining immediately")
		return s.JoinMeetingNow(meetingID, url)
	}

	if !s.queue.Schedule(meetingID, url, meetingTime, s.maxJoinRetry) {
		s.log.Error().Int64("meeting_id", meetingID).Msg("failed to schedule meeting")
		return false
	}

	if err := s.store.UpdateMeetingStatus(ctx, meetingID, constant.MeetingStatusScheduled); err != nil {
		s.log.Error().Err(err).Int64("meeting_id", meetingID).Msg("failed to persist scheduled status")
		return false
	}

	if meetingTime.Sub(now) <= urgentWindow {
		s.log.Info().Int64("meeting_id", meetingID).Time("time", meetingTime).Msg("scheduled urgent meeting (within 15 minutes)")
	} else {
		s.log.Info().Int64("meeting_id", meetingID).Time("time", meetingTime).Msg("scheduled meeting")
	}
	return true
}

// CancelMeeting removes a meeting from the queue.
func (s *Scheduler) CancelMeeting(meetingID int64) bool {
	return s.queue.Cancel(meetingID)
}

// JoinMeetingNow persists the "joining" status and hands the actual
// join-record-analyze work to a detached worker goroutine. It returns true
// once the worker is launched; the run's own outcome is reported
// asynchronously through a later status update.
func (s *Scheduler) JoinMeetingNow(meetingID int64, url string) bool {
	ctx := s.log.WithContext(context.Background())

	s.log.Info().Int64("meeting_id", meetingID).Str("url", url).Msg("joining meeting")

	now := s.clock.Now()
	err := s.store.UpdateMeeting(ctx, meetingID, map[string]interface{}{
		"status":            constant.MeetingStatusJoining,
		"actual_start_time": now,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("meeting_id", meetingID).Msg("failed to persist joining status, aborting join")
		return false
	}

	go s.runJoin(ctx, meetingID, url)
	return true
}

func (s *Scheduler) runJoin(ctx context.Context, meetingID int64, url string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Int64("meeting_id", meetingID).Interface("panic", r).Msg("join worker panicked")
			s.persistFailure(ctx, meetingID)
		}
	}()

	result, err := s.runner.Run(ctx, meetingID, url)
	if err != nil || result == nil {
		s.log.Error().Err(err).Int64("meeting_id", meetingID).Msg("failed to join or process meeting")
		s.persistFailure(ctx, meetingID)
		return
	}

	updates := map[string]interface{}{
		"status":          constant.MeetingStatusCompleted,
		"actual_end_time": s.clock.Now(),
	}
	if result.BotId != "" {
		updates["bot_id"] = result.BotId
	}
	if result.RecordingPath != "" {
		updates["recording_path"] = result.RecordingPath
	}
	if result.TranscriptPath != "" {
		updates["transcript_path"] = result.TranscriptPath
	}
	if result.AnalyticsPath != "" {
		updates["analytics_path"] = result.AnalyticsPath
	}
	if result.InsightsPath != "" {
		updates["insights_path"] = result.InsightsPath
	}
	if result.ReportPath != "" {
		updates["report_path"] = result.ReportPath
	}

	if err := s.store.UpdateMeeting(ctx, meetingID, updates); err != nil {
		s.log.Error().Err(err).Int64("meeting_id", meetingID).Msg("failed to persist completed status")
		return
	}
	s.log.Info().Int64("meeting_id", meetingID).Msg("successfully joined and processed meeting")
}

func (s *Scheduler) persistFailure(ctx context.Context, meetingID int64) {
	if err := s.store.UpdateMeetingStatus(ctx, meetingID, constant.MeetingStatusFailed); err != nil {
		s.log.Error().Err(err).Int64("meeting_id", meetingID).Msg("failed to persist failed status")
	}
}
