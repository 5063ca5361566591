package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"interview-worker/analytics"
	"interview-worker/config"
	"interview-worker/constant"
	"interview-worker/entities"
	"interview-worker/pkg/attendee"
	"interview-worker/pkg/hume"
	"interview-worker/repository"
	"interview-worker/scheduler"
)

var ErrNonRetryable = errors.New("non-retryable error")

// AnalysisService runs the full join -> record -> analyze pipeline for one
// meeting: send in a bot, wait for the recording, score it for emotion,
// align the scores against the transcript, and persist the artifacts.
type AnalysisService interface {
	Run(ctx context.Context, meetingID int64, url string) (*scheduler.RunResult, error)
}

type analysisService struct {
	repo     repository.MeetingRepository
	cfg      *config.Config
	bots     *attendee.Client
	emotions *hume.Client
}

func NewAnalysisService(repo repository.MeetingRepository, cfg *config.Config, bots *attendee.Client, emotions *hume.Client) AnalysisService {
	return &analysisService{
		repo:     repo,
		cfg:      cfg,
		bots:     bots,
		emotions: emotions,
	}
}

// analysisDocument is the persisted output of one analysis run.
type analysisDocument struct {
	MeetingId int64                          `json:"meeting_id"`
	RawResult string                         `json:"raw_result"`
	Frames    []analytics.EmotionFrame       `json:"emotion_frames"`
	Segments  []analytics.TranscriptSegment  `json:"segments"`
	Pairs     []analytics.QuestionAnswerPair `json:"filtered_qa_pairs"`
}

func (s *analysisService) Run(ctx context.Context, meetingID int64, url string) (*scheduler.RunResult, error) {
	zerolog.Ctx(ctx).Info().Int64("meeting_id", meetingID).Msg("starting meeting pipeline")

	meeting, err := s.repo.FindMeetingById(ctx, meetingID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to find meeting by id")
		return nil, err
	}

	if meeting.Status != constant.MeetingStatusJoining {
		zerolog.Ctx(ctx).Info().Int64("meeting_id", meetingID).Str("status", meeting.Status.String()).Msg("meeting is not in joining state")
		return nil, fmt.Errorf("meeting %d is not in joining state", meetingID)
	}

	botID, err := s.bots.CreateBot(ctx, url)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create bot")
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("bot_id", botID).Msg("bot dispatched to meeting")

	status, err := s.bots.AwaitCompletion(ctx, botID)
	if err != nil && !errors.Is(err, attendee.ErrBotTimedOut) {
		zerolog.Ctx(ctx).Error().Err(err).Str("bot_id", botID).Msg("bot did not complete")
		return nil, err
	}
	if status.RecordingState != "complete" {
		return nil, fmt.Errorf("recording unavailable for bot %s", botID)
	}

	tempDir := filepath.Join("temp", fmt.Sprintf("meeting-%d", meetingID))
	defer os.RemoveAll(tempDir)
	if err = os.MkdirAll(tempDir, os.ModePerm); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create temp directory")
		return nil, errors.Join(ErrNonRetryable, err)
	}

	recordingFile := filepath.Join(tempDir, "recording.mp4")
	zerolog.Ctx(ctx).Info().Str("recording_file", recordingFile).Msg("downloading recording")
	if err = s.bots.DownloadRecording(ctx, botID, recordingFile); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to download recording")
		return nil, err
	}

	entries, err := s.bots.GetTranscript(ctx, botID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to download transcript")
		return nil, err
	}

	prefix := fmt.Sprintf("meetings/%d", meetingID)
	recordingPath := prefix + "/recording.mp4"
	if _, err = s.cfg.Storage.FPutObject(ctx, s.cfg.MinIOBucket, recordingPath, recordingFile, minio.PutObjectOptions{}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to upload recording")
		return nil, err
	}

	transcriptPath := prefix + "/transcript_raw.json"
	if err = putJSON(ctx, s.cfg, transcriptPath, entries); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to upload transcript")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Msg("submitting recording for emotion analysis")
	jobID, err := s.emotions.SubmitRecording(ctx, recordingFile)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to submit recording for analysis")
		return nil, err
	}
	if err = s.emotions.AwaitJob(ctx, jobID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("emotion analysis job did not complete")
		return nil, err
	}

	raw, err := s.emotions.RawPredictions(ctx, jobID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to fetch raw predictions")
		return nil, err
	}

	rawPath := prefix + "/predictions_raw.txt"
	if err = putBytes(ctx, s.cfg, rawPath, []byte(raw), "text/plain"); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to upload raw predictions")
		return nil, err
	}

	analyticsPath, err := analyzeAndStore(ctx, s.repo, s.cfg, meetingID, raw, entries)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int64("meeting_id", meetingID).Msg("meeting pipeline completed")
	return &scheduler.RunResult{
		BotId:          botID,
		RecordingPath:  recordingPath,
		TranscriptPath: transcriptPath,
		AnalyticsPath:  analyticsPath,
	}, nil
}

// analyzeAndStore runs the extraction engine over a raw predictions dump and
// transcript, stores the resulting document and records an analysis row. It
// is shared between the live pipeline and reanalysis of stored artifacts.
func analyzeAndStore(ctx context.Context, repo repository.MeetingRepository, cfg *config.Config, meetingID int64, raw string, entries []analytics.TranscriptEntry) (string, error) {
	result := &entities.AnalysisResult{
		ID:        uuid.New(),
		MeetingId: meetingID,
		Status:    constant.AnalysisStatusProcessing,
	}
	if err := repo.CreateAnalysisResult(ctx, result); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to record analysis run")
		return "", err
	}

	frames := analytics.ExtractEmotionFrames(raw)
	segments := analytics.BuildSegments(entries, frames)
	rendered := analytics.RenderTranscript(entries)
	pairs := analytics.FilterRelevantQuestions(segments, rendered, cfg.Interview.CandidateName)

	doc := analysisDocument{
		MeetingId: meetingID,
		RawResult: raw,
		Frames:    frames,
		Segments:  segments,
		Pairs:     pairs,
	}

	analyticsPath := fmt.Sprintf("meetings/%d/analysis.json", meetingID)
	if err := putJSON(ctx, cfg, analyticsPath, doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to upload analysis document")
		if updateErr := repo.UpdateAnalysisResult(ctx, result.ID, constant.AnalysisStatusFailed, nil); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to update analysis status")
		}
		return "", err
	}

	err := repo.UpdateAnalysisResult(ctx, result.ID, constant.AnalysisStatusCompleted, map[string]interface{}{
		"frame_count": len(frames),
		"pair_count":  len(pairs),
		"result_path": analyticsPath,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to record analysis result")
		return "", err
	}

	return analyticsPath, nil
}

func putJSON(ctx context.Context, cfg *config.Config, objectName string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Join(ErrNonRetryable, err)
	}
	return putBytes(ctx, cfg, objectName, data, "application/json")
}

func putBytes(ctx context.Context, cfg *config.Config, objectName string, data []byte, contentType string) error {
	_, err := cfg.Storage.PutObject(ctx, cfg.MinIOBucket, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	return err
}
