package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"interview-worker/analytics"
	"interview-worker/config"
	"interview-worker/constant"
	"interview-worker/dto"
	"interview-worker/entities"
	"interview-worker/repository"
)

// ReanalyzeService re-runs the extraction engine over a meeting's stored
// artifacts. The upstream dump format drifts; this lets completed meetings
// be re-scored without sending a bot back in.
type ReanalyzeService interface {
	ProcessReanalyze(ctx context.Context, message dto.AnalyzeMeetingMessage) error
}

type reanalyzeService struct {
	repo repository.MeetingRepository
	cfg  *config.Config
}

func NewReanalyzeService(repo repository.MeetingRepository, cfg *config.Config) ReanalyzeService {
	return &reanalyzeService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *reanalyzeService) ProcessReanalyze(ctx context.Context, message dto.AnalyzeMeetingMessage) (err error) {
	zerolog.Ctx(ctx).Info().
		Str("request_id", message.RequestId.String()).
		Int64("meeting_id", message.MeetingId).
		Msg("processing reanalyze request")

	// A non-retryable failure is recorded and acked; retrying the message
	// cannot fix a missing transcript or an undecodable artifact.
	defer func() {
		if err != nil && errors.Is(err, ErrNonRetryable) {
			failed := &entities.AnalysisResult{
				ID:        uuid.New(),
				MeetingId: message.MeetingId,
				Status:    constant.AnalysisStatusFailed,
			}
			if createErr := s.repo.CreateAnalysisResult(ctx, failed); createErr != nil {
				zerolog.Ctx(ctx).Error().Err(createErr).Msg("failed to record failed analysis")
			}
			err = nil
		}
	}()

	meeting, err := s.repo.FindMeetingById(ctx, message.MeetingId)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to find meeting by id")
		return err
	}

	if meeting.Status != constant.MeetingStatusCompleted {
		zerolog.Ctx(ctx).Info().Int64("meeting_id", meeting.ID).Str("status", meeting.Status.String()).Msg("meeting has no completed run to reanalyze")
		return nil
	}
	if meeting.TranscriptPath == nil {
		err = fmt.Errorf("meeting %d has no stored transcript", meeting.ID)
		zerolog.Ctx(ctx).Error().Err(err).Msg("cannot reanalyze")
		return errors.Join(ErrNonRetryable, err)
	}

	rawPath := fmt.Sprintf("meetings/%d/predictions_raw.txt", meeting.ID)
	raw, err := s.getBytes(ctx, rawPath)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object", rawPath).Msg("failed to fetch raw predictions dump")
		return err
	}

	transcriptData, err := s.getBytes(ctx, *meeting.TranscriptPath)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object", *meeting.TranscriptPath).Msg("failed to fetch transcript")
		return err
	}

	var entries []analytics.TranscriptEntry
	if err := json.Unmarshal(transcriptData, &entries); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to decode stored transcript")
		return errors.Join(ErrNonRetryable, err)
	}

	analyticsPath, err := analyzeAndStore(ctx, s.repo, s.cfg, meeting.ID, string(raw), entries)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateMeeting(ctx, meeting.ID, map[string]interface{}{"analytics_path": analyticsPath}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update meeting analytics path")
		return err
	}

	zerolog.Ctx(ctx).Info().Int64("meeting_id", meeting.ID).Msg("reanalyze completed")
	return nil
}

func (s *reanalyzeService) getBytes(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.cfg.Storage.GetObject(ctx, s.cfg.MinIOBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
