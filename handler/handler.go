package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"interview-worker/dto"
	"interview-worker/scheduler"
	"interview-worker/service"
)

type ServiceDependencies struct {
	Scheduler        *scheduler.Scheduler
	ReanalyzeService service.ReanalyzeService
}

func ScheduleMeetingHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var request dto.ScheduleMeetingMessage
	if err := json.Unmarshal(msg.Body, &request); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal schedule message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Int64("meeting_id", request.MeetingId).
		Time("scheduled_time", request.ScheduledTime).
		Msg("received schedule meeting message")

	deps.Scheduler.ScheduleMeeting(ctx, request.MeetingId, request.Url, request.ScheduledTime)
	return nil
}

func AnalyzeMeetingHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var request dto.AnalyzeMeetingMessage
	if err := json.Unmarshal(msg.Body, &request); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal analyze message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("request_id", request.RequestId.String()).
		Int64("meeting_id", request.MeetingId).
		Msg("received analyze meeting message")

	err := deps.ReanalyzeService.ProcessReanalyze(ctx, request)
	if err != nil {
		return err
	}

	return nil
}
