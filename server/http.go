package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"interview-worker/config"
	"interview-worker/constant"
	meetingHandler "interview-worker/handler"
	"interview-worker/pkg/attendee"
	"interview-worker/pkg/hume"
	"interview-worker/pkg/rabbitmq"
	"interview-worker/repository"
	"interview-worker/scheduler"
	"interview-worker/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	botClient := attendee.NewClient(cfg.Attendee)
	emotionClient := hume.NewClient(cfg.Hume)
	analysisService := service.NewAnalysisService(repo, cfg, botClient, emotionClient)
	reanalyzeService := service.NewReanalyzeService(repo, cfg)

	meetingScheduler, err := scheduler.NewScheduler(repo, analysisService, scheduler.SystemClock, *zerolog.Ctx(ctx), cfg.Interview.MaxJoinRetry)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to build scheduler")
	}
	meetingScheduler.Start(ctx)
	defer meetingScheduler.Stop()

	serviceDeps := meetingHandler.ServiceDependencies{
		Scheduler:        meetingScheduler,
		ReanalyzeService: reanalyzeService,
	}

	// Start schedule-request consumer
	scheduleConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, meetingHandler.ScheduleMeetingHandler)
	go func() {
		err := scheduleConsumer.Consume(ctx, serviceDeps)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Schedule consumer error")
		}
	}()

	// Start analyze-request consumer
	analyzeConsumer := rabbitmq.NewAnalyzeConsumer(conn, cfg.Queue, cfg.Server.Workers, meetingHandler.AnalyzeMeetingHandler)
	go func() {
		err := analyzeConsumer.Consume(ctx, serviceDeps)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Analyze consumer error")
		}
	}()

	r := gin.Default()
	addHealth(r)
	addMeetingRoutes(r, meetingScheduler, repo)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

type scheduleRequest struct {
	Url           string    `json:"url" binding:"required"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

func addMeetingRoutes(r *gin.Engine, meetingScheduler *scheduler.Scheduler, repo repository.MeetingRepository) {
	r.POST("/meetings/:id/schedule", func(c *gin.Context) {
		meetingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting id"})
			return
		}

		var req scheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !meetingScheduler.ScheduleMeeting(c.Request.Context(), meetingID, req.Url, req.ScheduledTime) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule meeting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"meeting_id": meetingID, "scheduled": true})
	})

	r.POST("/meetings/:id/cancel", func(c *gin.Context) {
		meetingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting id"})
			return
		}

		if !meetingScheduler.CancelMeeting(meetingID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meeting not scheduled"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"meeting_id": meetingID, "cancelled": true})
	})

	r.GET("/meetings/:id", func(c *gin.Context) {
		meetingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting id"})
			return
		}

		meeting, err := repo.FindMeetingById(c.Request.Context(), meetingID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
			return
		}
		c.JSON(http.StatusOK, meeting)
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
