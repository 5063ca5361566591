package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"interview-worker/constant"
	"interview-worker/entities"
)

type MeetingRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	FindMeetingById(ctx context.Context, id int64) (*entities.Meeting, error)
	GetScheduledMeetings(ctx context.Context) ([]*entities.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id int64, status constant.MeetingStatus) error
	UpdateMeeting(ctx context.Context, id int64, updates map[string]interface{}) error
	CreateAnalysisResult(ctx context.Context, result *entities.AnalysisResult) error
	UpdateAnalysisResult(ctx context.Context, id uuid.UUID, status constant.AnalysisStatus, updates map[string]interface{}) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) MeetingRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().Transaction(func(tx *gorm.DB) error {
		err := callback(ctx)
		if err != nil {
			return err
		}
		return nil
	}, opts...)
}

func (r *repo) FindMeetingById(ctx context.Context, id int64) (*entities.Meeting, error) {
	meeting := &entities.Meeting{}
	err := r.GetDB().WithContext(ctx).First(meeting, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return meeting, nil
}

// GetScheduledMeetings returns every meeting still marked "scheduled",
// ordered by scheduled time. Used by the scheduler on startup to rebuild
// its queue after a restart.
func (r *repo) GetScheduledMeetings(ctx context.Context) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.MeetingStatusScheduled).
		Order("scheduled_time ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

func (r *repo) UpdateMeetingStatus(ctx context.Context, id int64, status constant.MeetingStatus) error {
	return r.UpdateMeeting(ctx, id, map[string]interface{}{"status": status})
}

func (r *repo) UpdateMeeting(ctx context.Context, id int64, updates map[string]interface{}) error {
	meeting := &entities.Meeting{}
	updates["updated_at"] = time.Now()
	err := r.GetDB().WithContext(ctx).Model(meeting).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return err
	}
	return nil
}

func (r *repo) CreateAnalysisResult(ctx context.Context, result *entities.AnalysisResult) error {
	return r.GetDB().WithContext(ctx).Create(result).Error
}

func (r *repo) UpdateAnalysisResult(ctx context.Context, id uuid.UUID, status constant.AnalysisStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	updates["updated_at"] = time.Now()
	err := r.GetDB().WithContext(ctx).Model(&entities.AnalysisResult{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return err
	}
	return nil
}
