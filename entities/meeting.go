package entities

import (
	"time"

	"interview-worker/constant"
)

type Meeting struct {
	ID              int64                  `json:"id" gorm:"primary_key;autoIncrement"`
	Url             string                 `json:"url" gorm:"type:text;not null"`
	Title           *string                `json:"title" gorm:"type:varchar(255)"`
	CandidateName   *string                `json:"candidate_name" gorm:"type:varchar(255)"`
	ScheduledTime   *time.Time             `json:"scheduled_time" gorm:"type:timestamptz;index:idx_meetings_scheduled_time"`
	ActualStartTime *time.Time             `json:"actual_start_time" gorm:"type:timestamptz"`
	ActualEndTime   *time.Time             `json:"actual_end_time" gorm:"type:timestamptz"`
	Status          constant.MeetingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_meetings_status"`
	BotId           *string                `json:"bot_id" gorm:"type:varchar(100)"`
	RecordingPath   *string                `json:"recording_path" gorm:"type:varchar(500)"`
	TranscriptPath  *string                `json:"transcript_path" gorm:"type:varchar(500)"`
	AnalyticsPath   *string                `json:"analytics_path" gorm:"type:varchar(500)"`
	InsightsPath    *string                `json:"insights_path" gorm:"type:varchar(500)"`
	ReportPath      *string                `json:"report_path" gorm:"type:varchar(500)"`
	CreatedAt       time.Time              `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time              `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Meeting) TableName() string {
	return "meetings"
}
