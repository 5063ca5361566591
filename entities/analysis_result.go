package entities

import (
	"time"

	"github.com/google/uuid"

	"interview-worker/constant"
)

type AnalysisResult struct {
	ID         uuid.UUID               `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingId  int64                   `json:"meeting_id" gorm:"not null;index:idx_analysis_results_meeting"`
	Status     constant.AnalysisStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	FrameCount int                     `json:"frame_count" gorm:"type:integer;default:0"`
	PairCount  int                     `json:"pair_count" gorm:"type:integer;default:0"`
	ResultPath *string                 `json:"result_path" gorm:"type:varchar(500)"`
	CreatedAt  time.Time               `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time               `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}
