package dto

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleMeetingMessage struct {
	MeetingId     int64     `json:"meetingId"`
	Url           string    `json:"url"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

type AnalyzeMeetingMessage struct {
	RequestId uuid.UUID `json:"requestId"`
	MeetingId int64     `json:"meetingId"`
}
