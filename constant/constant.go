package constant

type MeetingStatus string

const (
	MeetingStatusPending   MeetingStatus = "pending"
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusJoining   MeetingStatus = "joining"
	MeetingStatusCompleted MeetingStatus = "completed"
	MeetingStatusFailed    MeetingStatus = "failed"
)

func (s MeetingStatus) String() string {
	return string(s)
}

type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "PENDING"
	AnalysisStatusProcessing AnalysisStatus = "PROCESSING"
	AnalysisStatusFailed     AnalysisStatus = "FAILED"
	AnalysisStatusCompleted  AnalysisStatus = "COMPLETED"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
