package models

import "time"

type RunState string

const (
	StateDone       RunState = "DONE"
	StateInProgress RunState = "IN_PROGRESS"
)

// MatchmakingStatus is the process-wide record of the last full-population run.
type MatchmakingStatus struct {
	LastStarted  *time.Time `json:"last_started,omitempty" yaml:"last_started,omitempty" dynamodbav:"last_started,omitempty"`
	LastFinished *time.Time `json:"last_finished,omitempty" yaml:"last_finished,omitempty" dynamodbav:"last_finished,omitempty"`
	Status       RunState   `json:"status" yaml:"status" dynamodbav:"status"`
}

// DefaultStatus is what a store returns before any status was persisted.
func DefaultStatus() *MatchmakingStatus {
	return &MatchmakingStatus{Status: StateDone}
}

func (s *MatchmakingStatus) Start(now time.Time) {
	s.Status = StateInProgress
	s.LastStarted = &now
}

func (s *MatchmakingStatus) Stop(now time.Time) {
	s.Status = StateDone
	s.LastFinished = &now
}

func (s *MatchmakingStatus) InProgress() bool {
	return s.Status == StateInProgress
}
