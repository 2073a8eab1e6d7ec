package events

import (
	"fmt"
	"time"

	"conveyor/pkg/api"
)

// EventType is the type of a lifecycle event.
type EventType string

const (
	TypeRunStarted    EventType = "RUN_STARTED"
	TypeRunFinished   EventType = "RUN_FINISHED"
	TypeRunAborted    EventType = "RUN_ABORTED"
	TypeStageStarted  EventType = "STAGE_STARTED"
	TypeStageFinished EventType = "STAGE_FINISHED"
)

// Event is one stage or run lifecycle notification. Events never carry
// secrets or resolved inputs.
type Event struct {
	Type          EventType  `json:"type"`
	RunID         string     `json:"run_id"`
	StageID       string     `json:"stage_id,omitempty"`
	Status        api.Status `json:"status,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Time          time.Time  `json:"time"`
	Message       string     `json:"message,omitempty"`
}

func (e Event) String() string {
	if e.StageID == "" {
		return fmt.Sprintf("%s for run %s", e.Type, e.RunID)
	}
	return fmt.Sprintf("%s for stage %s of run %s", e.Type, e.StageID, e.RunID)
}
