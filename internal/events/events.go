// Package events carries run lifecycle notifications from the engine to
// live observers such as the API websocket.
package events

import "time"

// EventType identifies what happened during a run
type EventType string

const (
	// EventRunStarted is emitted after setup succeeds and before the first VU starts
	EventRunStarted EventType = "run_started"
	// EventRunFinished is emitted once thresholds have been evaluated
	EventRunFinished EventType = "run_finished"
	// EventStageChanged is emitted when the ramp enters the next stage
	EventStageChanged EventType = "stage_changed"
	// EventVUsScaled is emitted when the number of active VUs changes
	EventVUsScaled EventType = "vus_scaled"
	// EventIterationAborted is emitted when an iteration is cut off by the graceful-stop window
	EventIterationAborted EventType = "iteration_aborted"
	// EventThresholdCrossed is emitted for every threshold that failed at the end of a run
	EventThresholdCrossed EventType = "threshold_crossed"
)

// Event is one run notification
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData holds the fields relevant to the event type
type EventData struct {
	Scenario  string  `json:"scenario,omitempty"`
	Stage     int     `json:"stage,omitempty"`
	Target    int     `json:"target,omitempty"`
	VUs       int     `json:"vus,omitempty"`
	Threshold string  `json:"threshold,omitempty"`
	Actual    float64 `json:"actual,omitempty"`
	Passed    *bool   `json:"passed,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func newEvent(t EventType, runID string, data EventData) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		RunID:     runID,
		Data:      data,
	}
}

// NewRunStartedEvent creates a run started event
func NewRunStartedEvent(runID, scenario string) Event {
	return newEvent(EventRunStarted, runID, EventData{Scenario: scenario})
}

// NewRunFinishedEvent creates a run finished event
func NewRunFinishedEvent(runID, scenario string, passed bool, err error) Event {
	data := EventData{Scenario: scenario, Passed: &passed}
	if err != nil {
		data.Error = err.Error()
	}
	return newEvent(EventRunFinished, runID, data)
}

// NewStageChangedEvent creates a stage change event; stage is 1-based
func NewStageChangedEvent(runID string, stage, target int) Event {
	return newEvent(EventStageChanged, runID, EventData{Stage: stage, Target: target})
}

// NewVUsScaledEvent creates a VU scaling event
func NewVUsScaledEvent(runID string, vus int) Event {
	return newEvent(EventVUsScaled, runID, EventData{VUs: vus})
}

// NewIterationAbortedEvent creates an aborted iteration event
func NewIterationAbortedEvent(runID string, err error) Event {
	data := EventData{}
	if err != nil {
		data.Error = err.Error()
	}
	return newEvent(EventIterationAborted, runID, data)
}

// NewThresholdCrossedEvent creates a failed threshold event
func NewThresholdCrossedEvent(runID, threshold string, actual float64) Event {
	return newEvent(EventThresholdCrossed, runID, EventData{Threshold: threshold, Actual: actual})
}
