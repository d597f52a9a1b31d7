package gate

import (
	"encoding/json"
	"time"
)

// Event is the envelope published on the gate queue.
type Event struct {
	Topic   string            `json:"topic"`
	Data    interface{}       `json:"data"` // *Request | *Decision
	Headers map[string]string `json:"headers,omitempty"`
}

// Event topics.
const (
	TopicRequestCreated  = "gate.requested"
	TopicDecisionCreated = "gate.decided"
)

// Request asks for a gate decision on a parked step execution.
type Request struct {
	ID          string                 `json:"id"`
	RunID       string                 `json:"runId"`
	StepID      string                 `json:"stepId"`
	ExecutionID string                 `json:"executionId"`
	Action      string                 `json:"action,omitempty"` // "service.method"
	Args        json.RawMessage        `json:"args,omitempty"`   // redacted step input
	CreatedAt   time.Time              `json:"createdAt"`
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// Decision records the outcome for a request.
type Decision struct {
	ID        string    `json:"id"` // same as request.ID
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
