package event

import "time"

// Context carries the origin of an event within a run.
type Context struct {
	RunID       string `json:"runID"`
	StepID      string `json:"stepID"`
	EventType   string `json:"eventType"`
	Service     string `json:"service"`
	Method      string `json:"method"`
	TimeTakenMs int    `json:"timeTakenMs"`
}

// Event wraps a typed payload with its origin and creation time.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event for the given context and payload.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
