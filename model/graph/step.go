package graph

import (
	"github.com/relforge/tagship/model/state"
)

type (
	// Action binds a step to an action service method
	Action struct {
		Service string      `json:"service,omitempty" yaml:"service,omitempty"`
		Method  string      `json:"method,omitempty" yaml:"method,omitempty"`
		Input   interface{} `json:"input,omitempty" yaml:"input,omitempty"`
	}

	// Step is a node of the release pipeline graph
	Step struct {
		ID         string           `json:"id,omitempty" yaml:"id,omitempty"`
		Name       string           `json:"name,omitempty" yaml:"name,omitempty"`
		Namespace  string           `json:"namespace,omitempty" yaml:"namespace,omitempty"`
		Init       state.Parameters `json:"init,omitempty" yaml:"init,omitempty"`
		When       string           `json:"when,omitempty" yaml:"when,omitempty"`
		Action     *Action          `json:"action,omitempty" yaml:"action,omitempty"`
		DependsOn  []string         `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
		Steps      []*Step          `json:"steps,omitempty" yaml:"steps,omitempty"`
		Post       state.Parameters `json:"post,omitempty" yaml:"post,omitempty"`
		Goto       []*Transition    `json:"goto,omitempty" yaml:"goto,omitempty"`
		Gate       *bool            `json:"gate,omitempty" yaml:"gate,omitempty"`
		Retry      *Retry           `json:"retry,omitempty" yaml:"retry,omitempty"`
		ScheduleIn string           `json:"scheduleIn,omitempty" yaml:"scheduleIn,omitempty"`
	}

	// Retry is a per-step retry policy; a run performs a single attempt
	// unless the step opts in.
	Retry struct {
		Type       string  `json:"type,omitempty" yaml:"type,omitempty"` // fixed, exponential, none
		MaxRetries int     `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
		Delay      string  `json:"delay,omitempty" yaml:"delay,omitempty"`
		Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
		MaxDelay   string  `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
	}

	// Transition routes the run to another step once a condition holds
	Transition struct {
		When string `json:"when,omitempty" yaml:"when,omitempty"`
		Step string `json:"step,omitempty" yaml:"step,omitempty"`
	}
)

// IsGated reports whether the step requires a manual gate decision before
// its action executes.
func (s *Step) IsGated() bool {
	if s.Gate == nil {
		return false
	}
	return *s.Gate
}

// WithAction sets the action for the step
func (s *Step) WithAction(service string, method string, input interface{}) *Step {
	s.Action = &Action{
		Service: service,
		Method:  method,
		Input:   input,
	}
	return s
}

// WithInit adds an initialization parameter to the step
func (s *Step) WithInit(name string, value interface{}) *Step {
	if s.Init == nil {
		s.Init = make(state.Parameters, 0)
	}
	s.Init.Add(name, value)
	return s
}

// WithPost adds a post-execution parameter to the step
func (s *Step) WithPost(name string, value interface{}) *Step {
	if s.Post == nil {
		s.Post = make(state.Parameters, 0)
	}
	s.Post.Add(name, value)
	return s
}

// WithDependsOn adds a dependency to the step
func (s *Step) WithDependsOn(stepID string) *Step {
	s.DependsOn = append(s.DependsOn, stepID)
	return s
}

// WithGoto adds a transition to the step
func (s *Step) WithGoto(when string, stepName string) *Step {
	s.Goto = append(s.Goto, &Transition{
		When: when,
		Step: stepName,
	})
	return s
}

// WithGate marks the step as gated
func (s *Step) WithGate(gated bool) *Step {
	s.Gate = &gated
	return s
}

// AddStep adds a sub-step
func (s *Step) AddStep(name string) *Step {
	sub := &Step{
		ID:        s.ID + "/" + name,
		Name:      name,
		Namespace: name,
	}
	s.Steps = append(s.Steps, sub)
	return sub
}

// Clone creates a deep copy of a step
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	clone := &Step{
		ID:         s.ID,
		Name:       s.Name,
		Namespace:  s.Namespace,
		When:       s.When,
		ScheduleIn: s.ScheduleIn,
	}

	if s.Gate != nil {
		gated := *s.Gate
		clone.Gate = &gated
	}

	if s.DependsOn != nil {
		clone.DependsOn = make([]string, len(s.DependsOn))
		copy(clone.DependsOn, s.DependsOn)
	}

	if s.Init != nil {
		clone.Init = make(state.Parameters, len(s.Init))
		copy(clone.Init, s.Init)
	}

	if s.Action != nil {
		clone.Action = &Action{
			Service: s.Action.Service,
			Method:  s.Action.Method,
			Input:   s.Action.Input,
		}
	}

	if s.Retry != nil {
		retry := *s.Retry
		clone.Retry = &retry
	}

	if s.Steps != nil {
		clone.Steps = make([]*Step, len(s.Steps))
		for i, sub := range s.Steps {
			clone.Steps[i] = sub.Clone()
		}
	}

	if s.Post != nil {
		clone.Post = make(state.Parameters, len(s.Post))
		copy(clone.Post, s.Post)
	}

	if s.Goto != nil {
		clone.Goto = make([]*Transition, len(s.Goto))
		for i, transition := range s.Goto {
			clone.Goto[i] = &Transition{
				When: transition.When,
				Step: transition.Step,
			}
		}
	}
	return clone
}
