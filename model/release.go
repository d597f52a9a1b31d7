package model

import (
	"fmt"
	"time"

	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/model/state"
	"github.com/relforge/tagship/pattern"
)

// Permission levels a release can declare. The registry authentication step
// refuses to run unless the release grants PermissionIDToken the "write"
// level.
const (
	PermissionIDToken = "id-token"
	PermissionWrite   = "write"
)

// Release represents a release pipeline definition
type Release struct {

	// Source provides information about the origin of the definition
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`

	// Name is the unique identifier for the release
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description of the release
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version specifies the definition version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// On declares the trigger; a nil trigger means manual dispatch only
	On *Trigger `json:"on,omitempty" yaml:"on,omitempty"`

	// Permissions declares the workload identity permissions granted to runs
	Permissions map[string]string `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	// Env holds environment variables applied to every shell-backed step
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Init parameters are applied at the beginning of a run
	Init state.Parameters `json:"init,omitempty" yaml:"init,omitempty"`

	// Pipeline defines the step graph executed by a run
	Pipeline *graph.Step `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`

	// Post parameters are applied at the end of a run
	Post state.Parameters `json:"post,omitempty" yaml:"post,omitempty"`

	// Defaults configures shell and working directory fallbacks
	Defaults *Defaults `json:"defaults,omitempty" yaml:"defaults,omitempty"`

	// Config contains release-level configuration
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// Defaults carries fallbacks for shell-backed steps
type Defaults struct {
	Shell   string `json:"shell,omitempty" yaml:"shell,omitempty"`
	Workdir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`
}

// Source describes where a release definition was loaded from
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// HasPermission reports whether the release grants the permission at the
// requested level.
func (r *Release) HasPermission(name, level string) bool {
	if r == nil || len(r.Permissions) == 0 {
		return false
	}
	return r.Permissions[name] == level
}

// Validate performs a best-effort structural validation of the release. The
// returned slice is empty when the definition is sound; otherwise it holds
// human-readable error descriptions. No expression is evaluated here - only
// static properties are verified.
func (r *Release) Validate() []error {
	var issues []error

	if r.Pipeline == nil {
		issues = append(issues, fmt.Errorf("pipeline is nil"))
		return issues
	}

	seen := map[string]bool{}
	var walk func(s *graph.Step)
	walk = func(s *graph.Step) {
		if s == nil {
			return
		}
		if seen[s.ID] {
			issues = append(issues, fmt.Errorf("duplicate step id %s", s.ID))
		}
		seen[s.ID] = true
		seen[s.Name] = true

		for _, dep := range s.DependsOn {
			if dep == s.ID {
				issues = append(issues, fmt.Errorf("step %s depends on itself", s.ID))
			}
		}
		for _, sub := range s.Steps {
			walk(sub)
		}
	}
	walk(r.Pipeline)

	// With all step IDs collected, verify each dependency / goto target exists.
	var check func(*graph.Step)
	check = func(s *graph.Step) {
		if s == nil {
			return
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				issues = append(issues, fmt.Errorf("step %s depends on unknown step %s", s.ID, dep))
			}
		}
		for _, g := range s.Goto {
			if g != nil && g.Step != "" && !seen[g.Step] {
				issues = append(issues, fmt.Errorf("step %s goto refers to unknown step %s", s.ID, g.Step))
			}
		}
		for _, sub := range s.Steps {
			check(sub)
		}
	}
	check(r.Pipeline)

	// Detect dependency cycles with a colored DFS.
	edges := map[string][]string{}
	for id, s := range r.AllSteps() {
		edges[id] = append(edges[id], s.DependsOn...)
	}
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var dfs func(string) bool
	dfs = func(n string) bool {
		switch color[n] {
		case grey:
			return true
		case black:
			return false
		}
		color[n] = grey
		for _, next := range edges[n] {
			if dfs(next) {
				return true
			}
		}
		color[n] = black
		return false
	}
	for id := range edges {
		if dfs(id) {
			issues = append(issues, fmt.Errorf("release contains cyclic dependencies"))
			break
		}
	}

	// Validate retry and scheduleIn duration strings.
	var walkDurations func(*graph.Step)
	walkDurations = func(s *graph.Step) {
		if s == nil {
			return
		}
		if s.ScheduleIn != "" {
			if _, err := time.ParseDuration(s.ScheduleIn); err != nil {
				issues = append(issues, fmt.Errorf("step %s has invalid scheduleIn duration: %v", s.ID, err))
			}
		}
		if retry := s.Retry; retry != nil {
			if retry.Delay != "" {
				if _, err := time.ParseDuration(retry.Delay); err != nil {
					issues = append(issues, fmt.Errorf("step %s has invalid retry delay: %v", s.ID, err))
				}
			}
			if retry.MaxDelay != "" {
				if _, err := time.ParseDuration(retry.MaxDelay); err != nil {
					issues = append(issues, fmt.Errorf("step %s has invalid retry maxDelay: %v", s.ID, err))
				}
			}
		}
		for _, sub := range s.Steps {
			walkDurations(sub)
		}
	}
	walkDurations(r.Pipeline)

	// Compile trigger patterns so that bad globs surface at load time, never
	// at match time.
	if r.On != nil && r.On.Push != nil {
		for _, expr := range append(append([]string{}, r.On.Push.Tags...), r.On.Push.Branches...) {
			if _, err := pattern.Parse(expr); err != nil {
				issues = append(issues, fmt.Errorf("invalid trigger pattern %q: %v", expr, err))
			}
		}
	}

	return issues
}

// NewRelease creates a new release with the given name
func NewRelease(name string) *Release {
	return &Release{Name: name}
}

// WithDescription sets the description of the release
func (r *Release) WithDescription(description string) *Release {
	r.Description = description
	return r
}

// WithVersion sets the version of the release
func (r *Release) WithVersion(version string) *Release {
	r.Version = version
	return r
}

// WithTrigger sets the push trigger patterns
func (r *Release) WithTrigger(trigger *Trigger) *Release {
	r.On = trigger
	return r
}

// WithPermission grants a permission level
func (r *Release) WithPermission(name, level string) *Release {
	if r.Permissions == nil {
		r.Permissions = make(map[string]string)
	}
	r.Permissions[name] = level
	return r
}

// WithInit adds an initialization parameter to the release
func (r *Release) WithInit(name string, value interface{}) *Release {
	if r.Init == nil {
		r.Init = make(state.Parameters, 0)
	}
	r.Init.Add(name, value)
	return r
}

// WithPost adds a post-run parameter to the release
func (r *Release) WithPost(name string, value interface{}) *Release {
	if r.Post == nil {
		r.Post = make(state.Parameters, 0)
	}
	r.Post.Add(name, value)
	return r
}

// WithPipeline sets the pipeline root step
func (r *Release) WithPipeline(pipeline *graph.Step) *Release {
	r.Pipeline = pipeline
	return r
}

// NewStep creates a new step and adds it to the release pipeline
func (r *Release) NewStep(name string) *graph.Step {
	if r.Pipeline == nil {
		r.Pipeline = &graph.Step{
			ID: r.Name,
		}
	}
	step := &graph.Step{
		ID:        r.Pipeline.ID + "/" + name,
		Name:      name,
		Namespace: name,
	}
	r.Pipeline.Steps = append(r.Pipeline.Steps, step)
	return step
}

// AllSteps returns all steps in the release keyed by ID and name
func (r *Release) AllSteps() map[string]*graph.Step {
	steps := make(map[string]*graph.Step)
	r.traverseStep(r.Pipeline, steps)
	return steps
}

func (r *Release) traverseStep(step *graph.Step, steps map[string]*graph.Step) {
	if step == nil {
		return
	}
	if _, exists := steps[step.ID]; !exists {
		steps[step.ID] = step
		steps[step.Name] = step
		for _, sub := range step.Steps {
			r.traverseStep(sub, steps)
		}
	}
}

// Clone creates a deep copy of the release
func (r *Release) Clone() *Release {
	if r == nil {
		return nil
	}

	clone := &Release{
		Name:        r.Name,
		Description: r.Description,
		Version:     r.Version,
	}
	if r.Source != nil {
		clone.Source = &Source{URL: r.Source.URL}
	}
	if r.On != nil {
		clone.On = r.On.Clone()
	}
	if r.Permissions != nil {
		clone.Permissions = make(map[string]string, len(r.Permissions))
		for k, v := range r.Permissions {
			clone.Permissions[k] = v
		}
	}
	if r.Env != nil {
		clone.Env = make(map[string]string, len(r.Env))
		for k, v := range r.Env {
			clone.Env[k] = v
		}
	}
	if r.Init != nil {
		clone.Init = make(state.Parameters, len(r.Init))
		copy(clone.Init, r.Init)
	}
	if r.Pipeline != nil {
		clone.Pipeline = r.Pipeline.Clone()
	}
	if r.Post != nil {
		clone.Post = make(state.Parameters, len(r.Post))
		copy(clone.Post, r.Post)
	}
	if r.Defaults != nil {
		defaults := *r.Defaults
		clone.Defaults = &defaults
	}
	if r.Config != nil {
		clone.Config = make(map[string]interface{}, len(r.Config))
		for k, v := range r.Config {
			clone.Config[k] = v
		}
	}
	return clone
}
