package model

import (
	"strings"
	"time"

	"github.com/relforge/tagship/pattern"
)

// Ref kinds recognised by ParseRef.
const (
	RefKindTag    = "tag"
	RefKindBranch = "branch"
)

const (
	tagRefPrefix    = "refs/tags/"
	branchRefPrefix = "refs/heads/"
)

type (
	// Trigger declares the events a release reacts to. An empty trigger
	// means manual dispatch only.
	Trigger struct {
		Push *PushTrigger `json:"push,omitempty" yaml:"push,omitempty"`
	}

	// PushTrigger matches push events against ref glob patterns. Tag events
	// are tested against Tags, branch events against Branches; an empty
	// pattern list matches nothing.
	PushTrigger struct {
		Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
		Branches []string `json:"branches,omitempty" yaml:"branches,omitempty"`
	}

	// RefEvent is a push notification for a version-control ref
	RefEvent struct {
		Ref        string    `json:"ref"`
		Kind       string    `json:"kind"`
		Name       string    `json:"name"`
		SHA        string    `json:"sha,omitempty"`
		Repository string    `json:"repository,omitempty"`
		Actor      string    `json:"actor,omitempty"`
		ReceivedAt time.Time `json:"receivedAt,omitempty"`
	}
)

// ParseRef builds a RefEvent from a full ref such as "refs/tags/v1.2.3",
// deriving Kind and the short Name. Refs outside refs/tags and refs/heads
// are treated as branch names given verbatim.
func ParseRef(ref string) RefEvent {
	ev := RefEvent{Ref: ref}
	switch {
	case strings.HasPrefix(ref, tagRefPrefix):
		ev.Kind = RefKindTag
		ev.Name = ref[len(tagRefPrefix):]
	case strings.HasPrefix(ref, branchRefPrefix):
		ev.Kind = RefKindBranch
		ev.Name = ref[len(branchRefPrefix):]
	default:
		ev.Kind = RefKindBranch
		ev.Name = ref
	}
	return ev
}

// Matches reports whether the trigger fires for the supplied event.
func (t *Trigger) Matches(ev RefEvent) bool {
	if t == nil || t.Push == nil {
		return false
	}
	switch ev.Kind {
	case RefKindTag:
		return pattern.MatchAny(t.Push.Tags, ev.Name)
	case RefKindBranch:
		return pattern.MatchAny(t.Push.Branches, ev.Name)
	}
	return false
}

// Clone creates a deep copy of the trigger
func (t *Trigger) Clone() *Trigger {
	if t == nil {
		return nil
	}
	clone := &Trigger{}
	if t.Push != nil {
		clone.Push = &PushTrigger{
			Tags:     append([]string(nil), t.Push.Tags...),
			Branches: append([]string(nil), t.Push.Branches...),
		}
	}
	return clone
}
