package policy

import (
	"context"
	"strings"
)

// Execution modes recognised by the engine.
const (
	ModeAuto   = "auto"   // execute automatically (default)
	ModeDryRun = "dryRun" // resolve inputs but skip action invocation
	ModeDeny   = "deny"   // block execution outright
)

// Decision is the outcome of evaluating an action against a policy.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionSkip
	DecisionDeny
)

// Policy holds the execution settings for the current run.
//
//   - Mode controls the high-level behaviour (auto / dryRun / deny).
//   - AllowList and BlockList filter by fully-qualified action name
//     "service.method" regardless of Mode.
type Policy struct {
	Mode      string
	AllowList []string // whitelist (empty => all)
	BlockList []string // blacklist
}

// Config is the serialisable form of a Policy, persisted with a run.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// Decide evaluates the fully-qualified action name "service.method" and
// returns whether it may run, must be skipped or must be blocked.
func (c *Config) Decide(action string) Decision {
	if c == nil {
		return DecisionAllow
	}
	if !c.isListed(action) {
		return DecisionDeny
	}
	switch c.Mode {
	case ModeDeny:
		return DecisionDeny
	case ModeDryRun:
		return DecisionSkip
	}
	return DecisionAllow
}

// isListed evaluates AllowList / BlockList by case-insensitive exact match;
// BlockList has priority.
func (c *Config) isListed(action string) bool {
	normalized := strings.ToLower(action)
	for _, b := range c.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}
	if len(c.AllowList) == 0 {
		return true
	}
	for _, a := range c.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}
	return false
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy from ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
