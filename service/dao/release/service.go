// Package release loads release pipeline definitions from YAML documents and
// keeps recently parsed definitions in an expiring cache.
package release

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/relforge/tagship/internal/yml"
	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/model/state"
	"github.com/relforge/tagship/service/dao/release/parameters"
	"github.com/relforge/tagship/service/meta"
)

// Service parses release definitions. Parsed releases are cached by URL so
// repeated trigger dispatches do not reload and reparse the document.
type Service struct {
	metaService      *meta.Service
	rootStepNodeName string
	cache            *cache.Cache
	upserted         map[string]*model.Release
}

// Option customises the service.
type Option func(*Service)

// WithRootStepNodeName overrides the document key holding the step graph.
func WithRootStepNodeName(name string) Option {
	return func(s *Service) {
		s.rootStepNodeName = name
	}
}

// WithMetaService sets the document loader.
func WithMetaService(metaService *meta.Service) Option {
	return func(s *Service) {
		s.metaService = metaService
	}
}

// WithCacheTTL overrides the definition cache expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache.New(ttl, ttl)
	}
}

// New creates a release definition service.
func New(opts ...Option) *Service {
	ret := &Service{
		metaService:      meta.New(afs.New(), ""),
		rootStepNodeName: "pipeline",
		upserted:         map[string]*model.Release{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.cache == nil {
		ret.cache = cache.New(5*time.Minute, 10*time.Minute)
	}
	return ret
}

// RootStepNodeName returns the document key holding the step graph.
func (s *Service) RootStepNodeName() string {
	return s.rootStepNodeName
}

// Load loads a release definition from YAML at the specified URL, consulting
// the cache first.
func (s *Service) Load(ctx context.Context, URL string) (*model.Release, error) {
	if release, ok := s.upserted[URL]; ok {
		return release, nil
	}
	if cached, ok := s.cache.Get(URL); ok {
		return cached.(*model.Release), nil
	}
	release, err := s.load(ctx, URL)
	if err != nil {
		return nil, err
	}
	s.cache.Set(URL, release, cache.DefaultExpiration)
	return release, nil
}

// Refresh drops the cached definition so the next Load reparses the source.
func (s *Service) Refresh(URL string) {
	if URL == "" {
		s.cache.Flush()
		return
	}
	s.cache.Delete(URL)
}

// Upsert registers an in-memory definition under the given name, shadowing
// any stored document.
func (s *Service) Upsert(name string, release *model.Release) {
	s.upserted[name] = release
}

func (s *Service) load(ctx context.Context, URL string) (*model.Release, error) {
	location := URL
	if filepath.Ext(location) == "" {
		location += ".yaml"
	}
	var node yaml.Node
	if err := s.metaService.Load(ctx, location, &node); err != nil {
		return nil, fmt.Errorf("failed to load release from %s: %w", location, err)
	}
	return s.ParseRelease(URL, &node)
}

// DecodeYAML decodes a release definition from raw YAML.
func (s *Service) DecodeYAML(encoded []byte) (*model.Release, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(encoded, &node); err != nil {
		return nil, err
	}
	return s.ParseRelease("", &node)
}

// ParseRelease converts a YAML document into a release model, assigns step
// IDs and validates the result.
func (s *Service) ParseRelease(URL string, node *yaml.Node) (*model.Release, error) {
	release := &model.Release{
		Name: releaseNameFromURL(URL),
	}
	if URL != "" {
		release.Source = &model.Source{URL: URL}
	}
	if err := s.parseRelease(yml.Root(node), release); err != nil {
		return nil, fmt.Errorf("failed to parse release from %s: %w", URL, err)
	}
	if release.Name == "" {
		release.Name = anonymousName()
	}
	if release.Pipeline != nil {
		assignStepIDs(release.Pipeline, release.Name, "")
	}
	if issues := release.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return release, nil
}

func releaseNameFromURL(URL string) string {
	if URL == "" {
		return ""
	}
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var anonymousCounter int32

func anonymousName() string {
	return fmt.Sprintf("anonymous-%d", atomic.AddInt32(&anonymousCounter, 1))
}

// assignStepIDs recursively prefixes step IDs with their parent path.
func assignStepIDs(step *graph.Step, releaseName, parentID string) {
	if step.ID == "" && parentID == "" {
		step.ID = releaseName
	}
	if step.Namespace == "" && step.Name != "" {
		step.Namespace = step.Name
	}
	stepID := step.ID
	if parentID != "" {
		stepID = parentID + "/" + stepID
	}
	step.ID = stepID
	for _, sub := range step.Steps {
		assignStepIDs(sub, releaseName, stepID)
	}
}

func (s *Service) parseRelease(root *yml.Node, release *model.Release) error {
	rootName := strings.ToLower(s.rootStepNodeName)
	return root.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "name":
			release.Name = valueNode.Value
		case "description":
			release.Description = valueNode.Value
		case "version":
			release.Version = valueNode.Value
		case "on":
			trigger, err := parseTrigger(valueNode)
			if err != nil {
				return err
			}
			release.On = trigger
		case "permissions":
			release.Permissions = map[string]string{}
			return valueNode.Pairs(func(name string, levelNode *yml.Node) error {
				release.Permissions[name] = levelNode.Value
				return nil
			})
		case "env":
			release.Env = map[string]string{}
			return valueNode.Pairs(func(name string, envNode *yml.Node) error {
				release.Env[name] = envNode.Value
				return nil
			})
		case "init":
			init, err := parseParameters(valueNode)
			if err != nil {
				return fmt.Errorf("failed to parse init parameters: %w", err)
			}
			release.Init = init
		case "post":
			post, err := parseParameters(valueNode)
			if err != nil {
				return fmt.Errorf("failed to parse post parameters: %w", err)
			}
			release.Post = post
		case "defaults":
			release.Defaults = &model.Defaults{}
			return valueNode.Pairs(func(name string, defNode *yml.Node) error {
				switch strings.ToLower(name) {
				case "shell":
					release.Defaults.Shell = defNode.Value
				case "workdir":
					release.Defaults.Workdir = defNode.Value
				}
				return nil
			})
		case "config":
			if value, ok := valueNode.Interface().(map[string]interface{}); ok {
				release.Config = value
			}
		case rootName:
			pipeline, err := s.parseRootStep(valueNode)
			if err != nil {
				return fmt.Errorf("failed to parse pipeline: %w", err)
			}
			release.Pipeline = pipeline
		}
		return nil
	})
}

// parseTrigger parses the "on:" block: push with tag and branch patterns.
func parseTrigger(node *yml.Node) (*model.Trigger, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("trigger node should be a mapping")
	}
	trigger := &model.Trigger{}
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "push":
			push := &model.PushTrigger{}
			if valueNode.Kind == yaml.MappingNode {
				if err := valueNode.Pairs(func(refKey string, refNode *yml.Node) error {
					switch strings.ToLower(refKey) {
					case "tags":
						push.Tags = refNode.Strings()
					case "branches":
						push.Branches = refNode.Strings()
					}
					return nil
				}); err != nil {
					return err
				}
			}
			trigger.Push = push
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trigger, nil
}

// parseRootStep parses the pipeline node, accepting both a mapping keyed by
// step ID and an ordered sequence of step definitions.
func (s *Service) parseRootStep(node *yml.Node) (*graph.Step, error) {
	root := &graph.Step{}
	var steps []*graph.Step
	switch node.Kind {
	case yaml.MappingNode:
		if err := node.Pairs(func(key string, stepNode *yml.Node) error {
			step, err := s.parseStep(key, stepNode)
			if err != nil {
				return err
			}
			steps = append(steps, step)
			return nil
		}); err != nil {
			return nil, err
		}
	case yaml.SequenceNode:
		if err := node.Items(func(index int, itemNode *yml.Node) error {
			step, err := s.parseSequenceStep(itemNode)
			if err != nil {
				return err
			}
			steps = append(steps, step)
			return nil
		}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("pipeline node should be a mapping or a sequence")
	}
	root.Steps = steps
	return root, nil
}

// parseSequenceStep handles one item of a sequence pipeline: either a step
// definition with an explicit "id", or a single-entry mapping whose key is
// the step ID.
func (s *Service) parseSequenceStep(node *yml.Node) (*graph.Step, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("pipeline sequence items must be mappings")
	}
	if id := node.Lookup("id"); id != nil {
		return s.parseStep(id.Value, node)
	}
	if len(node.Content) == 2 {
		key := node.Content[0].Value
		return s.parseStep(key, (*yml.Node)(node.Content[1]))
	}
	return nil, fmt.Errorf("pipeline sequence item needs an id")
}

// parseStep converts a YAML node into a pipeline step.
func (s *Service) parseStep(id string, node *yml.Node) (*graph.Step, error) {
	step := &graph.Step{
		ID:   id,
		Name: id,
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("step node should be a mapping")
	}
	var actionScalar string
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "id":
			// consumed by the caller
		case "action":
			if valueNode.Kind == yaml.ScalarNode {
				actionScalar = valueNode.Value
				return nil
			}
			return parseAction(step, valueNode)
		case "service":
			if step.Action == nil {
				step.Action = &graph.Action{}
			}
			step.Action.Service = valueNode.Value
		case "method":
			if step.Action == nil {
				step.Action = &graph.Action{}
			}
			step.Action.Method = valueNode.Value
		case "with", "input":
			if step.Action == nil {
				step.Action = &graph.Action{}
			}
			step.Action.Input = valueNode.Interface()
		case "when":
			step.When = valueNode.Value
		case "name":
			step.Name = valueNode.Value
		case "namespace":
			step.Namespace = valueNode.Value
		case "init":
			params, err := parseParameters(valueNode)
			if err != nil {
				return err
			}
			step.Init = params
		case "post":
			params, err := parseParameters(valueNode)
			if err != nil {
				return err
			}
			step.Post = params
		case "dependson":
			step.DependsOn = valueNode.Strings()
			if step.DependsOn == nil {
				return fmt.Errorf("dependsOn should be a string or a slice of strings")
			}
		case "goto":
			return parseTransitions(step, valueNode)
		case "gate":
			flag, ok := valueNode.Interface().(bool)
			if !ok {
				return fmt.Errorf("gate should be a boolean")
			}
			step.Gate = &flag
		case "schedulein":
			step.ScheduleIn = valueNode.Value
		case "retry":
			retry, err := parseRetry(valueNode)
			if err != nil {
				return err
			}
			step.Retry = retry
		default:
			// A mapping value introduces a sub step.
			if valueNode.Kind == yaml.MappingNode {
				subStep, err := s.parseStep(key, valueNode)
				if err != nil {
					return err
				}
				step.Steps = append(step.Steps, subStep)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if actionScalar != "" {
		applyActionScalar(step, actionScalar)
	}
	if step.Namespace == "" {
		step.Namespace = step.Name
	}
	return step, nil
}

// applyActionScalar resolves a scalar action attribute. With a service
// already declared the scalar names the method; otherwise it is parsed as
// "service:method".
func applyActionScalar(step *graph.Step, value string) {
	if step.Action == nil {
		step.Action = &graph.Action{}
	}
	if step.Action.Service != "" && !strings.Contains(value, ":") {
		step.Action.Method = value
		return
	}
	parts := strings.Split(value, ":")
	step.Action.Service = parts[0]
	if len(parts) > 1 {
		step.Action.Method = parts[1]
	}
}

// parseAction parses a service/method/input action mapping.
func parseAction(step *graph.Step, node *yml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		if step.Action == nil {
			step.Action = &graph.Action{}
		}
		return node.Pairs(func(key string, valueNode *yml.Node) error {
			switch strings.ToLower(key) {
			case "service":
				step.Action.Service = valueNode.Value
			case "method":
				step.Action.Method = valueNode.Value
			case "input":
				step.Action.Input = valueNode.Interface()
			}
			return nil
		})
	}
	return nil
}

func parseTransitions(step *graph.Step, node *yml.Node) error {
	parseOne := func(transNode *yml.Node) error {
		if transNode.Kind != yaml.MappingNode {
			return fmt.Errorf("transition node should be a mapping")
		}
		transition := &graph.Transition{}
		if err := transNode.Pairs(func(key string, valueNode *yml.Node) error {
			switch strings.ToLower(key) {
			case "when":
				transition.When = valueNode.Value
			case "step":
				transition.Step = valueNode.Value
			}
			return nil
		}); err != nil {
			return err
		}
		step.Goto = append(step.Goto, transition)
		return nil
	}
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Items(func(index int, itemNode *yml.Node) error {
			return parseOne(itemNode)
		})
	case yaml.MappingNode:
		return parseOne(node)
	}
	return fmt.Errorf("goto should be a mapping or a sequence")
}

func parseRetry(node *yml.Node) (*graph.Retry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("retry node should be a mapping")
	}
	retry := &graph.Retry{}
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "type":
			retry.Type = valueNode.Value
		case "maxretries":
			count, ok := valueNode.Interface().(int)
			if !ok {
				return fmt.Errorf("maxRetries should be an integer")
			}
			retry.MaxRetries = count
		case "delay":
			retry.Delay = valueNode.Value
		case "multiplier":
			switch actual := valueNode.Interface().(type) {
			case float64:
				retry.Multiplier = actual
			case int:
				retry.Multiplier = float64(actual)
			default:
				return fmt.Errorf("multiplier should be a number")
			}
		case "maxdelay":
			retry.MaxDelay = valueNode.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return retry, nil
}

// parseParameters parses an init/post mapping, recognising typed parameter
// declarations such as "manifest[manifest.Manifest](resource/Cargo.toml)".
func parseParameters(node *yml.Node) (state.Parameters, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameters node should be a mapping")
	}
	var params state.Parameters
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		if strings.Contains(key, "[") && !strings.HasSuffix(key, "[]") {
			parameter, err := parameters.Parse([]byte(key))
			if err != nil {
				return fmt.Errorf("failed to parse parameter: %w", err)
			}
			parameter.Value = valueNode.Interface()
			params = append(params, parameter)
			return nil
		}
		params = append(params, &state.Parameter{Name: key, Value: valueNode.Interface()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}
