package execution

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/relforge/tagship/extension"
	"github.com/relforge/tagship/model/state"
	"github.com/relforge/tagship/runtime/expander"
	"github.com/viant/structology/conv"
)

// Session holds the mutable state of a run: trigger facts, init parameters
// and step outputs keyed by step namespace.
type Session struct {
	ID        string
	State     map[string]interface{}
	types     *extension.Types
	converter *conv.Converter
	mu        sync.RWMutex
	listeners []StateListener
	whenL     []WhenListener
}

// StateListener is invoked every time Session.Set overwrites an existing key
// or inserts a new one.
type StateListener func(s *Session, key string, oldVal, newVal interface{})

// WhenListener is invoked after every when-condition evaluation with the raw
// expression and the boolean outcome.
type WhenListener func(s *Session, expr string, result bool)

// Option customises a new session.
type Option func(session *Session)

// WithTypes sets the type registry used for typed parameter coercion.
func WithTypes(types *extension.Types) Option {
	return func(session *Session) {
		session.types = types
	}
}

// WithConverter sets the converter used for typed parameter coercion.
func WithConverter(converter *conv.Converter) Option {
	return func(session *Session) {
		session.converter = converter
	}
}

// WithState seeds the session state.
func WithState(state map[string]interface{}) Option {
	return func(session *Session) {
		for k, v := range state {
			session.State[k] = v
		}
	}
}

// WithStateListeners attaches listeners to the created session.
func WithStateListeners(listeners ...StateListener) Option {
	return func(session *Session) {
		session.listeners = append(session.listeners, listeners...)
	}
}

// NewSession creates a new session.
func NewSession(id string, opt ...Option) *Session {
	ret := &Session{
		ID:    id,
		State: make(map[string]interface{}),
	}
	for _, o := range opt {
		o(ret)
	}
	return ret
}

// RegisterListeners attaches callbacks invoked on every Set. Calls are made
// synchronously; listeners must return quickly and must not call back into
// the session.
func (s *Session) RegisterListeners(fn ...StateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn...)
}

// RegisterWhenListeners attaches callbacks executed after every
// when-condition evaluation.
func (s *Session) RegisterWhenListeners(fn ...WhenListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whenL = append(s.whenL, fn...)
}

// FireWhen notifies all registered when-listeners.
func (s *Session) FireWhen(expr string, result bool) {
	s.mu.RLock()
	lst := append([]WhenListener(nil), s.whenL...)
	s.mu.RUnlock()
	for _, fn := range lst {
		fn(s, expr, result)
	}
}

// Set adds or updates a state entry.
func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	old := s.State[key]
	s.State[key] = value
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s, key, old, value)
	}
}

// Append appends a value to a slice entry, creating it when absent.
func (s *Session) Append(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch existing := s.State[key].(type) {
	case nil:
		s.State[key] = []interface{}{value}
	case []interface{}:
		s.State[key] = append(existing, value)
	default:
		s.State[key] = []interface{}{existing, value}
	}
}

// Get retrieves a state entry.
func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.State[key]
	return value, exists
}

// GetString retrieves a state entry as string.
func (s *Session) GetString(key string) (string, bool) {
	value, exists := s.Get(key)
	if !exists {
		return "", false
	}
	strVal, ok := value.(string)
	return strVal, ok
}

// GetInt retrieves a state entry as int.
func (s *Session) GetInt(key string) (int, bool) {
	value, exists := s.Get(key)
	if !exists {
		return 0, false
	}
	intVal, ok := value.(int)
	return intVal, ok
}

// GetBool retrieves a state entry as bool.
func (s *Session) GetBool(key string) (bool, bool) {
	value, exists := s.Get(key)
	if !exists {
		return false, false
	}
	boolVal, ok := value.(bool)
	return boolVal, ok
}

// StepSession creates a child session seeded with from, falling back to the
// parent state for keys the seed does not define.
func (s *Session) StepSession(from map[string]interface{}, options ...Option) *Session {
	ret := NewSession(s.ID, options...)
	if len(s.listeners) > 0 {
		ret.listeners = s.listeners
	}
	if len(s.whenL) > 0 {
		ret.whenL = s.whenL
	}
	for k, v := range from {
		ret.State[k] = v
	}
	for k, v := range s.State {
		if _, ok := ret.State[k]; ok {
			continue
		}
		ret.State[k] = v
	}
	return ret
}

// Expand expands a value against the session state.
func (s *Session) Expand(value interface{}) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return expander.Expand(value, s.State)
}

// ApplyParameters expands and applies a parameter list to the session.
func (s *Session) ApplyParameters(params state.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for _, param := range params {
		value := param.Value
		if value, err = expander.Expand(param.Value, s.State); err != nil {
			return err
		}
		if value, err = s.ensureValueType(param.DataType, value); err != nil {
			return err
		}
		s.State[param.Name] = value
	}
	return nil
}

// Clone creates a copy of the session.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := NewSession(s.ID)
	clone.types = s.types
	clone.converter = s.converter
	clone.listeners = append(clone.listeners, s.listeners...)
	clone.whenL = append(clone.whenL, s.whenL...)
	for k, v := range s.State {
		clone.State[k] = v
	}
	return clone
}

// GetAll returns a copy of the session state.
func (s *Session) GetAll() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]interface{}, len(s.State))
	for k, v := range s.State {
		result[k] = v
	}
	return result
}

func (s *Session) ensureValueType(dataType string, value interface{}) (interface{}, error) {
	if dataType == "" {
		return value, nil
	}
	if s.types == nil {
		return nil, fmt.Errorf("types not initialized")
	}
	aType := s.types.Lookup(dataType)
	if aType == nil {
		return nil, fmt.Errorf("type %v not registered", dataType)
	}
	return s.TypedValue(aType.Type, value)
}

// TypedValue converts a value to the specified type.
func (s *Session) TypedValue(aType reflect.Type, value interface{}) (interface{}, error) {
	if s.converter == nil {
		s.converter = conv.NewConverter(conv.DefaultOptions())
	}
	instance := newInstancePtr(aType)
	err := s.converter.Convert(value, instance)
	if aType.Kind() == reflect.Slice {
		instance = reflect.ValueOf(instance).Elem().Interface()
	}
	return instance, err
}

// newInstancePtr creates a new instance pointer of the given type.
func newInstancePtr(t reflect.Type) interface{} {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}
