// Package state models the named values a run carries between steps.
package state

import (
	"github.com/viant/bindly/state"
)

// Parameter is a named value applied to run state; DataType forces a
// conversion before assignment and Location records where a declared
// parameter binds from.
type Parameter struct {
	Name     string          `json:"name" yaml:"name"`
	Value    interface{}     `json:"value" yaml:"value"`
	DataType string          `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	Location *state.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// Parameters is an ordered parameter list; order matters, later entries may
// reference values set by earlier ones.
type Parameters []*Parameter

// Add appends a named value to the list.
func (p *Parameters) Add(name string, value interface{}) {
	*p = append(*p, &Parameter{Name: name, Value: value})
}

// Get returns the named parameter and whether it was found.
func (p Parameters) Get(name string) (*Parameter, bool) {
	for _, item := range p {
		if item.Name == name {
			return item, true
		}
	}
	return nil, false
}
