package extension

import (
	"reflect"
	"strings"

	"github.com/viant/x"
)

// Types is a registry of Go types addressable by name from release
// definitions, for example in a step init "dataType" attribute.
type Types struct {
	x.Registry
}

// Register adds a data type to the registry.
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
}

// Lookup resolves a type name, honouring slice and map modifiers such as
// "[]Artifact" or "map[string]Manifest".
func (t *Types) Lookup(dataType string) *x.Type {
	typeModifier := ""
	if idx := strings.LastIndex(dataType, "]"); idx != -1 {
		typeModifier = dataType[:idx+1]
		dataType = dataType[idx+1:]
	}
	ret := t.Registry.Lookup(dataType)
	if ret == nil {
		return nil
	}
	rType := ret.Type
	switch strings.TrimSpace(typeModifier) {
	case "[]":
		rType = reflect.SliceOf(rType)
	case "[][]":
		rType = reflect.SliceOf(reflect.SliceOf(rType))
	case "map[string]":
		rType = reflect.MapOf(reflect.TypeOf(""), rType)
	case "map[string][]":
		rType = reflect.MapOf(reflect.TypeOf(""), reflect.SliceOf(rType))
	}
	if rType != ret.Type {
		return x.NewType(rType)
	}
	return ret
}

// NewTypes creates a new type registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}
