// Package expander interpolates $name and ${a.b.c} references against run
// state. Values are expanded recursively through maps and slices; a string
// that consists of a single reference keeps the referenced value's type.
package expander

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Expand resolves all variable references in value against state.
func Expand(value interface{}, state map[string]interface{}) (interface{}, error) {
	switch actual := value.(type) {
	case nil:
		return nil, nil
	case string:
		return expandText(actual, state)
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			key, err := expandText(k, state)
			if err != nil {
				return nil, err
			}
			expanded, err := Expand(v, state)
			if err != nil {
				return nil, err
			}
			ret[fmt.Sprintf("%v", key)] = expanded
		}
		return ret, nil
	case []interface{}:
		ret := make([]interface{}, len(actual))
		for i, item := range actual {
			expanded, err := Expand(item, state)
			if err != nil {
				return nil, err
			}
			ret[i] = expanded
		}
		return ret, nil
	default:
		return value, nil
	}
}

// ExpandString is like Expand but always renders a string.
func ExpandString(text string, state map[string]interface{}) (string, error) {
	expanded, err := expandText(text, state)
	if err != nil {
		return "", err
	}
	if expanded == nil {
		return "", nil
	}
	if ret, ok := expanded.(string); ok {
		return ret, nil
	}
	return fmt.Sprintf("%v", expanded), nil
}

// expandText interpolates references in text. When the whole text is one
// reference the resolved value is returned unchanged so that non-string
// state (maps, numbers, step outputs) survives expansion.
func expandText(text string, state map[string]interface{}) (interface{}, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}
	if ref, ok := soleReference(text); ok {
		if value, found := Lookup(ref, state); found {
			return value, nil
		}
		return text, nil
	}

	var b strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '$' {
			b.WriteByte(text[i])
			i++
			continue
		}
		ref, width := referenceAt(text, i)
		if width == 0 {
			b.WriteByte(text[i])
			i++
			continue
		}
		if value, found := Lookup(ref, state); found {
			b.WriteString(fmt.Sprintf("%v", value))
		} else {
			b.WriteString(text[i : i+width])
		}
		i += width
	}
	return b.String(), nil
}

// soleReference reports whether text is exactly one $name or ${path}
// reference and returns the path.
func soleReference(text string) (string, bool) {
	ref, width := referenceAt(text, 0)
	if width == len(text) && width > 0 {
		return ref, true
	}
	return "", false
}

// referenceAt parses a reference starting at offset and returns its path and
// consumed width; width 0 means no reference starts there.
func referenceAt(text string, offset int) (string, int) {
	if offset >= len(text) || text[offset] != '$' {
		return "", 0
	}
	rest := text[offset+1:]
	if strings.HasPrefix(rest, "{") {
		end := strings.Index(rest, "}")
		if end < 0 {
			return "", 0
		}
		return rest[1:end], end + 2
	}
	end := 0
	for end < len(rest) && isPathByte(rest[end]) {
		end++
	}
	if end == 0 {
		return "", 0
	}
	return rest[:end], end + 1
}

func isPathByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.':
		return true
	}
	return false
}

// Lookup navigates a dotted path, with optional [idx] array access, through
// maps, slices and struct fields.
func Lookup(path string, state map[string]interface{}) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = state
	for _, segment := range segments {
		name, indexes, err := splitIndexes(segment)
		if err != nil {
			return nil, false
		}
		if name != "" {
			value, ok := property(current, name)
			if !ok {
				return nil, false
			}
			current = value
		}
		for _, index := range indexes {
			value, ok := element(current, index)
			if !ok {
				return nil, false
			}
			current = value
		}
	}
	return current, true
}

// splitIndexes splits "name[0][1]" into "name" and [0 1].
func splitIndexes(segment string) (string, []int, error) {
	open := strings.Index(segment, "[")
	if open < 0 {
		return segment, nil, nil
	}
	name := segment[:open]
	var indexes []int
	rest := segment[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed index in %q", segment)
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", nil, fmt.Errorf("malformed index in %q", segment)
		}
		index, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, err
		}
		indexes = append(indexes, index)
		rest = rest[end+1:]
	}
	return name, indexes, nil
}

func property(holder interface{}, name string) (interface{}, bool) {
	switch actual := holder.(type) {
	case map[string]interface{}:
		value, ok := actual[name]
		return value, ok
	case map[string]string:
		value, ok := actual[name]
		return value, ok
	}
	rv := reflect.ValueOf(holder)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		field := rv.FieldByName(name)
		if field.IsValid() && field.CanInterface() {
			return field.Interface(), true
		}
	}
	return nil, false
}

func element(holder interface{}, index int) (interface{}, bool) {
	rv := reflect.ValueOf(holder)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if index < 0 || index >= rv.Len() {
		return nil, false
	}
	return rv.Index(index).Interface(), true
}
