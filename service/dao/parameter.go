package dao

// Parameter is a named filter value for List operations.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a filter parameter; multiple values form a set match.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
