// Package yml provides thin helpers over yaml.v3 nodes so that release
// definitions can be walked pair-by-pair while preserving document order.
package yml

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

type Node yaml.Node

// Root unwraps a document node to its first content node.
func Root(n *yaml.Node) *Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return (*Node)(n.Content[0])
	}
	return (*Node)(n)
}

// Lookup returns the value node for the given mapping key, or nil.
func (n *Node) Lookup(name string) *Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

// Items iterates a sequence node.
func (n *Node) Items(callback func(index int, node *Node) error) error {
	for i := 0; i < len(n.Content); i++ {
		if err := callback(i, (*Node)(n.Content[i])); err != nil {
			return err
		}
	}
	return nil
}

// Pairs iterates a mapping node in document order.
func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if err := callback(key, (*Node)(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// Interface converts the node into plain Go values: scalars, maps and
// slices.
func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.scalar()
	case yaml.MappingNode:
		aMap := make(map[string]interface{})
		for i := 0; i+1 < len(n.Content); i += 2 {
			aMap[n.Content[i].Value] = (*Node)(n.Content[i+1]).Interface()
		}
		return aMap
	case yaml.SequenceNode:
		aSlice := make([]interface{}, 0, len(n.Content))
		for i := 0; i < len(n.Content); i++ {
			aSlice = append(aSlice, (*Node)(n.Content[i]).Interface())
		}
		return aSlice
	}
	return nil
}

// Strings converts a scalar or sequence node into a string slice.
func (n *Node) Strings() []string {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}
	case yaml.SequenceNode:
		var ret []string
		for _, item := range n.Content {
			ret = append(ret, item.Value)
		}
		return ret
	}
	return nil
}

func (n *Node) scalar() interface{} {
	switch n.Tag {
	case "!!bool":
		value, err := strconv.ParseBool(n.Value)
		if err != nil {
			return n.Value
		}
		return value
	case "!!int":
		value, err := strconv.Atoi(n.Value)
		if err != nil {
			return n.Value
		}
		return value
	case "!!float":
		value, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return n.Value
		}
		return value
	case "!!null":
		return nil
	default:
		return n.Value
	}
}
