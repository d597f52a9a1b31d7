// Package pattern implements the ref glob grammar used by release triggers:
// literal runes, '*' (any run within a path segment), '**' (any run
// including '/'), '?' (a single rune other than '/') and character classes
// such as [a-z0-9] with '^' negation.
package pattern

import (
	"fmt"
	"strings"

	"github.com/viant/parsly"
)

type elementKind int

const (
	kindLiteral elementKind = iota
	kindStar
	kindGlobStar
	kindQuestion
	kindClass
)

type element struct {
	kind    elementKind
	literal string
	class   *class
}

// Pattern is a compiled ref glob.
type Pattern struct {
	source   string
	elements []element
}

// Source returns the original glob expression.
func (p *Pattern) Source() string {
	return p.source
}

// Parse compiles a glob expression.
func Parse(expr string) (*Pattern, error) {
	if expr == "" {
		return nil, fmt.Errorf("pattern is empty")
	}
	cursor := parsly.NewCursor("", []byte(expr), 0)
	var elements []element
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(globStarToken, starToken, questionToken, classToken, literalToken)
		switch matched.Code {
		case globStarCode:
			elements = append(elements, element{kind: kindGlobStar})
		case starCode:
			elements = append(elements, element{kind: kindStar})
		case questionCode:
			elements = append(elements, element{kind: kindQuestion})
		case classCode:
			cls, err := parseClass(matched.Text(cursor))
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
			}
			elements = append(elements, element{kind: kindClass, class: cls})
		case literalCode:
			elements = append(elements, element{kind: kindLiteral, literal: matched.Text(cursor)})
		default:
			return nil, fmt.Errorf("invalid pattern %q at position %d", expr, cursor.Pos)
		}
	}
	return &Pattern{source: expr, elements: elements}, nil
}

// Match reports whether name matches the pattern.
func (p *Pattern) Match(name string) bool {
	return matchElements(p.elements, []rune(name))
}

// MatchAny reports whether any of the supplied glob expressions matches
// name. Expressions that fail to compile never match; Validate catches them
// at definition load time.
func MatchAny(patterns []string, name string) bool {
	for _, expr := range patterns {
		compiled, err := Parse(expr)
		if err != nil {
			continue
		}
		if compiled.Match(name) {
			return true
		}
	}
	return false
}

func matchElements(elements []element, input []rune) bool {
	if len(elements) == 0 {
		return len(input) == 0
	}
	head := elements[0]
	rest := elements[1:]
	switch head.kind {
	case kindLiteral:
		literal := []rune(head.literal)
		if len(input) < len(literal) {
			return false
		}
		for i, r := range literal {
			if input[i] != r {
				return false
			}
		}
		return matchElements(rest, input[len(literal):])
	case kindQuestion:
		if len(input) == 0 || input[0] == '/' {
			return false
		}
		return matchElements(rest, input[1:])
	case kindClass:
		if len(input) == 0 || input[0] == '/' {
			return false
		}
		if !head.class.contains(input[0]) {
			return false
		}
		return matchElements(rest, input[1:])
	case kindStar:
		for i := 0; i <= len(input); i++ {
			if matchElements(rest, input[i:]) {
				return true
			}
			if i < len(input) && input[i] == '/' {
				return false
			}
		}
		return false
	case kindGlobStar:
		for i := 0; i <= len(input); i++ {
			if matchElements(rest, input[i:]) {
				return true
			}
		}
		return false
	}
	return false
}

type class struct {
	negated bool
	singles []rune
	ranges  [][2]rune
}

func (c *class) contains(r rune) bool {
	matched := false
	for _, single := range c.singles {
		if single == r {
			matched = true
			break
		}
	}
	if !matched {
		for _, rng := range c.ranges {
			if r >= rng[0] && r <= rng[1] {
				matched = true
				break
			}
		}
	}
	if c.negated {
		return !matched
	}
	return matched
}

// parseClass parses the class body including the surrounding brackets.
func parseClass(text string) (*class, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(text, "["), "]")
	ret := &class{}
	if strings.HasPrefix(body, "^") {
		ret.negated = true
		body = body[1:]
	}
	if body == "" {
		return nil, fmt.Errorf("empty character class")
	}
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' {
			if runes[i] > runes[i+2] {
				return nil, fmt.Errorf("invalid range %c-%c", runes[i], runes[i+2])
			}
			ret.ranges = append(ret.ranges, [2]rune{runes[i], runes[i+2]})
			i += 2
			continue
		}
		ret.singles = append(ret.singles, runes[i])
	}
	return ret, nil
}
