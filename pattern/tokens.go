package pattern

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	literalCode = iota + 1
	globStarCode
	starCode
	questionCode
	classCode
)

// Token definitions; globStar has to be tried before star so that "**"
// does not tokenize as two single stars.
var (
	literalToken  = parsly.NewToken(literalCode, "Literal", newLiteralMatcher())
	globStarToken = parsly.NewToken(globStarCode, "**", newGlobStarMatcher())
	starToken     = parsly.NewToken(starCode, "*", matcher.NewByte('*'))
	questionToken = parsly.NewToken(questionCode, "?", matcher.NewByte('?'))
	classToken    = parsly.NewToken(classCode, "Class", newClassMatcher())
)

func newLiteralMatcher() parsly.Matcher {
	return &literalMatcher{}
}

func newGlobStarMatcher() parsly.Matcher {
	return &globStarMatcher{}
}

func newClassMatcher() parsly.Matcher {
	return &classMatcher{}
}

// literalMatcher matches a run of characters carrying no glob meaning.
type literalMatcher struct{}

func (m *literalMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size; i++ {
		switch input[i] {
		case '*', '?', '[':
			return matched
		}
		matched++
	}
	return matched
}

// globStarMatcher matches exactly "**".
type globStarMatcher struct{}

func (m *globStarMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize {
		return 0
	}
	if input[pos] == '*' && input[pos+1] == '*' {
		return 2
	}
	return 0
}

// classMatcher matches a character class "[...]" including the brackets.
// A ']' directly after the opening bracket (or after '^') is part of the
// class body, mirroring common glob implementations.
type classMatcher struct{}

func (m *classMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size || input[pos] != '[' {
		return 0
	}
	i := pos + 1
	if i < size && input[i] == '^' {
		i++
	}
	if i < size && input[i] == ']' {
		i++
	}
	for ; i < size; i++ {
		if input[i] == ']' {
			return i - pos + 1
		}
	}
	return 0
}
