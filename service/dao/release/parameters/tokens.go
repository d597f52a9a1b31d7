package parameters

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceCode = iota + 1
	identifierCode
	openBracketCode
	closeBracketCode
	openParenCode
	closeParenCode
	slashCode
	dataTypeCode
	kindCode
	locationCode
)

var (
	whitespaceToken   = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	identifierToken   = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
	openBracketToken  = parsly.NewToken(openBracketCode, "[", matcher.NewByte('['))
	closeBracketToken = parsly.NewToken(closeBracketCode, "]", matcher.NewByte(']'))
	openParenToken    = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken   = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	slashToken        = parsly.NewToken(slashCode, "/", matcher.NewByte('/'))
	dataTypeToken     = parsly.NewToken(dataTypeCode, "DataType", &dataTypeMatcher{})
	kindToken         = parsly.NewToken(kindCode, "Kind", &untilMatcher{stop: []byte{'/', ')'}})
	locationToken     = parsly.NewToken(locationCode, "Location", &untilMatcher{stop: []byte{')'}})
)

// identifierMatcher matches a parameter name: a letter or underscore
// followed by letters, digits or underscores.
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		if !isLetter(input[i]) && !isDigit(input[i]) && input[i] != '_' {
			break
		}
		matched++
	}
	return matched
}

// dataTypeMatcher matches a type name up to the closing bracket, allowing
// nested brackets for generic types such as []Artifact.
type dataTypeMatcher struct{}

func (m *dataTypeMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	size := cursor.InputSize
	depth := 0
	matched := 0
	for i := cursor.Pos; i < size; i++ {
		switch input[i] {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return matched
			}
			depth--
		}
		matched++
	}
	return matched
}

// untilMatcher consumes input until one of the stop bytes.
type untilMatcher struct {
	stop []byte
}

func (m *untilMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	size := cursor.InputSize
	matched := 0
outer:
	for i := cursor.Pos; i < size; i++ {
		for _, s := range m.stop {
			if input[i] == s {
				break outer
			}
		}
		matched++
	}
	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
