package dispatcher

import "github.com/viant/parsly"

// Token codes
const (
	textCode = iota
	placeholderCode
)

// Token definitions
var (
	textToken        = parsly.NewToken(textCode, "Text", newTextMatcher())
	placeholderToken = parsly.NewToken(placeholderCode, "Placeholder", newPlaceholderMatcher())
)

func newTextMatcher() parsly.Matcher {
	return &textMatcher{}
}

func newPlaceholderMatcher() parsly.Matcher {
	return &placeholderMatcher{}
}

// placeholderMatcher matches a ${identifier} fragment including delimiters.
type placeholderMatcher struct{}

func (m *placeholderMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos+3 > size || input[pos] != '$' || input[pos+1] != '{' {
		return 0
	}
	matched := 2
	for i := pos + 2; i < size; i++ {
		c := input[i]
		if c == '}' {
			if matched == 2 {
				return 0
			}
			return matched + 1
		}
		if !isIdentByte(c) {
			return 0
		}
		matched++
	}
	return 0
}

// textMatcher consumes literal text up to the next placeholder start.  It
// always consumes at least one byte so rendering makes progress past a
// malformed placeholder.
type textMatcher struct{}

func (m *textMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		if input[i] == '$' && i+1 < size && input[i+1] == '{' {
			break
		}
		matched++
	}
	return matched
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.'
}
