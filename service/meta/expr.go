package meta

import (
	"os"
	"strings"
	"unicode"
)

// expandEnvExpr replaces every ${env.KEY} occurrence in value with the
// environment variable KEY, or "" when unset. Malformed expressions are
// left as literal text.
func expandEnvExpr(value string) string {
	const prefix = "${env."
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(value[i:], prefix)
		if idx < 0 {
			b.WriteString(value[i:])
			break
		}
		b.WriteString(value[i : i+idx])
		startKey := i + idx + len(prefix)

		endKey := strings.IndexByte(value[startKey:], '}')
		if endKey < 0 {
			// No closing brace, keep the rest as literal.
			b.WriteString(value[i+idx:])
			break
		}
		key := value[startKey : startKey+endKey]

		if !validEnvKey(key) {
			// Keep the prefix as literal and rescan the remainder so nested
			// expressions still expand.
			b.WriteString(value[i+idx : startKey])
			i = startKey
			continue
		}
		b.WriteString(os.Getenv(key))
		i = startKey + endKey + 1
	}
	return b.String()
}

func validEnvKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
