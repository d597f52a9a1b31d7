package executor

import (
	"encoding/json"
	"strings"
)

const mask = "***"

var sensitiveFragments = []string{"token", "secret", "password", "credential", "apikey", "api_key"}

// Redact returns a JSON-shaped copy of value with credential-looking entries
// masked.  Registry tokens travel through step inputs, so everything stored
// on an execution or handed to a listener goes through here first.
func Redact(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return mask
	}
	var generic interface{}
	if err = json.Unmarshal(data, &generic); err != nil {
		return mask
	}
	return redactValue(generic)
}

func redactValue(value interface{}) interface{} {
	switch actual := value.(type) {
	case map[string]interface{}:
		for key, item := range actual {
			if isSensitive(key) {
				if _, ok := item.(string); ok {
					actual[key] = mask
					continue
				}
			}
			actual[key] = redactValue(item)
		}
		return actual
	case []interface{}:
		for i, item := range actual {
			actual[i] = redactValue(item)
		}
		return actual
	}
	return value
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
