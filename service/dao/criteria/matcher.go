// Package criteria implements the filter predicates shared by dao stores.
package criteria

import (
	"github.com/relforge/tagship/service/dao"
)

// FilterByState reports whether an entity in the given state passes the
// supplied filter parameters. An empty filter passes everything.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	if len(parameters) != 1 || parameters[0].Name != "State" {
		return true
	}
	switch actual := parameters[0].Value.(type) {
	case string:
		return state == actual
	case []string:
		for _, s := range actual {
			if state == s {
				return true
			}
		}
		return false
	}
	return true
}
