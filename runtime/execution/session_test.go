package execution

import (
	"testing"

	"github.com/relforge/tagship/model/state"
	"github.com/stretchr/testify/assert"
)

func TestSession_ApplyParameters(t *testing.T) {
	session := NewSession("run-1", WithState(map[string]interface{}{
		"tag": "v1.2.3",
	}))
	params := state.Parameters{
		{Name: "version", Value: "${tag}"},
		{Name: "registry", Value: "crates-io"},
	}
	err := session.ApplyParameters(params)
	assert.Nil(t, err)
	assert.Equal(t, "v1.2.3", session.State["version"])
	assert.Equal(t, "crates-io", session.State["registry"])
}

func TestSession_StepSession(t *testing.T) {
	parent := NewSession("run-1", WithState(map[string]interface{}{
		"tag":    "v1.2.3",
		"dryRun": false,
	}))
	child := parent.StepSession(map[string]interface{}{"dryRun": true})
	assert.Equal(t, true, child.State["dryRun"], "seed overrides parent")
	assert.Equal(t, "v1.2.3", child.State["tag"], "parent state inherited")
}

func TestSession_SetNotifiesListeners(t *testing.T) {
	session := NewSession("run-1")
	var gotKey string
	var gotNew interface{}
	session.RegisterListeners(func(s *Session, key string, oldVal, newVal interface{}) {
		gotKey = key
		gotNew = newVal
	})
	session.Set("status", "published")
	assert.Equal(t, "status", gotKey)
	assert.Equal(t, "published", gotNew)
}
