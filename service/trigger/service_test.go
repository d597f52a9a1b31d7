package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao/release"
)

type recordingStarter struct {
	started []string
}

func (r *recordingStarter) StartRun(ctx context.Context, aRelease *model.Release, refEvent *model.RefEvent, init map[string]interface{}) (*execution.Run, error) {
	r.started = append(r.started, aRelease.Name)
	return execution.NewRun(aRelease.Name+"/run", aRelease.Name, aRelease, init), nil
}

func taggedRelease(name string, patterns ...string) *model.Release {
	aRelease := model.NewRelease(name)
	aRelease.On = &model.Trigger{Push: &model.PushTrigger{Tags: patterns}}
	aRelease.NewStep("checkout").WithAction("vcs", "checkout", nil)
	return aRelease
}

func TestService_Dispatch(t *testing.T) {
	starter := &recordingStarter{}
	svc := New(release.New(), starter)
	svc.Upsert(taggedRelease("publish", "v*"))
	svc.Upsert(taggedRelease("nightly", "nightly-*"))

	ctx := context.Background()
	runs, err := svc.Dispatch(ctx, model.ParseRef("refs/tags/v1.2.3"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(runs))
	assert.Equal(t, []string{"publish"}, starter.started)

	// Duplicate delivery is a no-op.
	runs, err = svc.Dispatch(ctx, model.ParseRef("refs/tags/v1.2.3"))
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.Equal(t, 1, len(starter.started))

	// A different tag fires again.
	runs, err = svc.Dispatch(ctx, model.ParseRef("refs/tags/v1.2.4"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(runs))

	// Branch pushes never match a tags-only trigger.
	runs, err = svc.Dispatch(ctx, model.ParseRef("refs/heads/main"))
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestService_Register(t *testing.T) {
	releaseDAO := release.New()
	releaseDAO.Upsert("publish", taggedRelease("publish", "v*"))

	starter := &recordingStarter{}
	svc := New(releaseDAO, starter)

	aRelease, err := svc.Register(context.Background(), "publish")
	assert.NoError(t, err)
	assert.Equal(t, "publish", aRelease.Name)
	assert.Equal(t, 1, len(svc.Releases()))

	svc.Remove("publish")
	assert.Empty(t, svc.Releases())

	_, err = svc.Register(context.Background(), "missing")
	assert.Error(t, err)
}
