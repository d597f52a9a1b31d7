package tagship_test

import (
	"context"
	"embed"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	_ "github.com/viant/afs/embed"

	tagship "github.com/relforge/tagship"
	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/runtime/execution"
)

//go:embed testdata/*
var embedFS embed.FS

func newService() *tagship.Service {
	return tagship.New(
		tagship.WithMetaFsOptions(&embedFS),
		tagship.WithMetaBaseURL("embed:///testdata"),
	)
}

func TestService_LoadRelease(t *testing.T) {
	srv := newService()
	runtime := srv.Runtime()
	ctx := context.Background()

	release, err := runtime.LoadRelease(ctx, "publish.yaml")
	assert.Nil(t, err)
	if !assert.NotNil(t, release) {
		return
	}
	assert.Equal(t, "publish", release.Name)
	assert.True(t, release.HasPermission("id-token", "write"))
	assert.NotNil(t, release.AllSteps()["publish/checkout"])
}

func TestService_RunRelease(t *testing.T) {
	srv := newService()
	runtime := srv.Runtime()
	ctx := context.Background()
	assert.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	release, err := runtime.LoadRelease(ctx, "publish.yaml")
	if !assert.NoError(t, err) {
		return
	}

	refEvent := model.ParseRef("refs/tags/v1.2.3")
	refEvent.SHA = "0f0f0f"
	_, wait, err := runtime.StartRun(ctx, release, &refEvent, nil)
	if !assert.NoError(t, err) {
		return
	}

	output, err := wait(ctx, 10*time.Second)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, execution.StateCompleted, output.State)
	assert.Equal(t, "v1.2.3", output.Output["tag"])
	assert.Contains(t, output.Output, "publish")
}

func TestService_Dispatch(t *testing.T) {
	srv := newService()
	runtime := srv.Runtime()
	ctx := context.Background()
	assert.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	_, err := runtime.RegisterRelease(ctx, "publish.yaml")
	if !assert.NoError(t, err) {
		return
	}

	runs, err := runtime.Dispatch(ctx, model.ParseRef("refs/tags/v2.0.0"))
	assert.NoError(t, err)
	if !assert.Equal(t, 1, len(runs)) {
		return
	}

	output, err := runtime.WaitForRun(ctx, runs[0].ID, 10_000)
	assert.NoError(t, err)
	assert.Equal(t, execution.StateCompleted, output.State)

	// Branch pushes never match the tags-only trigger.
	runs, err = runtime.Dispatch(ctx, model.ParseRef("refs/heads/main"))
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestService_GatedRun(t *testing.T) {
	srv := newService()
	runtime := srv.Runtime()
	ctx := context.Background()
	assert.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	release := model.NewRelease("gated")
	checkout := release.NewStep("checkout").WithAction("nop", "nop", nil)
	release.NewStep("publish").
		WithAction("nop", "nop", nil).
		WithDependsOn(checkout.Name).
		WithGate(true)

	_, wait, err := runtime.StartRun(ctx, release, nil, nil)
	if !assert.NoError(t, err) {
		return
	}

	// The run parks on the gate; approve it once the request shows up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		pending, err := srv.Gate().ListPending(ctx)
		assert.NoError(t, err)
		if len(pending) == 1 {
			_, err = srv.Gate().Decide(ctx, pending[0].ID, true, "looks good")
			assert.NoError(t, err)
			break
		}
		if !assert.True(t, time.Now().Before(deadline), "gate request never arrived") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	output, err := wait(ctx, 10*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, execution.StateCompleted, output.State)
}
