package release

import (
	"context"
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	_ "github.com/viant/afs/embed"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/service/meta"
)

//go:embed testdata/*
var testFS embed.FS

func TestService_Load(t *testing.T) {
	ctx := context.Background()
	service := New(WithMetaService(meta.New(afs.New(), "embed:///testdata", &testFS)))

	release, err := service.Load(ctx, "publish.yaml")
	assert.NoError(t, err)
	if !assert.NotNil(t, release) {
		return
	}

	assert.Equal(t, "publish", release.Name)
	assert.True(t, release.HasPermission(model.PermissionIDToken, model.PermissionWrite))
	if assert.NotNil(t, release.On) && assert.NotNil(t, release.On.Push) {
		assert.Equal(t, []string{"v*"}, release.On.Push.Tags)
	}
	assert.Equal(t, "always", release.Env["CARGO_TERM_COLOR"])

	dryRun, ok := release.Init.Get("dryRun")
	if assert.True(t, ok) {
		assert.Equal(t, false, dryRun.Value)
	}

	if !assert.NotNil(t, release.Pipeline) {
		return
	}
	assert.Equal(t, 3, len(release.Pipeline.Steps))

	checkout := release.Pipeline.Steps[0]
	assert.Equal(t, "publish/checkout", checkout.ID)
	assert.Equal(t, "vcs", checkout.Action.Service)
	assert.Equal(t, "checkout", checkout.Action.Method)

	auth := release.Pipeline.Steps[1]
	assert.Equal(t, []string{"checkout"}, auth.DependsOn)

	publish := release.Pipeline.Steps[2]
	input, ok := publish.Action.Input.(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, "${auth.Token}", input["token"])
	}

	// Second load is served from the cache.
	again, err := service.Load(ctx, "publish.yaml")
	assert.NoError(t, err)
	assert.Same(t, release, again)
}

func TestService_DecodeYAML_Sequence(t *testing.T) {
	yamlText := `
on:
  push:
    tags: [v*]
pipeline:
  - id: checkout
    service: vcs
    action: checkout
  - id: publish
    service: registry
    action: publish
    dependsOn: checkout
    gate: true
`
	service := New()
	release, err := service.DecodeYAML([]byte(yamlText))
	if err != nil {
		t.Fatalf("failed to decode sequence pipeline: %v", err)
	}

	assert.Equal(t, 2, len(release.Pipeline.Steps))

	checkout := release.Pipeline.Steps[0]
	assert.Equal(t, release.Name+"/checkout", checkout.ID)
	assert.Equal(t, "vcs", checkout.Action.Service)
	assert.Equal(t, "checkout", checkout.Action.Method)

	publish := release.Pipeline.Steps[1]
	assert.Equal(t, release.Name+"/publish", publish.ID)
	assert.True(t, publish.IsGated())
	assert.Equal(t, []string{"checkout"}, publish.DependsOn)

	assert.Empty(t, release.Validate())
}

func TestService_DecodeYAML_Invalid(t *testing.T) {
	service := New()

	// Unknown dependency target fails validation.
	_, err := service.DecodeYAML([]byte(`
pipeline:
  publish:
    action: registry:publish
    dependsOn: missing
`))
	assert.Error(t, err)

	// Bad trigger glob fails at load time.
	_, err = service.DecodeYAML([]byte(`
on:
  push:
    tags: ['v[']
pipeline:
  publish:
    action: registry:publish
`))
	assert.Error(t, err)
}

func TestService_Upsert(t *testing.T) {
	service := New()
	release := model.NewRelease("hotfix")
	release.NewStep("publish").WithAction("registry", "publish", nil)
	service.Upsert("hotfix", release)

	loaded, err := service.Load(context.Background(), "hotfix")
	assert.NoError(t, err)
	assert.Same(t, release, loaded)
}
