package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_Verify(t *testing.T) {
	svc := New()
	published := "[package]\nname = \"widgets\"\nversion = \"1.2.2\"\n"
	local := "[package]\nname = \"widgets\"\nversion = \"1.2.3\"\n"

	output := &VerifyOutput{}
	err := svc.Verify(context.Background(), &VerifyInput{Local: local, Published: published}, output)
	assert.NoError(t, err)
	assert.False(t, output.Match)
	assert.Contains(t, output.Diff, "-version = \"1.2.2\"")
	assert.Contains(t, output.Diff, "+version = \"1.2.3\"")
	assert.Equal(t, 1, output.Hunks)
	assert.True(t, output.Added >= 1)
	assert.True(t, output.Deleted >= 1)
}

func TestService_Verify_Match(t *testing.T) {
	svc := New()
	content := "[package]\nname = \"widgets\"\nversion = \"1.2.3\"\n"
	output := &VerifyOutput{}
	err := svc.Verify(context.Background(), &VerifyInput{Local: content, Published: content}, output)
	assert.NoError(t, err)
	assert.True(t, output.Match)
	assert.Empty(t, output.Diff)
}

func TestService_Verify_MissingInput(t *testing.T) {
	svc := New()
	err := svc.Verify(context.Background(), &VerifyInput{Published: "x"}, &VerifyOutput{})
	assert.Error(t, err)
}
