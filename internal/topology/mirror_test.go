package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindMirrors_CreateAndMirrorSteps(t *testing.T) {
	specs := []StoreSpec{
		{Name: "default"},
		{Name: "replica", MirrorOf: "default"},
	}

	steps, err := BindMirrors([]string{"default", "replica"}, specs)
	require.NoError(t, err)

	require.Len(t, steps, 2)
	assert.Equal(t, StepCreate, steps[0].Kind)
	assert.Equal(t, "default", steps[0].Spec.Name)
	assert.Empty(t, steps[0].Target)

	assert.Equal(t, StepMirror, steps[1].Kind)
	assert.Equal(t, "replica", steps[1].Spec.Name)
	assert.Equal(t, "default", steps[1].Target)
}

func TestBindMirrors_UnknownTarget(t *testing.T) {
	specs := []StoreSpec{
		{Name: "default"},
		{Name: "replica", MirrorOf: "ghost"},
	}

	_, err := BindMirrors([]string{"default", "replica"}, specs)

	var targetErr *UnknownMirrorTargetError
	require.ErrorAs(t, err, &targetErr)
	assert.Equal(t, "replica", targetErr.Store)
	assert.Equal(t, "ghost", targetErr.Target)
	assert.True(t, IsConfigError(err))
}

func TestBindMirrors_TargetOrderedLater(t *testing.T) {
	specs := []StoreSpec{
		{Name: "default"},
		{Name: "analytics"},
		{Name: "replica", MirrorOf: "analytics"},
	}

	_, err := BindMirrors([]string{"default", "replica", "analytics"}, specs)

	var orderErr *MirrorOrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "replica", orderErr.Store)
	assert.Equal(t, "analytics", orderErr.Target)
	assert.True(t, IsConfigError(err))
}

func TestBindMirrors_MirrorOfMirror(t *testing.T) {
	specs := []StoreSpec{
		{Name: "default"},
		{Name: "first", MirrorOf: "default"},
		{Name: "second", MirrorOf: "first"},
	}

	steps, err := BindMirrors([]string{"default", "first", "second"}, specs)
	require.NoError(t, err)

	require.Len(t, steps, 3)
	assert.Equal(t, "first", steps[2].Target)
}

func TestBindMirrors_SelfMirror(t *testing.T) {
	specs := []StoreSpec{
		{Name: "default"},
		{Name: "narcissus", MirrorOf: "narcissus"},
	}

	_, err := BindMirrors([]string{"default", "narcissus"}, specs)

	var orderErr *MirrorOrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "narcissus", orderErr.Store)
}

func TestStepKind_String(t *testing.T) {
	assert.Equal(t, "create", StepCreate.String())
	assert.Equal(t, "mirror", StepMirror.String())
}
