package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStackState(t *testing.T) {
	s, err := NewStackState("demo", "/tmp/demo/.stack.yml")
	require.NoError(t, err)
	assert.Equal(t, BuildNotBuilt, s.BuildStatus)
	assert.Equal(t, RuntimeUnknown, s.RuntimeStatus)
	assert.Nil(t, s.LastError)

	_, err = NewStackState("demo", "")
	assert.ErrorIs(t, err, ErrMissingConfigPath)
}

func TestApply_PreservesIdentity(t *testing.T) {
	s, _ := NewStackState("demo", "/a/.stack.yml")
	out := s.Apply(RuntimeChanged(RuntimeRunning))

	assert.Equal(t, "demo", out.Name)
	assert.Equal(t, "/a/.stack.yml", out.ConfigPath)
	assert.Equal(t, RuntimeRunning, out.RuntimeStatus)
	assert.Equal(t, BuildNotBuilt, out.BuildStatus)
}

func TestApply_OverridesConfigPath(t *testing.T) {
	s, _ := NewStackState("demo", "/a/.stack.yml")
	out := s.Apply(Update{}.WithConfigPath("/b/.stack.yml"))
	assert.Equal(t, "/b/.stack.yml", out.ConfigPath)
}

func TestApply_NullClearsField(t *testing.T) {
	now := time.Now()
	s, _ := NewStackState("demo", "/a")
	s = s.Apply(Started(now))
	require.NotNil(t, s.LastStartedAt)
	assert.Equal(t, now.UTC(), *s.LastStartedAt)

	s = s.Apply(Stopped())
	assert.Nil(t, s.LastStartedAt)
	assert.Equal(t, RuntimeStopped, s.RuntimeStatus)
}

func TestBuildTransitions(t *testing.T) {
	s, _ := NewStackState("demo", "/a")

	s = s.Apply(BuildFailed(errors.New("boom")))
	assert.Equal(t, BuildError, s.BuildStatus)
	require.NotNil(t, s.LastError)
	assert.Equal(t, "boom", *s.LastError)

	s = s.Apply(BuildSucceeded(time.Now(), "/m/compose.yml"))
	assert.Equal(t, BuildBuilt, s.BuildStatus)
	assert.Nil(t, s.LastError)
	assert.NotNil(t, s.LastBuiltAt)
	require.NotNil(t, s.ManifestPath)
	assert.Equal(t, "/m/compose.yml", *s.ManifestPath)
}

func TestObserved(t *testing.T) {
	s, _ := NewStackState("demo", "/a")
	s = s.Apply(RuntimeFailed(RuntimeError, errors.New("down")))
	require.NotNil(t, s.LastError)

	kept := s.Apply(Observed(RuntimeError, ""))
	assert.NotNil(t, kept.LastError, "error status keeps the previous error")

	cleared := s.Apply(Observed(RuntimeRunning, ""))
	assert.Nil(t, cleared.LastError)
}

func TestOptional_PtrIsACopy(t *testing.T) {
	o := Value("x")
	p := o.Ptr()
	*p = "y"
	assert.Equal(t, "x", *o.Ptr())
	assert.Nil(t, Null[string]().Ptr())
	assert.False(t, Optional[string]{}.IsSet())
}
