package podman

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoPodman(t *testing.T) Client {
	t.Helper()
	cli, err := NewAPIClient(ResolveSocket("", DetectPlatform()))
	if err != nil {
		t.Skip("podman not available:", err)
	}
	if err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skip("podman not reachable:", err)
	}
	return cli
}

func TestNewAPIClient_BadHost(t *testing.T) {
	_, err := NewAPIClient("not a host")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestListContainers_UnknownProject(t *testing.T) {
	cli := skipIfNoPodman(t)
	defer cli.Close()

	containers, err := cli.ListContainers(context.Background(), ListOptions{
		All:    true,
		Labels: []string{"com.docker.compose.project=devx-test-does-not-exist"},
	})
	require.NoError(t, err)
	assert.Empty(t, containers)
}

func TestStartContainer_NotFound(t *testing.T) {
	cli := skipIfNoPodman(t)
	defer cli.Close()

	err := cli.StartContainer(context.Background(), "devx-test-nonexistent")
	assert.ErrorIs(t, err, ErrContainerNotFound)
}
