// Package podman implements the engine plugin: it drives podman through its
// Docker-compatible API socket.
package podman

import (
	"context"
	"time"
)

// =============================================================================
// Container Info
// =============================================================================

// ContainerState is the low-level container state reported by the API.
type ContainerState string

const (
	ContainerStateCreated    ContainerState = "created"
	ContainerStateRunning    ContainerState = "running"
	ContainerStatePaused     ContainerState = "paused"
	ContainerStateRestarting ContainerState = "restarting"
	ContainerStateRemoving   ContainerState = "removing"
	ContainerStateExited     ContainerState = "exited"
	ContainerStateDead       ContainerState = "dead"
	ContainerStateStopping   ContainerState = "stopping"
)

// PortBinding is a published port.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 when not published
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	State     ContainerState
	CreatedAt time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// ListOptions defines options for listing containers.
type ListOptions struct {
	All    bool     // Include stopped containers
	Labels []string // e.g., "com.docker.compose.project=demo"
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the subset of the container API the engine needs.
type Client interface {
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
