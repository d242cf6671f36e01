package podman

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// =============================================================================
// API Client Implementation
// =============================================================================

// APIClient implements Client with the Docker SDK pointed at the podman
// service socket.
type APIClient struct {
	cli *client.Client
}

var _ Client = (*APIClient)(nil)

// NewAPIClient creates a client for host, e.g. "unix:///run/podman/podman.sock".
// If host is empty, DOCKER_HOST and the SDK defaults apply.
func NewAPIClient(host string) (*APIClient, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewEngineError("NewAPIClient", "", "", fmt.Sprintf("failed to create client: %v", err), ErrConnectionFailed)
	}
	return &APIClient{cli: cli}, nil
}

// Ping checks if the podman service is reachable.
func (a *APIClient) Ping(ctx context.Context) error {
	if _, err := a.cli.Ping(ctx); err != nil {
		return NewEngineError("Ping", "", "", fmt.Sprintf("failed to ping podman: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the client connection.
func (a *APIClient) Close() error {
	return a.cli.Close()
}

// =============================================================================
// Container Operations
// =============================================================================

// StartContainer starts a stopped container.
func (a *APIClient) StartContainer(ctx context.Context, containerID string) error {
	err := a.cli.ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewEngineError("StartContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		if strings.Contains(err.Error(), "already running") {
			return NewEngineError("StartContainer", "container", containerID, "container is already running", ErrContainerAlreadyRunning)
		}
		return NewEngineError("StartContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// StopContainer stops a running container.
func (a *APIClient) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	stopOptions := container.StopOptions{}
	if timeout != nil {
		seconds := int(timeout.Seconds())
		stopOptions.Timeout = &seconds
	}

	err := a.cli.ContainerStop(ctx, containerID, stopOptions)
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewEngineError("StopContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		if strings.Contains(err.Error(), "not running") {
			return NewEngineError("StopContainer", "container", containerID, "container is not running", ErrContainerNotRunning)
		}
		return NewEngineError("StopContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// ListContainers returns the containers matching opts.
func (a *APIClient) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error) {
	listOpts := container.ListOptions{All: opts.All}
	if len(opts.Labels) > 0 {
		f := filters.NewArgs()
		for _, l := range opts.Labels {
			f.Add("label", l)
		}
		listOpts.Filters = f
	}

	containers, err := a.cli.ContainerList(ctx, listOpts)
	if err != nil {
		return nil, NewEngineError("ListContainers", "container", "", err.Error(), err)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		var ports []PortBinding
		for _, p := range c.Ports {
			ports = append(ports, PortBinding{
				ContainerPort: int(p.PrivatePort),
				HostPort:      int(p.PublicPort),
				Protocol:      p.Type,
				HostIP:        p.IP,
			})
		}

		result = append(result, ContainerInfo{
			ID:        c.ID,
			Name:      name,
			Image:     c.Image,
			State:     ContainerState(c.State),
			CreatedAt: time.Unix(c.Created, 0),
			Ports:     ports,
			Labels:    c.Labels,
		})
	}
	return result, nil
}
