package podman

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/AaronFeledy/devx-sub000/internal/core/compose"
	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// PluginName is the registry name of the podman engine.
const PluginName = "podman"

// Version is reported through the plugin registry.
const Version = "0.1.0"

// DefaultStopTimeout is the grace period given to each container on stop.
const DefaultStopTimeout = 10 * time.Second

// Engine implements plugin.Engine over a Client.
type Engine struct {
	client      Client
	stopTimeout time.Duration
	logger      *slog.Logger
}

var _ plugin.Engine = (*Engine)(nil)

// NewEngine creates an engine. A nil client yields an engine that reports
// itself unavailable.
func NewEngine(cli Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:      cli,
		stopTimeout: DefaultStopTimeout,
		logger:      logger,
	}
}

// NewPlugin wraps engine as a registrable plugin.
func NewPlugin(engine *Engine) plugin.Plugin {
	return &plugin.Bundle{
		PluginName:    PluginName,
		PluginVersion: Version,
		Engine:        engine,
	}
}

// WithStopTimeout sets the per-container stop grace period.
func (e *Engine) WithStopTimeout(d time.Duration) *Engine {
	e.stopTimeout = d
	return e
}

func (e *Engine) Name() string { return PluginName }

// IsAvailable reports whether the podman service answers a ping.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	if e.client == nil {
		return false
	}
	return e.client.Ping(ctx) == nil
}

// =============================================================================
// Status
// =============================================================================

// GetStackStatus reports every container of the stack's compose project,
// grouped by service and aggregated into one stack status.
func (e *Engine) GetStackStatus(ctx context.Context, stackName, _ string) (*domain.StackStatus, error) {
	containers, err := e.listStack(ctx, stackName)
	if err != nil {
		return nil, err
	}

	services := servicesFromContainers(compose.ProjectName(stackName), containers)
	return &domain.StackStatus{
		Name:     stackName,
		Status:   domain.AggregateStatus(services),
		Services: services,
	}, nil
}

func (e *Engine) listStack(ctx context.Context, stackName string) ([]ContainerInfo, error) {
	if e.client == nil {
		return nil, NewEngineError("ListContainers", "stack", stackName, "no client", ErrNoClient)
	}
	return e.client.ListContainers(ctx, ListOptions{
		All:    true,
		Labels: []string{compose.ProjectLabelFilter(stackName)},
	})
}

// servicesFromContainers groups containers by service. A service with more
// than one container is aggregated with the same precedence as a stack.
func servicesFromContainers(project string, containers []ContainerInfo) map[string]domain.ServiceStatus {
	perService := make(map[string]map[string]domain.ServiceStatus)
	for _, c := range containers {
		svc := serviceOf(project, c)
		if perService[svc] == nil {
			perService[svc] = make(map[string]domain.ServiceStatus)
		}
		perService[svc][c.Name+"/"+c.ID] = domain.ServiceStatus{
			Status: MapContainerState(c.State),
			Ports:  toDomainPorts(c.Ports),
		}
	}

	out := make(map[string]domain.ServiceStatus, len(perService))
	for svc, replicas := range perService {
		var ports []domain.Port
		for _, r := range replicas {
			ports = append(ports, r.Ports...)
		}
		sort.Slice(ports, func(i, j int) bool {
			if ports[i].ContainerPort != ports[j].ContainerPort {
				return ports[i].ContainerPort < ports[j].ContainerPort
			}
			return ports[i].HostPort < ports[j].HostPort
		})
		out[svc] = domain.ServiceStatus{
			Status: domain.AggregateStatus(replicas),
			Ports:  ports,
		}
	}
	return out
}

func serviceOf(project string, c ContainerInfo) string {
	if svc := c.Labels[compose.LabelComposeService]; svc != "" {
		return svc
	}
	return compose.ServiceFromContainerName(project, c.Name)
}

// MapContainerState converts an API container state to a runtime status.
func MapContainerState(s ContainerState) domain.RuntimeStatus {
	switch s {
	case ContainerStateRunning:
		return domain.RuntimeRunning
	case ContainerStateExited, ContainerStateCreated:
		return domain.RuntimeStopped
	case ContainerStateRestarting:
		return domain.RuntimeStarting
	case ContainerStateRemoving, ContainerStateStopping:
		return domain.RuntimeStopping
	case ContainerStateDead:
		return domain.RuntimeError
	default:
		return domain.RuntimeUnknown
	}
}

func toDomainPorts(ports []PortBinding) []domain.Port {
	if len(ports) == 0 {
		return nil
	}
	out := make([]domain.Port, 0, len(ports))
	for _, p := range ports {
		out = append(out, domain.Port{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}
	return out
}

// =============================================================================
// Runtime Start / Stop
// =============================================================================

// Start starts the stack's existing containers in dependency order.
func (e *Engine) Start(ctx context.Context, cfg *stack.Config, _ string) error {
	byService, err := e.containersByService(ctx, cfg)
	if err != nil {
		return err
	}

	for _, svc := range orderWithExtras(compose.StartOrder(cfg.Services), byService) {
		for _, c := range byService[svc] {
			if c.State == ContainerStateRunning {
				continue
			}
			e.logger.Debug("starting container", "stack", cfg.Name, "service", svc, "container", c.Name)
			if err := e.client.StartContainer(ctx, c.ID); err != nil && !errors.Is(err, ErrContainerAlreadyRunning) {
				return err
			}
		}
	}
	return nil
}

// Stop stops the stack's running containers in reverse dependency order.
func (e *Engine) Stop(ctx context.Context, cfg *stack.Config, _ string) error {
	byService, err := e.containersByService(ctx, cfg)
	if err != nil {
		return err
	}

	timeout := e.stopTimeout
	for _, svc := range orderWithExtras(compose.StopOrder(cfg.Services), byService) {
		for _, c := range byService[svc] {
			if MapContainerState(c.State) == domain.RuntimeStopped {
				continue
			}
			e.logger.Debug("stopping container", "stack", cfg.Name, "service", svc, "container", c.Name)
			if err := e.client.StopContainer(ctx, c.ID, &timeout); err != nil && !errors.Is(err, ErrContainerNotRunning) {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) containersByService(ctx context.Context, cfg *stack.Config) (map[string][]ContainerInfo, error) {
	containers, err := e.listStack(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, plugin.ErrStackNotCreated
	}

	project := compose.ProjectName(cfg.Name)
	byService := make(map[string][]ContainerInfo)
	for _, c := range containers {
		svc := serviceOf(project, c)
		byService[svc] = append(byService[svc], c)
	}
	return byService, nil
}

// orderWithExtras appends services that have containers but are no longer
// in the config, sorted by name.
func orderWithExtras(order []string, byService map[string][]ContainerInfo) []string {
	seen := make(map[string]bool, len(order))
	for _, s := range order {
		seen[s] = true
	}
	var extras []string
	for s := range byService {
		if !seen[s] {
			extras = append(extras, s)
		}
	}
	sort.Strings(extras)
	return append(order, extras...)
}
