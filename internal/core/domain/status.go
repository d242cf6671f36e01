// Package domain holds the stack lifecycle model: build and runtime status
// enums, the persisted StackState record, partial updates, and the status
// aggregation rule. This is part of the Functional Core - no I/O.
package domain

// =============================================================================
// Build Status
// =============================================================================

// BuildStatus is the last known build outcome of a stack.
type BuildStatus string

const (
	BuildNotBuilt BuildStatus = "not_built"
	BuildBuilding BuildStatus = "building"
	BuildBuilt    BuildStatus = "built"
	BuildError    BuildStatus = "error"
	BuildUnknown  BuildStatus = "unknown"
)

var validBuildStatuses = map[BuildStatus]bool{
	BuildNotBuilt: true,
	BuildBuilding: true,
	BuildBuilt:    true,
	BuildError:    true,
	BuildUnknown:  true,
}

// Valid reports whether s is a known build status.
func (s BuildStatus) Valid() bool {
	return validBuildStatuses[s]
}

// =============================================================================
// Runtime Status
// =============================================================================

// RuntimeStatus is the runtime state of a stack or of a single service.
type RuntimeStatus string

const (
	RuntimeUnknown    RuntimeStatus = "unknown"
	RuntimeBuilding   RuntimeStatus = "building"
	RuntimeStarting   RuntimeStatus = "starting"
	RuntimeRunning    RuntimeStatus = "running"
	RuntimeStopping   RuntimeStatus = "stopping"
	RuntimeStopped    RuntimeStatus = "stopped"
	RuntimeDestroying RuntimeStatus = "destroying"
	RuntimeError      RuntimeStatus = "error"
	RuntimeNotCreated RuntimeStatus = "not_created"
)

var validRuntimeStatuses = map[RuntimeStatus]bool{
	RuntimeUnknown:    true,
	RuntimeBuilding:   true,
	RuntimeStarting:   true,
	RuntimeRunning:    true,
	RuntimeStopping:   true,
	RuntimeStopped:    true,
	RuntimeDestroying: true,
	RuntimeError:      true,
	RuntimeNotCreated: true,
}

// Valid reports whether s is a known runtime status.
func (s RuntimeStatus) Valid() bool {
	return validRuntimeStatuses[s]
}

// IsTransitional reports whether s is an in-progress state.
func (s RuntimeStatus) IsTransitional() bool {
	switch s {
	case RuntimeBuilding, RuntimeStarting, RuntimeStopping, RuntimeDestroying:
		return true
	}
	return false
}

// =============================================================================
// Aggregation
// =============================================================================

// Port is a published port of a running service.
type Port struct {
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
	HostIP        string `json:"host_ip,omitempty"`
}

// ServiceStatus is the runtime state of one service as reported by an engine.
type ServiceStatus struct {
	Status RuntimeStatus `json:"status"`
	Ports  []Port        `json:"ports,omitempty"`
}

// StackStatus is the stack-level status returned by engines and by the
// orchestrator's status operation.
type StackStatus struct {
	Name     string                   `json:"name"`
	Status   RuntimeStatus            `json:"status"`
	Services map[string]ServiceStatus `json:"services,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// AggregateStatus derives one stack-level status from per-service statuses.
//
// Precedence, highest first:
//   - no services         -> NotCreated
//   - any Error           -> Error
//   - all Running         -> Running
//   - all Stopped         -> Stopped
//   - any Starting/Building -> Starting
//   - any Stopping        -> Stopping
//   - otherwise           -> Unknown
func AggregateStatus(services map[string]ServiceStatus) RuntimeStatus {
	if len(services) == 0 {
		return RuntimeNotCreated
	}

	var running, stopped, starting, stopping int
	for _, svc := range services {
		switch svc.Status {
		case RuntimeError:
			return RuntimeError
		case RuntimeRunning:
			running++
		case RuntimeStopped:
			stopped++
		case RuntimeStarting, RuntimeBuilding:
			starting++
		case RuntimeStopping:
			stopping++
		}
	}

	switch {
	case running == len(services):
		return RuntimeRunning
	case stopped == len(services):
		return RuntimeStopped
	case starting > 0:
		return RuntimeStarting
	case stopping > 0:
		return RuntimeStopping
	default:
		return RuntimeUnknown
	}
}
