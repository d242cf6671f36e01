package domain

import (
	"errors"
	"time"
)

var (
	// ErrMissingConfigPath is returned when a new state record would be
	// created without a config path.
	ErrMissingConfigPath = errors.New("config path is required to create stack state")
)

// =============================================================================
// StackState
// =============================================================================

// StackState is the persisted lifecycle record of one stack.
type StackState struct {
	Name          string        `json:"name"`
	ConfigPath    string        `json:"configPath"`
	BuildStatus   BuildStatus   `json:"buildStatus"`
	RuntimeStatus RuntimeStatus `json:"runtimeStatus"`
	LastBuiltAt   *time.Time    `json:"lastBuiltAt"`
	LastStartedAt *time.Time    `json:"lastStartedAt"`
	ManifestPath  *string       `json:"manifestPath"`
	LastError     *string       `json:"lastError"`
}

// DevxState is the full persisted store, keyed by stack name.
type DevxState map[string]StackState

// Clone returns a deep-enough copy so callers cannot mutate a cached state.
func (s DevxState) Clone() DevxState {
	out := make(DevxState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// NewStackState creates the initial record for a stack seen for the first time.
func NewStackState(name, configPath string) (StackState, error) {
	if configPath == "" {
		return StackState{}, ErrMissingConfigPath
	}
	return StackState{
		Name:          name,
		ConfigPath:    configPath,
		BuildStatus:   BuildNotBuilt,
		RuntimeStatus: RuntimeUnknown,
	}, nil
}

// =============================================================================
// Partial Updates
// =============================================================================

// Optional is a field of a partial update. The zero value leaves the target
// untouched; Null clears it; Value sets it.
type Optional[T any] struct {
	set bool
	val *T
}

// Value returns an Optional that sets the field to v.
func Value[T any](v T) Optional[T] {
	return Optional[T]{set: true, val: &v}
}

// Null returns an Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true}
}

// IsSet reports whether the update touches this field.
func (o Optional[T]) IsSet() bool { return o.set }

// Ptr returns the new value, nil for Null.
func (o Optional[T]) Ptr() *T {
	if o.val == nil {
		return nil
	}
	v := *o.val
	return &v
}

// Update is a partial StackState. Only set fields are merged.
type Update struct {
	Name          *string
	ConfigPath    *string
	BuildStatus   *BuildStatus
	RuntimeStatus *RuntimeStatus
	LastBuiltAt   Optional[time.Time]
	LastStartedAt Optional[time.Time]
	ManifestPath  Optional[string]
	LastError     Optional[string]
}

// Apply merges u onto s and returns the result. Name and ConfigPath are
// preserved unless u overrides them.
func (s StackState) Apply(u Update) StackState {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.ConfigPath != nil {
		s.ConfigPath = *u.ConfigPath
	}
	if u.BuildStatus != nil {
		s.BuildStatus = *u.BuildStatus
	}
	if u.RuntimeStatus != nil {
		s.RuntimeStatus = *u.RuntimeStatus
	}
	if u.LastBuiltAt.IsSet() {
		s.LastBuiltAt = u.LastBuiltAt.Ptr()
	}
	if u.LastStartedAt.IsSet() {
		s.LastStartedAt = u.LastStartedAt.Ptr()
	}
	if u.ManifestPath.IsSet() {
		s.ManifestPath = u.ManifestPath.Ptr()
	}
	if u.LastError.IsSet() {
		s.LastError = u.LastError.Ptr()
	}
	return s
}

// =============================================================================
// Transition Updates
// =============================================================================

func buildStatus(s BuildStatus) *BuildStatus       { return &s }
func runtimeStatus(s RuntimeStatus) *RuntimeStatus { return &s }

// WithConfigPath returns a copy of u that also sets the config path.
func (u Update) WithConfigPath(path string) Update {
	if path != "" {
		u.ConfigPath = &path
	}
	return u
}

// BuildStarted marks a build in progress.
func BuildStarted() Update {
	return Update{BuildStatus: buildStatus(BuildBuilding)}
}

// BuildSucceeded records a successful build at now.
func BuildSucceeded(now time.Time, manifestPath string) Update {
	u := Update{
		BuildStatus: buildStatus(BuildBuilt),
		LastBuiltAt: Value(now.UTC()),
		LastError:   Null[string](),
	}
	if manifestPath != "" {
		u.ManifestPath = Value(manifestPath)
	}
	return u
}

// BuildFailed records a failed build.
func BuildFailed(err error) Update {
	return Update{
		BuildStatus: buildStatus(BuildError),
		LastError:   Value(err.Error()),
	}
}

// RuntimeChanged records a transitional runtime status.
func RuntimeChanged(status RuntimeStatus) Update {
	return Update{RuntimeStatus: runtimeStatus(status)}
}

// Started records a successful start at now.
func Started(now time.Time) Update {
	return Update{
		RuntimeStatus: runtimeStatus(RuntimeRunning),
		LastStartedAt: Value(now.UTC()),
		LastError:     Null[string](),
	}
}

// Stopped records a successful stop.
func Stopped() Update {
	return Update{
		RuntimeStatus: runtimeStatus(RuntimeStopped),
		LastStartedAt: Null[time.Time](),
		LastError:     Null[string](),
	}
}

// RuntimeFailed records a failed runtime operation with the given status
// (Error when the outcome is known, Unknown when it is uncertain).
func RuntimeFailed(status RuntimeStatus, err error) Update {
	return Update{
		RuntimeStatus: runtimeStatus(status),
		LastError:     Value(err.Error()),
	}
}

// Observed records the result of a status check. The last error is cleared
// unless the observed status is Error.
func Observed(status RuntimeStatus, errMsg string) Update {
	u := Update{RuntimeStatus: runtimeStatus(status)}
	if status == RuntimeError {
		if errMsg != "" {
			u.LastError = Value(errMsg)
		}
	} else {
		u.LastError = Null[string]()
	}
	return u
}
