// Package lifecycle drives stacks through build, start, stop, destroy and
// status, delegating the work to the resolved builder and engine plugins and
// recording every transition in the state store.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
)

// Operation names a lifecycle operation.
type Operation string

const (
	OpBuild   Operation = "build"
	OpStart   Operation = "start"
	OpStop    Operation = "stop"
	OpDestroy Operation = "destroy"
	OpStatus  Operation = "status"
)

// =============================================================================
// Dependencies
// =============================================================================

// StateStore persists StackState records.
type StateStore interface {
	LoadAll() domain.DevxState
	GetOne(name string) (domain.StackState, bool)
	Update(name string, u domain.Update) (domain.StackState, error)
	Remove(name string) (bool, error)
}

// ConfigLoader resolves a stack identifier to its config and absolute path.
type ConfigLoader interface {
	Load(ctx context.Context, identifier, searchDir string) (*stack.Config, string, error)
}

// History records completed operations.
type History interface {
	RecordOperation(ctx context.Context, op catalog.Operation) error
}

// Options configures an Orchestrator.
type Options struct {
	Store    StateStore
	Loader   ConfigLoader
	Resolver *plugin.Resolver
	Defaults plugin.Defaults
	History  History          // Optional
	Timeout  time.Duration    // Per delegate call; 0 means none
	Now      func() time.Time // Defaults to time.Now
	Logger   *slog.Logger
	// SearchDir is where stacks are discovered when no identifier is given.
	SearchDir string
}

// Orchestrator implements the stack lifecycle state machine.
type Orchestrator struct {
	store     StateStore
	loader    ConfigLoader
	resolver  *plugin.Resolver
	defaults  plugin.Defaults
	history   History
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
	searchDir string

	locks sync.Map // stack name -> *sync.Mutex
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:     opts.Store,
		loader:    opts.Loader,
		resolver:  opts.Resolver,
		defaults:  opts.Defaults,
		history:   opts.History,
		timeout:   opts.Timeout,
		now:       opts.Now,
		logger:    opts.Logger,
		searchDir: opts.SearchDir,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// loaded is a stack config together with where it came from.
type loaded struct {
	cfg         *stack.Config
	configPath  string
	projectPath string
}

func newLoaded(cfg *stack.Config, configPath string) *loaded {
	return &loaded{cfg: cfg, configPath: configPath, projectPath: filepath.Dir(configPath)}
}

func (o *Orchestrator) load(ctx context.Context, op Operation, id string) (*loaded, error) {
	cfg, path, err := o.loader.Load(ctx, id, o.searchDir)
	if err != nil {
		return nil, opError(id, op, err)
	}
	return newLoaded(cfg, path), nil
}

// run executes fn under the stack's lock and records it in the history.
func (o *Orchestrator) run(ctx context.Context, op Operation, l *loaded, fn func(context.Context, *loaded) error) error {
	defer o.lock(l.cfg.Name)()

	started := o.now()
	err := fn(ctx, l)
	o.record(ctx, l.cfg.Name, op, started, err)
	return err
}

// lock serializes operations on one stack within this process.
func (o *Orchestrator) lock(name string) func() {
	v, _ := o.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ensureState returns the stack's record, creating a NotBuilt/Unknown record
// when absent and refreshing the config path when it moved.
func (o *Orchestrator) ensureState(op Operation, l *loaded) (domain.StackState, error) {
	if st, ok := o.store.GetOne(l.cfg.Name); ok && st.ConfigPath == l.configPath {
		return st, nil
	}
	st, err := o.store.Update(l.cfg.Name, domain.Update{}.WithConfigPath(l.configPath))
	if err != nil {
		return domain.StackState{}, opError(l.cfg.Name, op, err)
	}
	return st, nil
}

// delegateContext applies the per-call timeout, if any.
func (o *Orchestrator) delegateContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// fail records u after a delegate failure and returns the wrapped error. A
// failed state write is joined onto the delegate error.
func (o *Orchestrator) fail(name string, op Operation, u domain.Update, cause error) error {
	opErr := delegateError(name, op, cause)
	if _, err := o.store.Update(name, u); err != nil {
		o.logger.Error("failed to record operation failure", "stack", name, "operation", op, "error", err)
		return errors.Join(opErr, err)
	}
	return opErr
}

func (o *Orchestrator) record(ctx context.Context, name string, op Operation, started time.Time, opErr error) {
	if o.history == nil {
		return
	}
	entry := catalog.Operation{
		Stack:      name,
		Operation:  string(op),
		Outcome:    catalog.OutcomeSucceeded,
		StartedAt:  started,
		FinishedAt: o.now(),
	}
	if opErr != nil {
		entry.Outcome = catalog.OutcomeFailed
		entry.Error = opErr.Error()
	}
	if err := o.history.RecordOperation(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Warn("failed to record operation history", "stack", name, "operation", op, "error", err)
	}
}

// =============================================================================
// Build
// =============================================================================

// Build generates the stack's orchestrator config and builds it.
func (o *Orchestrator) Build(ctx context.Context, id string) error {
	l, err := o.load(ctx, OpBuild, id)
	if err != nil {
		return err
	}
	return o.run(ctx, OpBuild, l, o.build)
}

// BuildStack is Build for a config that is already loaded.
func (o *Orchestrator) BuildStack(ctx context.Context, cfg *stack.Config, configPath string) error {
	return o.run(ctx, OpBuild, newLoaded(cfg, configPath), o.build)
}

func (o *Orchestrator) build(ctx context.Context, l *loaded) error {
	name := l.cfg.Name
	if _, err := o.ensureState(OpBuild, l); err != nil {
		return err
	}

	builder, err := o.resolver.ResolveBuilder(l.cfg, o.defaults)
	if err != nil {
		return opError(name, OpBuild, err)
	}

	if _, err := o.store.Update(name, domain.BuildStarted()); err != nil {
		return opError(name, OpBuild, err)
	}
	o.logger.Info("building stack", "stack", name, "builder", builder.Name())

	dctx, cancel := o.delegateContext(ctx)
	defer cancel()

	manifest, err := builder.GenerateConfig(dctx, l.cfg, l.projectPath)
	if err == nil {
		err = builder.Build(dctx, l.cfg, l.projectPath)
	}
	if err != nil {
		o.logger.Error("build failed", "stack", name, "error", err)
		return o.fail(name, OpBuild, domain.BuildFailed(err), err)
	}

	if _, err := o.store.Update(name, domain.BuildSucceeded(o.now(), manifest)); err != nil {
		return opError(name, OpBuild, err)
	}
	o.logger.Info("stack built", "stack", name, "manifest", manifest)
	return nil
}

// =============================================================================
// Start / Stop
// =============================================================================

// Start starts the stack, building it first when it is not built. When the
// inline build fails the engine is never called.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	l, err := o.load(ctx, OpStart, id)
	if err != nil {
		return err
	}
	return o.run(ctx, OpStart, l, o.start)
}

// StartStack is Start for a config that is already loaded.
func (o *Orchestrator) StartStack(ctx context.Context, cfg *stack.Config, configPath string) error {
	return o.run(ctx, OpStart, newLoaded(cfg, configPath), o.start)
}

func (o *Orchestrator) start(ctx context.Context, l *loaded) error {
	name := l.cfg.Name
	st, err := o.ensureState(OpStart, l)
	if err != nil {
		return err
	}

	if st.BuildStatus != domain.BuildBuilt {
		o.logger.Warn("stack is not built, building first", "stack", name, "build_status", st.BuildStatus)
		buildStarted := o.now()
		buildErr := o.build(ctx, l)
		o.record(ctx, name, OpBuild, buildStarted, buildErr)
		if current, ok := o.store.GetOne(name); !ok || current.BuildStatus != domain.BuildBuilt {
			if buildErr != nil {
				return opError(name, OpStart, errors.Join(ErrBuildRequired, buildErr))
			}
			return opError(name, OpStart, ErrBuildRequired)
		}
	}

	engine, err := o.resolver.ResolveEngine(l.cfg, o.defaults)
	if err != nil {
		return opError(name, OpStart, err)
	}

	if _, err := o.store.Update(name, domain.RuntimeChanged(domain.RuntimeStarting)); err != nil {
		return opError(name, OpStart, err)
	}
	o.logger.Info("starting stack", "stack", name, "engine", engine.Name())

	dctx, cancel := o.delegateContext(ctx)
	defer cancel()

	err = o.runtime(dctx, l, engine, OpStart)
	if err != nil {
		o.logger.Error("start failed", "stack", name, "error", err)
		return o.fail(name, OpStart, domain.RuntimeFailed(domain.RuntimeError, err), err)
	}

	if _, err := o.store.Update(name, domain.Started(o.now())); err != nil {
		return opError(name, OpStart, err)
	}
	o.logger.Info("stack started", "stack", name)
	return nil
}

// Stop stops the stack's running containers.
func (o *Orchestrator) Stop(ctx context.Context, id string) error {
	l, err := o.load(ctx, OpStop, id)
	if err != nil {
		return err
	}
	return o.run(ctx, OpStop, l, o.stop)
}

// StopStack is Stop for a config that is already loaded.
func (o *Orchestrator) StopStack(ctx context.Context, cfg *stack.Config, configPath string) error {
	return o.run(ctx, OpStop, newLoaded(cfg, configPath), o.stop)
}

func (o *Orchestrator) stop(ctx context.Context, l *loaded) error {
	name := l.cfg.Name
	if _, err := o.ensureState(OpStop, l); err != nil {
		return err
	}

	engine, err := o.resolver.ResolveEngine(l.cfg, o.defaults)
	if err != nil {
		return opError(name, OpStop, err)
	}

	if _, err := o.store.Update(name, domain.RuntimeChanged(domain.RuntimeStopping)); err != nil {
		return opError(name, OpStop, err)
	}
	o.logger.Info("stopping stack", "stack", name, "engine", engine.Name())

	dctx, cancel := o.delegateContext(ctx)
	defer cancel()

	if err := o.runtime(dctx, l, engine, OpStop); err != nil {
		o.logger.Error("stop failed", "stack", name, "error", err)
		return o.fail(name, OpStop, domain.RuntimeFailed(domain.RuntimeError, err), err)
	}

	if _, err := o.store.Update(name, domain.Stopped()); err != nil {
		return opError(name, OpStop, err)
	}
	o.logger.Info("stack stopped", "stack", name)
	return nil
}

// runtime starts or stops the stack through the engine, falling back to the
// builder when the engine is unavailable or the stack has no containers.
func (o *Orchestrator) runtime(ctx context.Context, l *loaded, engine plugin.Engine, op Operation) error {
	if engine.IsAvailable(ctx) {
		var err error
		if op == OpStart {
			err = engine.Start(ctx, l.cfg, l.projectPath)
		} else {
			err = engine.Stop(ctx, l.cfg, l.projectPath)
		}
		if !errors.Is(err, plugin.ErrStackNotCreated) {
			return err
		}
		o.logger.Debug("stack has no containers, using builder", "stack", l.cfg.Name, "operation", op)
	} else {
		o.logger.Debug("engine unavailable, using builder", "stack", l.cfg.Name, "engine", engine.Name(), "operation", op)
	}

	builder, err := o.resolver.ResolveBuilder(l.cfg, o.defaults)
	if err != nil {
		return err
	}
	if op == OpStart {
		return builder.Start(ctx, l.cfg, l.projectPath)
	}
	return builder.Stop(ctx, l.cfg, l.projectPath)
}

// =============================================================================
// Destroy
// =============================================================================

// Destroy tears the stack down and removes its state record. On failure the
// record is kept with runtime status Error.
func (o *Orchestrator) Destroy(ctx context.Context, id string, opts plugin.DestroyOptions) error {
	l, err := o.load(ctx, OpDestroy, id)
	if err != nil {
		return err
	}
	return o.destroyLoaded(ctx, l, opts)
}

// DestroyStack is Destroy for a config that is already loaded.
func (o *Orchestrator) DestroyStack(ctx context.Context, cfg *stack.Config, configPath string, opts plugin.DestroyOptions) error {
	return o.destroyLoaded(ctx, newLoaded(cfg, configPath), opts)
}

func (o *Orchestrator) destroyLoaded(ctx context.Context, l *loaded, opts plugin.DestroyOptions) error {
	return o.run(ctx, OpDestroy, l, func(ctx context.Context, l *loaded) error {
		return o.destroy(ctx, l, opts)
	})
}

func (o *Orchestrator) destroy(ctx context.Context, l *loaded, opts plugin.DestroyOptions) error {
	name := l.cfg.Name
	st, err := o.ensureState(OpDestroy, l)
	if err != nil {
		return err
	}

	builder, err := o.resolver.ResolveBuilder(l.cfg, o.defaults)
	if err != nil {
		return opError(name, OpDestroy, err)
	}

	if _, err := o.store.Update(name, domain.RuntimeChanged(domain.RuntimeDestroying)); err != nil {
		return opError(name, OpDestroy, err)
	}
	o.logger.Info("destroying stack", "stack", name, "builder", builder.Name(), "remove_volumes", opts.RemoveVolumes)

	dctx, cancel := o.delegateContext(ctx)
	defer cancel()

	if err := builder.Destroy(dctx, l.cfg, l.projectPath, opts); err != nil {
		o.logger.Error("destroy failed", "stack", name, "error", err)
		return o.fail(name, OpDestroy, domain.RuntimeFailed(domain.RuntimeError, err), err)
	}

	if _, err := o.store.Remove(name); err != nil {
		return opError(name, OpDestroy, err)
	}
	if st.ManifestPath != nil {
		o.removeManifest(name, *st.ManifestPath)
	}
	o.logger.Info("stack destroyed", "stack", name)
	return nil
}

// removeManifest deletes a generated manifest and its directory if empty.
func (o *Orchestrator) removeManifest(name, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("failed to remove manifest", "stack", name, "path", path, "error", err)
		return
	}
	// Only succeeds when the directory is empty.
	_ = os.Remove(filepath.Dir(path))
}

// =============================================================================
// Status / List
// =============================================================================

// Status reports the stack's aggregate runtime status. It never fails:
// errors are returned as a status of Error with the message set.
func (o *Orchestrator) Status(ctx context.Context, id string) domain.StackStatus {
	l, err := o.load(ctx, OpStatus, id)
	if err != nil {
		return domain.StackStatus{Name: id, Status: domain.RuntimeError, Error: err.Error()}
	}
	return o.status(ctx, l)
}

// StackStatus is Status for a config that is already loaded.
func (o *Orchestrator) StackStatus(ctx context.Context, cfg *stack.Config, configPath string) domain.StackStatus {
	return o.status(ctx, newLoaded(cfg, configPath))
}

func (o *Orchestrator) status(ctx context.Context, l *loaded) domain.StackStatus {
	defer o.lock(l.cfg.Name)()

	status, err := o.observe(ctx, l)
	if err != nil {
		return domain.StackStatus{Name: l.cfg.Name, Status: domain.RuntimeError, Error: err.Error()}
	}
	return *status
}

// observe is Status with failures returned as errors. Delegate failures are
// recorded in the state store before returning.
func (o *Orchestrator) observe(ctx context.Context, l *loaded) (*domain.StackStatus, error) {
	name := l.cfg.Name
	st, err := o.ensureState(OpStatus, l)
	if err != nil {
		return nil, err
	}

	if st.BuildStatus == domain.BuildNotBuilt {
		return &domain.StackStatus{Name: name, Status: domain.RuntimeStopped}, nil
	}

	engine, err := o.resolver.ResolveEngine(l.cfg, o.defaults)
	if err != nil {
		if _, uerr := o.store.Update(name, domain.RuntimeFailed(domain.RuntimeError, err)); uerr != nil {
			o.logger.Warn("failed to record status failure", "stack", name, "error", uerr)
		}
		return nil, opError(name, OpStatus, err)
	}

	dctx, cancel := o.delegateContext(ctx)
	defer cancel()

	reported, err := engine.GetStackStatus(dctx, name, l.projectPath)
	if err == nil && reported == nil {
		err = errors.New("engine returned no status")
	}
	if err != nil {
		o.logger.Warn("status check failed", "stack", name, "engine", engine.Name(), "error", err)
		return nil, o.fail(name, OpStatus, domain.RuntimeFailed(domain.RuntimeError, err), err)
	}

	result := domain.StackStatus{
		Name:     name,
		Status:   domain.AggregateStatus(reported.Services),
		Services: reported.Services,
	}
	if result.Status == domain.RuntimeError {
		result.Error = reported.Error
		if result.Error == "" {
			result.Error = "one or more services are in error state"
		}
	}

	if _, err := o.store.Update(name, domain.Observed(result.Status, result.Error)); err != nil {
		o.logger.Warn("failed to record observed status", "stack", name, "error", err)
	}
	return &result, nil
}

// List returns every persisted stack record.
func (o *Orchestrator) List() domain.DevxState {
	return o.store.LoadAll()
}
