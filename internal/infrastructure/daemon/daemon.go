package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrescamacho/commuter-go/internal/adapters/hub"
	applog "github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/container"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
	infralog "github.com/andrescamacho/commuter-go/internal/infrastructure/logging"
)

// Operation is one long-lived unit of work the daemon supervises
type Operation struct {
	Type     container.Type
	Name     string
	Metadata map[string]interface{}

	// Run blocks until the context is cancelled or the operation fails.
	// A nil or context.Canceled return counts as a graceful stop.
	Run func(ctx context.Context) error
}

// HealthEvent is the periodic system:health payload
type HealthEvent struct {
	Timestamp  time.Time              `json:"timestamp"`
	Containers []ContainerHealth      `json:"containers"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// ContainerHealth is one container's slice of the health event
type ContainerHealth struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Restarts int    `json:"restarts"`
	Uptime   string `json:"uptime"`
}

// Runner supervises containers: each operation runs in its own goroutine
// under a container, failures restart up to the container's restart budget,
// and container state is persisted for recovery audit.
type Runner struct {
	repo    container.Repository
	logRepo container.LogRepository
	hub     *hub.Hub
	logger  applog.OperationLogger
	clock   shared.Clock

	healthInterval time.Duration

	mu         sync.Mutex
	containers map[string]*container.Container
	names      map[string]string

	onRestart func(containerType container.Type)
	onFatal   func()
}

// NewRunner creates a daemon runner. The hub and repositories may be nil in
// tests; health publishing and persistence are skipped accordingly.
func NewRunner(repo container.Repository, logRepo container.LogRepository, h *hub.Hub, logger applog.OperationLogger, healthInterval time.Duration, clock shared.Clock) *Runner {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Runner{
		repo:           repo,
		logRepo:        logRepo,
		hub:            h,
		logger:         logger,
		clock:          clock,
		healthInterval: healthInterval,
		containers:     make(map[string]*container.Container),
		names:          make(map[string]string),
	}
}

// OnRestart registers a callback fired on every automatic restart
func (r *Runner) OnRestart(fn func(containerType container.Type)) {
	r.onRestart = fn
}

// OnFatal registers the callback fired when a container fails with a
// FatalError. The caller is expected to cancel the root context.
func (r *Runner) OnFatal(fn func()) {
	r.onFatal = fn
}

func (r *Runner) abort() {
	if r.onFatal != nil {
		r.onFatal()
	}
}

// RecoverInterrupted marks containers left RUNNING by a previous process
func (r *Runner) RecoverInterrupted(ctx context.Context) {
	if r.repo == nil {
		return
	}
	n, err := r.repo.MarkInterrupted(ctx)
	if err != nil {
		r.log("WARN", "failed to mark interrupted containers", map[string]interface{}{"error": err.Error()})
		return
	}
	if n > 0 {
		r.log("INFO", "marked interrupted containers from previous run", map[string]interface{}{"count": n})
	}
}

// Run starts every operation and blocks until the context is cancelled and
// all operations have returned.
func (r *Runner) Run(ctx context.Context, ops []Operation) {
	if r.hub != nil {
		_ = r.hub.Publish(hub.NamespaceSystem, r.hub.NewEnvelope(hub.EventServiceConnected, "daemon", nil))
		defer func() {
			_ = r.hub.Publish(hub.NamespaceSystem, r.hub.NewEnvelope(hub.EventServiceDisconnected, "daemon", nil))
		}()
	}

	var wg sync.WaitGroup
	for _, op := range ops {
		wg.Add(1)
		go func(op Operation) {
			defer wg.Done()
			r.supervise(ctx, op)
		}(op)
	}

	if r.healthInterval > 0 && r.hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.healthLoop(ctx)
		}()
	}

	wg.Wait()
}

// supervise runs one operation under a container with the restart policy
func (r *Runner) supervise(ctx context.Context, op Operation) {
	c := container.New(uuid.NewString(), op.Type, -1, op.Metadata, r.clock)

	r.mu.Lock()
	r.containers[c.ID()] = c
	r.names[c.ID()] = op.Name
	r.mu.Unlock()

	opLogger := r.operationLogger(c.ID())
	opCtx := applog.WithLogger(ctx, opLogger)

	for {
		if err := c.Start(); err != nil {
			r.log("ERROR", "container failed to start", map[string]interface{}{"name": op.Name, "error": err.Error()})
			return
		}
		r.persist(ctx, c, "")
		opLogger.Log("INFO", "container started", map[string]interface{}{"type": string(op.Type), "name": op.Name})

		err := op.Run(opCtx)

		if ctx.Err() != nil {
			_ = c.Stopped()
			r.persist(context.Background(), c, "shutdown")
			opLogger.Log("INFO", "container stopped", map[string]interface{}{"name": op.Name})
			return
		}

		if err == nil {
			_ = c.Complete()
			r.persist(ctx, c, "completed")
			opLogger.Log("INFO", "container completed", map[string]interface{}{"name": op.Name})
			return
		}

		_ = c.Fail(err)
		r.persist(ctx, c, err.Error())
		opLogger.Log("ERROR", "container failed", map[string]interface{}{"name": op.Name, "error": err.Error()})

		// Corrupted invariants are not restartable. Announce the loss and
		// bring the whole daemon down.
		if shared.IsFatalError(err) {
			opLogger.Log("ERROR", "fatal invariant violation, shutting down", map[string]interface{}{
				"name": op.Name, "error": err.Error(),
			})
			if r.hub != nil {
				_ = r.hub.Publish(hub.NamespaceSystem, r.hub.NewEnvelope(hub.EventServiceDisconnected, "daemon", map[string]string{
					"reason": err.Error(),
				}))
			}
			r.abort()
			return
		}

		if !c.CanRestart() {
			opLogger.Log("ERROR", "container exhausted restart budget", map[string]interface{}{
				"name": op.Name, "restarts": c.RestartCount(),
			})
			return
		}
		if err := c.RecordRestart(); err != nil {
			return
		}
		if r.onRestart != nil {
			r.onRestart(op.Type)
		}
		opLogger.Log("WARN", "restarting container", map[string]interface{}{
			"name": op.Name, "attempt": c.RestartCount(),
		})

		// Brief backoff so a hot failure loop does not spin.
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(c.RestartCount()) * time.Second):
		}
	}
}

func (r *Runner) operationLogger(containerID string) applog.OperationLogger {
	if r.logRepo == nil {
		if r.logger != nil {
			return r.logger
		}
		return noopLogger{}
	}
	return infralog.NewContainerLogger(containerID, r.logger, r.logRepo, r.clock)
}

func (r *Runner) persist(ctx context.Context, c *container.Container, exitReason string) {
	if r.repo == nil {
		return
	}
	rec := &container.Record{
		ID:            c.ID(),
		ContainerType: c.Type(),
		Status:        c.Status(),
		RestartCount:  c.RestartCount(),
		Metadata:      c.Metadata(),
		StartedAt:     c.StartedAt(),
		StoppedAt:     c.StoppedAt(),
		ExitReason:    exitReason,
	}
	if err := r.repo.Save(ctx, rec); err != nil {
		r.log("WARN", "failed to persist container record", map[string]interface{}{
			"container_id": c.ID(), "error": err.Error(),
		})
	}
}

// healthLoop publishes system:health at the configured interval
func (r *Runner) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(r.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.hub.Publish(hub.NamespaceSystem, r.hub.NewEnvelope(hub.EventHealth, "daemon", r.Health()))
		}
	}
}

// Health snapshots every supervised container
func (r *Runner) Health() HealthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := HealthEvent{Timestamp: r.clock.Now()}
	for id, c := range r.containers {
		ev.Containers = append(ev.Containers, ContainerHealth{
			ID:       id,
			Type:     string(c.Type()),
			Name:     r.names[id],
			Status:   string(c.Status()),
			Restarts: c.RestartCount(),
			Uptime:   c.RuntimeDuration().String(),
		})
	}
	return ev
}

func (r *Runner) log(level, msg string, meta map[string]interface{}) {
	if r.logger != nil {
		r.logger.Log(level, msg, meta)
	}
}

type noopLogger struct{}

func (noopLogger) Log(string, string, map[string]interface{}) {}
