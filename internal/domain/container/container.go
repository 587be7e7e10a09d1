package container

import (
	"fmt"
	"time"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Status represents the lifecycle state of a container
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopping  Status = "STOPPING"
	StatusStopped   Status = "STOPPED"

	// StatusInterrupted marks a container that was running when the daemon
	// stopped, pending recovery on next start
	StatusInterrupted Status = "INTERRUPTED"
)

// Type categorizes the long-lived operations the daemon runs
type Type string

const (
	TypeConductor       Type = "CONDUCTOR"
	TypeDemandGenerator Type = "DEMAND_GENERATOR"
	TypeSweeper         Type = "EXPIRATION_SWEEPER"
	TypeCacheRefresher  Type = "CACHE_REFRESHER"
	TypeConfigRefresher Type = "CONFIG_REFRESHER"
	TypeTelemetryBridge Type = "TELEMETRY_BRIDGE"
	TypeHealthMonitor   Type = "HEALTH_MONITOR"
)

// MaxRestartAttempts bounds automatic restarts of a failed container so a
// persistent fault cannot produce an infinite restart loop.
const MaxRestartAttempts = 3

// Container is the unit of work orchestration: every conductor, the demand
// ticker, the sweepers and the refreshers each run in their own goroutine
// under one of these, so they can be started, stopped, monitored and
// restarted independently.
type Container struct {
	id            string
	containerType Type

	lifecycle *shared.LifecycleStateMachine

	stopping    bool
	interrupted bool

	currentIteration int
	maxIterations    int // -1 for infinite

	restartCount int
	maxRestarts  int

	// Operation-specific metadata (vehicle id, route id, intervals)
	metadata map[string]interface{}

	clock shared.Clock
}

// New creates a container. A nil clock selects the real clock.
func New(id string, containerType Type, maxIterations int, metadata map[string]interface{}, clock shared.Clock) *Container {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Container{
		id:            id,
		containerType: containerType,
		lifecycle:     shared.NewLifecycleStateMachine(clock),
		maxIterations: maxIterations,
		maxRestarts:   MaxRestartAttempts,
		metadata:      metadata,
		clock:         clock,
	}
}

// ID returns the container id
func (c *Container) ID() string { return c.id }

// Type returns the container type
func (c *Container) Type() Type { return c.containerType }

// Metadata returns the operation-specific metadata map
func (c *Container) Metadata() map[string]interface{} { return c.metadata }

// Status maps the lifecycle status plus the container-specific extensions
func (c *Container) Status() Status {
	if c.interrupted {
		return StatusInterrupted
	}
	if c.stopping {
		return StatusStopping
	}
	return Status(c.lifecycle.Status())
}

// Start transitions the container to RUNNING
func (c *Container) Start() error {
	c.stopping = false
	c.interrupted = false
	return c.lifecycle.Start()
}

// Complete marks the container finished successfully
func (c *Container) Complete() error {
	c.stopping = false
	return c.lifecycle.Complete()
}

// Fail marks the container failed with the given error
func (c *Container) Fail(err error) error {
	c.stopping = false
	return c.lifecycle.Fail(err)
}

// RequestStop flags graceful shutdown; the run loop observes the flag (or
// its context) and exits, after which Stopped finalizes the state.
func (c *Container) RequestStop() error {
	if c.lifecycle.Status() != shared.LifecycleStatusRunning {
		return fmt.Errorf("cannot stop container %s in status %s", c.id, c.Status())
	}
	c.stopping = true
	return nil
}

// Stopped finalizes a graceful shutdown
func (c *Container) Stopped() error {
	c.stopping = false
	return c.lifecycle.Stop()
}

// MarkInterrupted flags a container that was running at daemon shutdown
func (c *Container) MarkInterrupted() {
	c.interrupted = true
}

// IsStopRequested reports whether graceful shutdown was requested
func (c *Container) IsStopRequested() bool { return c.stopping }

// IncrementIteration bumps the loop counter and reports whether the
// container should keep iterating.
func (c *Container) IncrementIteration() bool {
	c.currentIteration++
	if c.maxIterations < 0 {
		return true
	}
	return c.currentIteration < c.maxIterations
}

// CurrentIteration returns the number of completed loop iterations
func (c *Container) CurrentIteration() int { return c.currentIteration }

// CanRestart reports whether automatic restart is still allowed
func (c *Container) CanRestart() bool {
	return c.restartCount < c.maxRestarts
}

// RecordRestart bumps the restart counter and resets the lifecycle so the
// container can run again.
func (c *Container) RecordRestart() error {
	if !c.CanRestart() {
		return fmt.Errorf("container %s exceeded %d restart attempts", c.id, c.maxRestarts)
	}
	c.restartCount++
	c.lifecycle = shared.NewLifecycleStateMachine(c.clock)
	return nil
}

// RestartCount returns how many times the container restarted
func (c *Container) RestartCount() int { return c.restartCount }

// RuntimeDuration returns how long the container has been/was running
func (c *Container) RuntimeDuration() time.Duration {
	return c.lifecycle.RuntimeDuration()
}

// LastError returns the last failure, if any
func (c *Container) LastError() error {
	return c.lifecycle.LastError()
}

// CreatedAt returns the container creation time
func (c *Container) CreatedAt() time.Time { return c.lifecycle.CreatedAt() }

// StartedAt returns when the container started, nil if pending
func (c *Container) StartedAt() *time.Time { return c.lifecycle.StartedAt() }

// StoppedAt returns when the container stopped, nil while running
func (c *Container) StoppedAt() *time.Time { return c.lifecycle.StoppedAt() }
