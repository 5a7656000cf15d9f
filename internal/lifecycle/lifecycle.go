// Package lifecycle supervises long-running process components. Each
// component of the bot and worker binaries (bus consumers, heartbeat
// producer, outbox relay, ops server) implements Service so startup
// order, shutdown order, and health roll-ups live in one place.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service is a startable, stoppable process component.
type Service interface {
	// Name identifies the service in logs and health reports.
	Name() string

	// Start runs the service. It blocks until ctx is cancelled or
	// returns an error when startup fails.
	Start(ctx context.Context) error

	// Stop shuts the service down, completing within ctx's deadline.
	Stop(ctx context.Context) error

	// Health returns nil when the service is healthy.
	Health() error
}

// Supervisor runs a set of services with coordinated lifecycle:
// started in order, stopped in reverse order.
type Supervisor struct {
	services    []Service
	stopTimeout time.Duration

	mu      sync.RWMutex
	running bool
}

// NewSupervisor creates a supervisor for the given services.
func NewSupervisor(services ...Service) *Supervisor {
	return &Supervisor{
		services:    services,
		stopTimeout: 30 * time.Second,
	}
}

// Run starts all services and blocks until ctx is cancelled, then
// stops them in reverse order. A service that fails during startup
// aborts the run and stops what was already started.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var started []Service
	for _, svc := range s.services {
		slog.Info("Starting service", "service", svc.Name())

		errCh := make(chan error, 1)
		go func(service Service) {
			errCh <- service.Start(ctx)
		}(svc)

		// Catch immediate startup failures; a service that is still
		// running after the grace window is considered started.
		select {
		case err := <-errCh:
			if err != nil {
				s.stopAll(started)
				return fmt.Errorf("service %s failed to start: %w", svc.Name(), err)
			}
		case <-time.After(100 * time.Millisecond):
		}

		started = append(started, svc)
		slog.Info("Service started", "service", svc.Name())
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping services")
	s.stopAll(started)
	return nil
}

func (s *Supervisor) stopAll(services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		slog.Info("Stopping service", "service", svc.Name())

		stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
		if err := svc.Stop(stopCtx); err != nil {
			slog.Error("Service stop error", "service", svc.Name(), "error", err)
		} else {
			slog.Info("Service stopped", "service", svc.Name())
		}
		cancel()
	}
}

// Health returns nil only when every supervised service is healthy.
func (s *Supervisor) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, svc := range s.services {
		if err := svc.Health(); err != nil {
			return fmt.Errorf("service %s unhealthy: %w", svc.Name(), err)
		}
	}
	return nil
}

// ServiceFunc adapts plain functions to the Service interface, for
// components that do not need their own type.
type ServiceFunc struct {
	name     string
	startFn  func(ctx context.Context) error
	stopFn   func(ctx context.Context) error
	healthFn func() error
}

// NewServiceFunc creates a Service from start and stop functions.
func NewServiceFunc(name string, start, stop func(ctx context.Context) error) *ServiceFunc {
	return &ServiceFunc{
		name:     name,
		startFn:  start,
		stopFn:   stop,
		healthFn: func() error { return nil },
	}
}

// WithHealth sets the health probe.
func (s *ServiceFunc) WithHealth(fn func() error) *ServiceFunc {
	s.healthFn = fn
	return s
}

func (s *ServiceFunc) Name() string                    { return s.name }
func (s *ServiceFunc) Start(ctx context.Context) error { return s.startFn(ctx) }
func (s *ServiceFunc) Stop(ctx context.Context) error  { return s.stopFn(ctx) }
func (s *ServiceFunc) Health() error                   { return s.healthFn() }
