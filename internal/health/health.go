// Package health aggregates component health checks and serves them in
// the /q/health endpoint family.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Status of a component or the whole process.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Check is one component's result.
type Check struct {
	Name   string         `json:"name"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// Response is the aggregated endpoint body.
type Response struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

// CheckFunc performs one health check.
type CheckFunc func() Check

// Checker manages the process's liveness and readiness checks.
type Checker struct {
	mu              sync.RWMutex
	livenessChecks  []CheckFunc
	readinessChecks []CheckFunc
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{}
}

// AddLivenessCheck registers a liveness check.
func (c *Checker) AddLivenessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessChecks = append(c.livenessChecks, check)
}

// AddReadinessCheck registers a readiness check.
func (c *Checker) AddReadinessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readinessChecks = append(c.readinessChecks, check)
}

func runChecks(checks []CheckFunc) Response {
	response := Response{
		Status: StatusUp,
		Checks: make([]Check, 0, len(checks)),
	}
	for _, checkFunc := range checks {
		check := checkFunc()
		response.Checks = append(response.Checks, check)
		if check.Status == StatusDown {
			response.Status = StatusDown
		}
	}
	return response
}

// Liveness returns the liveness status.
func (c *Checker) Liveness() Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return runChecks(c.livenessChecks)
}

// Readiness returns the readiness status.
func (c *Checker) Readiness() Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return runChecks(c.readinessChecks)
}

// Health returns the combined status.
func (c *Checker) Health() Response {
	c.mu.RLock()
	all := make([]CheckFunc, 0, len(c.livenessChecks)+len(c.readinessChecks))
	all = append(all, c.livenessChecks...)
	all = append(all, c.readinessChecks...)
	c.mu.RUnlock()
	return runChecks(all)
}

// HandleHealth serves /q/health.
func (c *Checker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.Health())
}

// HandleLive serves /q/health/live.
func (c *Checker) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.Liveness())
}

// HandleReady serves /q/health/ready.
func (c *Checker) HandleReady(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.Readiness())
}

func writeResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// MongoDBCheck builds a readiness check from a ping function.
func MongoDBCheck(ping func() error) CheckFunc {
	return named("MongoDB", ping)
}

// BusCheck builds a readiness check for the event bus backend.
func BusCheck(probe func() error) CheckFunc {
	return named("EventBus", probe)
}

// ServiceCheck builds a check from a lifecycle service's Health
// method.
func ServiceCheck(name string, probe func() error) CheckFunc {
	return named(name, probe)
}

func named(name string, probe func() error) CheckFunc {
	return func() Check {
		if err := probe(); err != nil {
			return Check{
				Name:   name,
				Status: StatusDown,
				Data:   map[string]any{"error": err.Error()},
			}
		}
		return Check{Name: name, Status: StatusUp}
	}
}
