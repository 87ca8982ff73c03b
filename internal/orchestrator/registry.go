package orchestrator

import (
	"sync"
	"time"

	"github.com/chrysalis-dev/morph-core/internal/adapter"
	"github.com/chrysalis-dev/morph-core/internal/events"
)

// HealthStatus is an adapter registration's current serving status
// (spec.md §4.9): degraded adapters still serve but callers are warned.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// HealthChecker is an optional hook a concrete adapter can implement for
// a custom liveness probe; adapters that don't implement it are checked
// by running ValidateNative against their registered canary payload.
type HealthChecker interface {
	HealthCheck() error
}

type registration struct {
	adapter   adapter.Adapter
	canary    map[string]interface{}
	status    HealthStatus
	lastCheck time.Time
}

// Registry indexes adapters by framework tag (spec.md §4.9): read-mostly,
// writes (register/unregister) under a single lock, with a background
// ticker driving periodic health checks.
type Registry struct {
	mu    sync.RWMutex
	byTag map[string]*registration
	bus   *events.Bus

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry constructs an empty Registry. If bus is non-nil, health
// transitions publish an AdapterHealthChanged event.
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{
		byTag:  make(map[string]*registration),
		bus:    bus,
		stopCh: make(chan struct{}),
	}
}

// Register adds an adapter under its FrameworkTag, with an optional
// canary payload used for the default health check when the adapter
// does not implement HealthChecker.
func (r *Registry) Register(a adapter.Adapter, canary map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTag[a.FrameworkTag()] = &registration{adapter: a, canary: canary, status: HealthHealthy}
}

// Unregister removes an adapter by framework tag.
func (r *Registry) Unregister(frameworkTag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byTag, frameworkTag)
}

// Get returns the adapter registered for frameworkTag, if any.
func (r *Registry) Get(frameworkTag string) (adapter.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byTag[frameworkTag]
	if !ok {
		return nil, false
	}
	return reg.adapter, true
}

// Status returns the current health status for frameworkTag.
func (r *Registry) Status(frameworkTag string) (HealthStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byTag[frameworkTag]
	if !ok {
		return "", false
	}
	return reg.status, true
}

// FrameworkTags returns every currently registered framework tag.
func (r *Registry) FrameworkTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	return tags
}

// CheckHealth runs one health-check pass over every registered adapter,
// updating statuses and publishing AdapterHealthChanged for anything
// that changed.
func (r *Registry) CheckHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tag, reg := range r.byTag {
		prev := reg.status
		reg.status = r.probe(reg)
		reg.lastCheck = time.Now()
		if reg.status != prev && r.bus != nil {
			r.bus.Publish(events.Event{
				Type:      events.AdapterHealthChange,
				Primitive: events.PrimitiveAgent,
				Payload: map[string]interface{}{
					"framework": tag,
					"from":      string(prev),
					"to":        string(reg.status),
				},
			})
		}
	}
}

func (r *Registry) probe(reg *registration) HealthStatus {
	if hc, ok := reg.adapter.(HealthChecker); ok {
		if err := hc.HealthCheck(); err != nil {
			return HealthDown
		}
		return HealthHealthy
	}
	result := reg.adapter.ValidateNative(reg.canary)
	if !result.Valid {
		return HealthDegraded
	}
	return HealthHealthy
}

// StartHealthChecks runs CheckHealth on the given interval until Stop is
// called. Each call starts its own loop; Stop ends all of them.
func (r *Registry) StartHealthChecks(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.CheckHealth()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background health-check loop, if running. Double-stop
// is a no-op.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}
