package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyStarted is returned when registering or starting a running lifecycle
	ErrAlreadyStarted = errors.New("lifecycle already started")

	// ErrCircularDependency is returned when services depend on each other
	ErrCircularDependency = errors.New("circular dependency detected")
)

// Lifecycle starts services in dependency order and stops them in reverse.
type Lifecycle struct {
	// services in registration order
	services []Service
	byName   map[string]Service

	// dependencies tracks service dependencies
	dependencies map[string][]string

	// startOrder tracks the services that were started
	startOrder []string

	mutex   sync.RWMutex
	started bool

	listeners []func(LifecycleEvent)
	log       *logrus.Entry

	// timeout for each Start and Stop call
	timeout time.Duration
}

// NewLifecycle creates an empty lifecycle
func NewLifecycle(logger *logrus.Logger) *Lifecycle {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Lifecycle{
		byName:       make(map[string]Service),
		dependencies: make(map[string][]string),
		log:          logger.WithField("component", "lifecycle"),
		timeout:      30 * time.Second,
	}
}

// Register adds a service that starts after every service named in deps
func (lc *Lifecycle) Register(service Service, deps ...string) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}
	name := service.Name()
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	if lc.started {
		return fmt.Errorf("cannot register service %s: %w", name, ErrAlreadyStarted)
	}
	if _, exists := lc.byName[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	lc.services = append(lc.services, service)
	lc.byName[name] = service
	lc.dependencies[name] = deps

	lc.emit(LifecycleEvent{Type: EventServiceRegistered, Service: name})
	return nil
}

// Start starts every service in dependency order. When a service fails the
// ones already started are stopped again.
func (lc *Lifecycle) Start(ctx context.Context) error {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	if lc.started {
		return ErrAlreadyStarted
	}

	order, err := lc.calculateStartOrder()
	if err != nil {
		return &ApplicationError{Operation: "start", Err: err}
	}

	for _, name := range order {
		lc.emit(LifecycleEvent{Type: EventServiceStarting, Service: name})

		startCtx, cancel := context.WithTimeout(ctx, lc.timeout)
		err := lc.byName[name].Start(startCtx)
		cancel()

		if err != nil {
			lc.emit(LifecycleEvent{Type: EventServiceStartFailed, Service: name, Error: err})
			lc.stopStarted(ctx)
			return &ApplicationError{Operation: "start", Service: name, Err: err}
		}

		lc.startOrder = append(lc.startOrder, name)
		lc.emit(LifecycleEvent{Type: EventServiceStarted, Service: name})
	}

	lc.started = true
	lc.emit(LifecycleEvent{Type: EventLifecycleStarted})
	return nil
}

// Stop stops the started services in reverse order. Every service is asked
// to stop even when an earlier one fails; the first error is returned.
func (lc *Lifecycle) Stop(ctx context.Context) error {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	if !lc.started {
		return nil
	}

	err := lc.stopStarted(ctx)
	lc.started = false
	lc.emit(LifecycleEvent{Type: EventLifecycleStopped})
	return err
}

// Health returns the health status of every service
func (lc *Lifecycle) Health(ctx context.Context) map[string]HealthStatus {
	lc.mutex.RLock()
	services := make([]Service, len(lc.services))
	copy(services, lc.services)
	lc.mutex.RUnlock()

	health := make(map[string]HealthStatus, len(services))
	for _, service := range services {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		status, err := service.Health(healthCtx)
		cancel()

		if err != nil {
			status = HealthStatus{State: HealthUnhealthy, Message: err.Error()}
		}
		health[service.Name()] = status
	}
	return health
}

// Healthy reports whether every service is healthy
func (lc *Lifecycle) Healthy(ctx context.Context) (bool, map[string]HealthStatus) {
	health := lc.Health(ctx)
	for _, status := range health {
		if status.State != HealthHealthy {
			return false, health
		}
	}
	return true, health
}

// Services returns the registered service names in registration order
func (lc *Lifecycle) Services() []string {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()

	names := make([]string, 0, len(lc.services))
	for _, service := range lc.services {
		names = append(names, service.Name())
	}
	return names
}

// StartOrder returns the names of the started services in start order
func (lc *Lifecycle) StartOrder() []string {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()

	order := make([]string, len(lc.startOrder))
	copy(order, lc.startOrder)
	return order
}

// AddListener adds a lifecycle event listener. Listeners run synchronously
// and must not call back into the lifecycle.
func (lc *Lifecycle) AddListener(listener func(LifecycleEvent)) {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	lc.listeners = append(lc.listeners, listener)
}

// SetTimeout sets the timeout for service operations
func (lc *Lifecycle) SetTimeout(timeout time.Duration) {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	lc.timeout = timeout
}

// IsStarted returns true if the lifecycle has been started
func (lc *Lifecycle) IsStarted() bool {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()

	return lc.started
}

func (lc *Lifecycle) stopStarted(ctx context.Context) error {
	var firstErr error
	for i := len(lc.startOrder) - 1; i >= 0; i-- {
		name := lc.startOrder[i]
		lc.emit(LifecycleEvent{Type: EventServiceStopping, Service: name})

		stopCtx, cancel := context.WithTimeout(ctx, lc.timeout)
		err := lc.byName[name].Stop(stopCtx)
		cancel()

		if err != nil {
			lc.emit(LifecycleEvent{Type: EventServiceStopFailed, Service: name, Error: err})
			if firstErr == nil {
				firstErr = &ApplicationError{Operation: "stop", Service: name, Err: err}
			}
			continue
		}
		lc.emit(LifecycleEvent{Type: EventServiceStopped, Service: name})
	}
	lc.startOrder = nil
	return firstErr
}

// calculateStartOrder sorts the services topologically (Kahn's algorithm).
// Ties are broken by registration order so the order is deterministic.
func (lc *Lifecycle) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int, len(lc.services))
	dependents := make(map[string][]string, len(lc.services))

	for _, service := range lc.services {
		name := service.Name()
		for _, dep := range lc.dependencies[name] {
			if _, exists := lc.byName[dep]; !exists {
				return nil, fmt.Errorf("dependency %s of service %s is not registered", dep, name)
			}
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	order := make([]string, 0, len(lc.services))
	done := make(map[string]bool, len(lc.services))
	for len(order) < len(lc.services) {
		progress := false
		for _, service := range lc.services {
			name := service.Name()
			if done[name] || inDegree[name] > 0 {
				continue
			}
			done[name] = true
			order = append(order, name)
			for _, dependent := range dependents[name] {
				inDegree[dependent]--
			}
			progress = true
			break
		}
		if !progress {
			return nil, ErrCircularDependency
		}
	}
	return order, nil
}

// emit logs the event and hands it to every listener
func (lc *Lifecycle) emit(event LifecycleEvent) {
	event.Timestamp = time.Now()

	entry := lc.log.WithField("event", event.Type)
	if event.Service != "" {
		entry = entry.WithField("service", event.Service)
	}
	if event.Error != nil {
		entry.WithError(event.Error).Error("lifecycle event")
	} else {
		entry.Debug("lifecycle event")
	}

	for _, listener := range lc.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					lc.log.WithField("panic", r).Error("lifecycle listener panicked")
				}
			}()
			listener(event)
		}()
	}
}
