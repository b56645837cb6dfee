package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/ezenkico/useintest/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrDrained is returned by Start when the registry was drained while the
// instance was still starting.
var ErrDrained = errors.New("registry drained while service was starting")

// Stopper tears down an instance it started.
type Stopper interface {
	Stop(ctx context.Context, instance *models.ServiceInstance) error
}

type entry struct {
	stopper Stopper

	// Set while the owning controller is still starting the instance. Only
	// that controller may touch the instance then.
	starting bool
	// Set when a drain reached a starting instance
	cancelled bool
}

// Registry tracks every instance that still has to be stopped, along with
// the controller that can stop it. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[*models.ServiceInstance]*entry
	log     zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		entries: map[*models.ServiceInstance]*entry{},
		log:     log,
	}
}

// Register records that s is responsible for stopping instance.
func (r *Registry) Register(instance *models.ServiceInstance, s Stopper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[instance] = &entry{stopper: s}
}

// registerStarting registers an instance whose controller has not finished
// starting it. Drains skip it and mark it cancelled instead.
func (r *Registry) registerStarting(instance *models.ServiceInstance, s Stopper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[instance] = &entry{stopper: s, starting: true}
}

// cancelled reports whether a drain reached instance while it was starting.
func (r *Registry) cancelled(instance *models.ServiceInstance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[instance]
	return ok && e.cancelled
}

// settle marks a starting instance as started, making it visible to drains.
// It returns false when a drain already cancelled the instance.
func (r *Registry) settle(instance *models.ServiceInstance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[instance]
	if !ok {
		return true
	}
	if e.cancelled {
		return false
	}
	e.starting = false
	return true
}

// Deregister forgets instance. Unknown instances are ignored.
func (r *Registry) Deregister(instance *models.ServiceInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, instance)
}

// Registered reports whether instance is still waiting to be stopped.
func (r *Registry) Registered(instance *models.ServiceInstance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[instance]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop stops one registered instance. Stopping an unknown instance is a
// no-op, and an instance that is still starting is cancelled instead. A
// failed instance stays registered.
func (r *Registry) Stop(ctx context.Context, instance *models.ServiceInstance) error {
	r.mu.Lock()
	e, ok := r.entries[instance]
	if ok && e.starting {
		e.cancelled = true
	}
	r.mu.Unlock()
	if !ok || e.starting {
		return nil
	}

	if err := e.stopper.Stop(ctx, instance); err != nil {
		return err
	}
	r.Deregister(instance)
	return nil
}

// StopAll drains the registry, stopping every started instance
// concurrently. Instances still starting are cancelled; their controller
// removes them. Instances that fail to stop are logged, stay registered for
// a later drain, and their errors are returned joined. Concurrent drains
// never stop the same instance twice.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	taken := map[*models.ServiceInstance]Stopper{}
	for instance, e := range r.entries {
		if e.starting {
			e.cancelled = true
			continue
		}
		taken[instance] = e.stopper
		delete(r.entries, instance)
	}
	r.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for instance, s := range taken {
		g.Go(func() error {
			if err := s.Stop(ctx, instance); err != nil {
				r.log.Error().Err(err).Str("instance", instance.Name).Msg("failed to stop service instance")
				r.Register(instance, s)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
