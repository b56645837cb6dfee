// Package lifecycle starts, retries and stops containerized services used
// by tests.
//
// A Controller owns one ServiceSpec. Each Start brings up a fresh instance:
//
//	INIT -> STARTING -> AWAITING_READY -> READY -> STOPPING -> STOPPED
//
// A transient failure while awaiting readiness discards the container and
// goes back to STARTING with new ports. A persistent failure, an exhausted
// attempt budget or any other error ends in FAILED with the container
// removed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/useintest/interfaces"
	"github.com/ezenkico/useintest/logger"
	"github.com/ezenkico/useintest/models"
	"github.com/ezenkico/useintest/services"
	"github.com/ezenkico/useintest/services/ports"
	"github.com/ezenkico/useintest/services/readiness"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PortMapper assigns host ports to container ports.
type PortMapper interface {
	Map(containerPorts []int) (models.PortMapping, error)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry collects the instances of controllers built without
// WithRegistry and is drained by the exit handler on SIGINT or SIGTERM. It
// is created on first use so it logs through the logger configured by then.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(logger.Component("registry"))
		InstallExitHandler(defaultRegistry)
	})
	return defaultRegistry
}

type Controller struct {
	spec     models.ServiceSpec
	driver   interfaces.ContainerDriver
	ports    PortMapper
	registry *Registry
	monitor  interfaces.Monitor
	log      zerolog.Logger
	session  string
}

type Option func(*Controller)

func WithRegistry(r *Registry) Option {
	return func(c *Controller) { c.registry = r }
}

func WithPortMapper(m PortMapper) Option {
	return func(c *Controller) { c.ports = m }
}

// WithMonitor replaces the readiness monitor derived from the ServiceSpec.
func WithMonitor(m interfaces.Monitor) Option {
	return func(c *Controller) { c.monitor = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithSession overrides the session label put on created containers.
func WithSession(session string) Option {
	return func(c *Controller) { c.session = session }
}

// NewController returns a controller for spec. The ServiceSpec is validated once
// here and never changes afterwards.
func NewController(spec models.ServiceSpec, driver interfaces.ContainerDriver, opts ...Option) (*Controller, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, errors.New("controller needs a container driver")
	}

	c := &Controller{
		spec:     spec,
		driver:   driver,
		ports:   ports.NewAllocator(),
		log:     logger.Component("lifecycle"),
		session: services.Session,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.monitor == nil {
		c.monitor = readiness.NewMonitor(spec, driver, c.log)
	}
	return c, nil
}

func (c *Controller) Spec() models.ServiceSpec {
	return c.spec
}

// Start brings up a new instance and blocks until it is ready or has failed.
// Transient failures are retried with a fresh container up to the ServiceSpec's
// attempt limit. On error no container of this call is left behind.
func (c *Controller) Start(ctx context.Context) (*models.ServiceInstance, error) {
	began := time.Now()
	image := c.spec.Image()

	instance := models.NewServiceInstance(uuid.NewString(), image)
	instance.Name = services.InstanceName(c.spec.Repository, instance.ID)
	instance.State = models.StateStarting
	for _, u := range c.spec.Users {
		instance.AddUser(u)
		if u.Username == c.spec.RootUser {
			instance.SetRootUser(&u)
		}
	}
	if c.spec.StopOnExit {
		c.registry.registerStarting(instance, c)
	}

	log := c.log.With().Str("service", image).Str("instance", instance.Name).Logger()

	if err := c.driver.PullIfAbsent(ctx, image); err != nil {
		return nil, c.fail(ctx, instance, began, err)
	}

	var (
		attempts int
		lastErr  error
	)
	for {
		if c.spec.MaxAttempts != models.Unbounded && attempts >= c.spec.MaxAttempts {
			log.Error().Int("attempts", attempts).Msg("giving up on service")
			return nil, c.fail(ctx, instance, began, &models.ServiceStartError{
				Service:  image,
				Attempts: attempts,
				Err:      lastErr,
			})
		}
		if attempts > 0 {
			if err := c.discard(ctx, instance); err != nil {
				return nil, c.fail(ctx, instance, began, err)
			}
			instance.State = models.StateStarting
		}
		attempts++

		log.Debug().Int("attempt", attempts).Msg("starting service container")
		err := c.attempt(ctx, instance)
		switch {
		case err == nil && !c.registry.settle(instance):
			recordAttempt(image, outcomeError)
			return nil, c.fail(ctx, instance, began, ErrDrained)

		case err == nil:
			instance.State = models.StateReady
			recordAttempt(image, outcomeReady)
			recordStart(image, resultSuccess, time.Since(began))
			log.Info().
				Ints("ports", instance.Ports.HostPorts()).
				Int("attempts", attempts).
				Msg("service ready")
			return instance, nil

		case models.IsPersistent(err):
			recordAttempt(image, outcomePersistent)
			log.Error().Err(err).Msg("persistent start failure")
			return nil, c.fail(ctx, instance, began, &models.ServiceStartError{
				Service:  image,
				Attempts: attempts,
				Err:      err,
			})

		case models.IsTransient(err):
			recordAttempt(image, outcomeTransient)
			log.Warn().Err(err).Int("attempt", attempts).Msg("transient start failure, retrying")
			lastErr = err

		default:
			recordAttempt(image, outcomeError)
			return nil, c.fail(ctx, instance, began, err)
		}
	}
}

// attempt runs one container for instance through to readiness.
func (c *Controller) attempt(ctx context.Context, instance *models.ServiceInstance) error {
	if c.registry.cancelled(instance) {
		return ErrDrained
	}

	mapping, err := c.ports.Map(c.spec.Ports)
	if err != nil {
		return fmt.Errorf("allocate ports for %q: %w", instance.Name, err)
	}
	instance.Ports = mapping

	id, err := c.driver.Create(ctx, interfaces.CreateRequest{
		Image:   c.spec.Image(),
		Name:    instance.Name,
		Ports:   mapping,
		Runtime: c.spec.Runtime,
		Labels:  services.InstanceLabels(c.session, instance.ID, c.spec.Image()),
	})
	if err != nil {
		return err
	}
	instance.ContainerID = id
	c.log.Debug().Str("instance", instance.Name).Str("id", id).Msg("container created")

	// A drain during Create leaves this container to us
	if c.registry.cancelled(instance) {
		return ErrDrained
	}

	if err := c.driver.Start(ctx, id); err != nil {
		return err
	}
	instance.State = models.StateAwaitingReady

	waitCtx := ctx
	if c.spec.StartTimeout != models.Unbounded {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.spec.StartTimeout)
		defer cancel()
	}

	err = c.monitor.WaitUntilReady(waitCtx, instance)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return &models.TransientServiceStartError{
			Reason: fmt.Sprintf("%q was not ready within %s", instance.Name, c.spec.StartTimeout),
		}
	}
	return err
}

// fail discards whatever container instance still owns and marks it failed.
// It returns err for the caller to pass on.
func (c *Controller) fail(ctx context.Context, instance *models.ServiceInstance, began time.Time, err error) error {
	if derr := c.discard(ctx, instance); derr != nil {
		c.log.Error().Err(derr).Str("instance", instance.Name).Msg("failed to remove container of failed service")
	}
	instance.State = models.StateFailed
	c.registry.Deregister(instance)
	recordStart(c.spec.Image(), resultFailure, time.Since(began))
	return err
}

// Stop stops and removes the instance's container. Stopping an instance
// that never got a container, or that is already stopped, does nothing.
func (c *Controller) Stop(ctx context.Context, instance *models.ServiceInstance) error {
	if instance == nil {
		return nil
	}
	if !instance.Running() {
		c.registry.Deregister(instance)
		return nil
	}

	instance.State = models.StateStopping
	if err := c.discard(ctx, instance); err != nil {
		return err
	}
	instance.State = models.StateStopped
	c.registry.Deregister(instance)
	c.log.Info().Str("instance", instance.Name).Msg("service stopped")
	return nil
}

// discard stops and removes the current container of instance, tolerating
// a container that is already stopped or gone. Cleanup outlives a
// cancelled ctx.
func (c *Controller) discard(ctx context.Context, instance *models.ServiceInstance) error {
	if !instance.Running() {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	id := instance.ContainerID

	if err := c.driver.Stop(ctx, id); err != nil && !gone(err) {
		return err
	}
	if err := c.driver.Remove(ctx, id); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	instance.ContainerID = ""
	return nil
}

func gone(err error) bool {
	return errdefs.IsNotFound(err) || errdefs.IsNotModified(err)
}
