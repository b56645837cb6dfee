package models

import (
	"errors"
	"fmt"
)

// ErrServiceStart matches every ServiceStartError with errors.Is.
var ErrServiceStart = errors.New("service failed to start")

// ServiceStartError is returned when a service could not be brought up,
// either because its start attempts ran out or because a persistent failure
// was detected. Err holds the last observed failure.
type ServiceStartError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *ServiceStartError) Error() string {
	var persistent *PersistentServiceStartError
	if errors.As(e.Err, &persistent) {
		return fmt.Sprintf("start service %q: failed on attempt %d: %s", e.Service, e.Attempts, e.Err)
	}

	msg := fmt.Sprintf("start service %q: gave up after %d attempt(s)", e.Service, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceStartError) Unwrap() error { return e.Err }

func (e *ServiceStartError) Is(target error) bool { return target == ErrServiceStart }

// TransientServiceStartError signals a start failure that is expected not to
// reproduce. It only ever drives a retry.
type TransientServiceStartError struct {
	Reason string
	Logs   string // captured output, may be empty
}

func (e *TransientServiceStartError) Error() string {
	if e.Logs == "" {
		return "transient start failure: " + e.Reason
	}
	return fmt.Sprintf("transient start failure: %s. Log dump:\n%s", e.Reason, e.Logs)
}

// PersistentServiceStartError signals a start failure that retrying will not fix.
type PersistentServiceStartError struct {
	Reason string
}

func (e *PersistentServiceStartError) Error() string {
	return "persistent start failure: " + e.Reason
}

// UnexpectedPortCountError is returned when the single port of an instance is
// requested but the instance exposes zero or several ports.
type UnexpectedPortCountError struct {
	Count int
}

func (e *UnexpectedPortCountError) Error() string {
	return fmt.Sprintf("%d ports are exposed (cannot use the single port accessor)", e.Count)
}

// IsTransient reports whether err carries a transient start failure.
func IsTransient(err error) bool {
	var t *TransientServiceStartError
	return errors.As(err, &t)
}

// IsPersistent reports whether err carries a persistent start failure.
func IsPersistent(err error) bool {
	var p *PersistentServiceStartError
	return errors.As(err, &p)
}
