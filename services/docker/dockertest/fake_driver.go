// Package dockertest provides a function-field fake of interfaces.ContainerDriver.
//
// The fake keeps a small model of container state so that stopping or
// removing a container twice answers the way the Docker Engine does
// (not modified / not found). Set the Fn fields to override any call.
//
// Usage:
//
//	fake := dockertest.NewFakeDriver()
//	fake.SetupLogAttempts("boot failed: transient", "ready to accept connections")
//	ctrl, _ := lifecycle.NewController(spec, fake)
//	fake.AssertCalled(t, "Create")
package dockertest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/useintest/interfaces"
	"github.com/stretchr/testify/assert"
)

type containerState int

const (
	stateCreated containerState = iota
	stateRunning
	stateStopped
	stateRemoved
)

// Call is one recorded driver invocation.
type Call struct {
	Method      string
	ContainerID string
}

func (c Call) String() string {
	if c.ContainerID == "" {
		return c.Method
	}
	return c.Method + ":" + c.ContainerID
}

type FakeDriver struct {
	PullIfAbsentFn func(ctx context.Context, image string) error
	CreateFn       func(ctx context.Context, req interfaces.CreateRequest) (string, error)
	StartFn        func(ctx context.Context, containerID string) error
	LogsFn         func(ctx context.Context, containerID string) (io.ReadCloser, error)
	StopFn         func(ctx context.Context, containerID string) error
	RemoveFn       func(ctx context.Context, containerID string) error

	mu         sync.Mutex
	calls      []Call
	requests   []interfaces.CreateRequest
	containers map[string]containerState
	order      []string
	logs       []string
}

// NewFakeDriver returns a fake whose containers start fine and print nothing.
func NewFakeDriver() *FakeDriver {
	f := &FakeDriver{containers: map[string]containerState{}}
	f.PullIfAbsentFn = func(context.Context, string) error { return nil }
	f.CreateFn = f.defaultCreate
	f.StartFn = f.defaultStart
	f.LogsFn = f.defaultLogs
	f.StopFn = f.defaultStop
	f.RemoveFn = f.defaultRemove
	return f
}

func (f *FakeDriver) record(method, containerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, ContainerID: containerID})
}

func (f *FakeDriver) PullIfAbsent(ctx context.Context, image string) error {
	f.record("PullIfAbsent", "")
	return f.PullIfAbsentFn(ctx, image)
}

func (f *FakeDriver) Create(ctx context.Context, req interfaces.CreateRequest) (string, error) {
	id, err := f.CreateFn(ctx, req)
	f.record("Create", id)
	return id, err
}

func (f *FakeDriver) Start(ctx context.Context, containerID string) error {
	f.record("Start", containerID)
	return f.StartFn(ctx, containerID)
}

func (f *FakeDriver) Logs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	f.record("Logs", containerID)
	return f.LogsFn(ctx, containerID)
}

func (f *FakeDriver) Stop(ctx context.Context, containerID string) error {
	f.record("Stop", containerID)
	return f.StopFn(ctx, containerID)
}

func (f *FakeDriver) Remove(ctx context.Context, containerID string) error {
	f.record("Remove", containerID)
	return f.RemoveFn(ctx, containerID)
}

func (f *FakeDriver) defaultCreate(_ context.Context, req interfaces.CreateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("container-%d", len(f.order)+1)
	f.containers[id] = stateCreated
	f.order = append(f.order, id)
	f.requests = append(f.requests, req)
	return id, nil
}

func (f *FakeDriver) defaultStart(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.containers[containerID]
	if !ok || st == stateRemoved {
		return fmt.Errorf("no such container %q: %w", containerID, errdefs.ErrNotFound)
	}
	f.containers[containerID] = stateRunning
	return nil
}

// defaultLogs serves the scripted output for the n-th created container,
// or nothing when no script covers it.
func (f *FakeDriver) defaultLogs(_ context.Context, containerID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.order {
		if id == containerID && i < len(f.logs) {
			return io.NopCloser(strings.NewReader(f.logs[i])), nil
		}
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *FakeDriver) defaultStop(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch st, ok := f.containers[containerID]; {
	case !ok || st == stateRemoved:
		return fmt.Errorf("no such container %q: %w", containerID, errdefs.ErrNotFound)
	case st == stateStopped || st == stateCreated:
		return fmt.Errorf("container %q is not running: %w", containerID, errdefs.ErrNotModified)
	}
	f.containers[containerID] = stateStopped
	return nil
}

func (f *FakeDriver) defaultRemove(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.containers[containerID]; !ok || st == stateRemoved {
		return fmt.Errorf("no such container %q: %w", containerID, errdefs.ErrNotFound)
	}
	f.containers[containerID] = stateRemoved
	return nil
}

// SetupLogAttempts scripts the log output of successive containers: the
// first created container prints attempts[0], the second attempts[1], and
// so on. Containers beyond the script print nothing.
func (f *FakeDriver) SetupLogAttempts(attempts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = attempts
}

// SetupBlockingLogs makes every log stream stay open without output until
// it is closed.
func (f *FakeDriver) SetupBlockingLogs() {
	f.LogsFn = func(context.Context, string) (io.ReadCloser, error) {
		r, _ := io.Pipe()
		return r, nil
	}
}

// Calls returns every recorded call in order.
func (f *FakeDriver) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallStrings returns the recorded calls as "Method:containerID" strings.
func (f *FakeDriver) CallStrings(methods ...string) []string {
	var out []string
	for _, c := range f.Calls() {
		if len(methods) > 0 && !slices.Contains(methods, c.Method) {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

// CallCount returns how often method was called.
func (f *FakeDriver) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Requests returns the create requests seen by the default Create.
func (f *FakeDriver) Requests() []interfaces.CreateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.CreateRequest(nil), f.requests...)
}

// Removed reports whether the container has been removed.
func (f *FakeDriver) Removed(containerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[containerID] == stateRemoved
}

// Live returns the containers that were created and not yet removed.
func (f *FakeDriver) Live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range f.order {
		if f.containers[id] != stateRemoved {
			out = append(out, id)
		}
	}
	return out
}

// TestingT is the part of *testing.T the assertions need.
type TestingT interface {
	assert.TestingT
	Helper()
}

func (f *FakeDriver) AssertCalled(t TestingT, method string) bool {
	t.Helper()
	return assert.Positive(t, f.CallCount(method), "expected %s to be called, calls: %v", method, f.CallStrings())
}

func (f *FakeDriver) AssertNotCalled(t TestingT, method string) bool {
	t.Helper()
	return assert.Zero(t, f.CallCount(method), "expected %s not to be called", method)
}

var _ interfaces.ContainerDriver = (*FakeDriver)(nil)
