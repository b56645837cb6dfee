package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"
)

// ExitTeardownTimeout bounds how long the exit handler waits for running
// instances to stop.
var ExitTeardownTimeout = 30 * time.Second

var (
	exitMu         sync.Mutex
	exitRegistries []*Registry
	installOnce    sync.Once
)

// InstallExitHandler drains r when the process receives SIGINT or SIGTERM
// and then exits. Every registry passed in is drained; the signal handler
// itself is installed once. DefaultRegistry installs itself.
// Pair it with a deferred StopAll for the normal exit path; a registry is
// drained at most once per instance however many paths reach it.
func InstallExitHandler(r *Registry) {
	exitMu.Lock()
	if !slices.Contains(exitRegistries, r) {
		exitRegistries = append(exitRegistries, r)
	}
	exitMu.Unlock()

	installOnce.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			signal.Stop(sigs)
			os.Exit(handleSignal(sig))
		}()
	})
}

// handleSignal drains every registry handed to InstallExitHandler and
// returns the conventional exit code for sig.
func handleSignal(sig os.Signal) int {
	exitMu.Lock()
	registries := slices.Clone(exitRegistries)
	exitMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), ExitTeardownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, r := range registries {
		r.log.Warn().Str("signal", sig.String()).Int("instances", r.Len()).Msg("stopping service instances before exit")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.StopAll(ctx)
		}()
	}
	wg.Wait()

	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
