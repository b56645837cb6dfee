package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ezenkico/useintest/logger"
	"github.com/ezenkico/useintest/models"
	"github.com/ezenkico/useintest/services/docker"
	"github.com/ezenkico/useintest/services/flavors"
	"github.com/ezenkico/useintest/services/lifecycle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type startOptions struct {
	timeout     time.Duration
	maxAttempts int
	keep        bool
}

func newStartCmd(o *options) *cobra.Command {
	var so startOptions

	cmd := &cobra.Command{
		Use:   "start <flavor>[:tag]",
		Short: "Start a service and print where to reach it",
		Long: `Starts the named flavor in a new container, waits until it is ready and
prints the instance (name, host, ports and users) as JSON. The service is
stopped and removed on SIGINT or SIGTERM unless --keep is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := resolveSpec(o, args[0], so)
			if err != nil {
				return err
			}
			return runStart(cmd, o, spec)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&so.timeout, "timeout", 0, "give up on an attempt after this long (0 keeps the flavor's setting)")
	flags.IntVar(&so.maxAttempts, "max-attempts", 0, "start attempts before giving up (0 keeps the flavor's setting)")
	flags.BoolVar(&so.keep, "keep", false, "leave the service running and exit once it is ready")
	return cmd
}

// resolveSpec looks up the flavor and applies configuration and flag
// overrides, flags taking precedence.
func resolveSpec(o *options, name string, so startOptions) (models.ServiceSpec, error) {
	table, err := flavors.LoadFile(o.cfg.FlavorsFile)
	if err != nil {
		return models.ServiceSpec{}, err
	}
	spec, err := table.Spec(name)
	if err != nil {
		return models.ServiceSpec{}, err
	}

	if o.cfg.StartTimeout > 0 {
		spec.StartTimeout = o.cfg.StartTimeout
	}
	if o.cfg.MaxAttempts > 0 {
		spec.MaxAttempts = o.cfg.MaxAttempts
	}
	if so.timeout > 0 {
		spec.StartTimeout = so.timeout
	}
	if so.maxAttempts > 0 {
		spec.MaxAttempts = so.maxAttempts
	}
	spec.StopOnExit = !so.keep
	return spec, spec.Validate()
}

func runStart(cmd *cobra.Command, o *options, spec models.ServiceSpec) error {
	ctx := cmd.Context()
	log := logger.Component("start")

	driver, err := docker.NewDockerDriver(logger.Component("docker"))
	if err != nil {
		return err
	}
	defer driver.Close()
	if o.cfg.StopTimeout > 0 {
		driver.StopTimeout = o.cfg.StopTimeout
	}

	if o.cfg.MetricsAddr != "" {
		srv := serveMetrics(o.cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	registry := lifecycle.NewRegistry(logger.Component("registry"))
	defer func() {
		if err := registry.StopAll(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("teardown failed")
		}
	}()

	ctrl, err := lifecycle.NewController(spec, driver,
		lifecycle.WithRegistry(registry),
		lifecycle.WithLogger(logger.Component("lifecycle")),
	)
	if err != nil {
		return err
	}

	instance, err := ctrl.Start(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(instance); err != nil {
		return err
	}
	if !spec.StopOnExit {
		return nil
	}

	log.Info().Str("instance", instance.Name).Msg("running until interrupted")
	<-ctx.Done()
	return ctrl.Stop(context.WithoutCancel(ctx), instance)
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
