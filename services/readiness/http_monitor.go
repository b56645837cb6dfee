package readiness

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/ezenkico/useintest/models"
	"github.com/rs/zerolog"
)

const defaultProbeInterval = 2 * time.Second

// HTTPMonitor polls an endpoint of the instance until it answers with a
// ready status. Connection errors mean the service is not up yet.
type HTTPMonitor struct {
	probe  models.HTTPProbe
	client *http.Client
	log    zerolog.Logger
}

func NewHTTPMonitor(probe models.HTTPProbe, log zerolog.Logger) *HTTPMonitor {
	return &HTTPMonitor{
		probe: probe,
		client: &http.Client{
			Timeout: 10 * time.Second,
			// The status of the endpoint itself is what counts
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log,
	}
}

// WithClient replaces the HTTP client used for probing.
func (m *HTTPMonitor) WithClient(c *http.Client) *HTTPMonitor {
	m.client = c
	return m
}

// URL returns the probed address for instance.
func (m *HTTPMonitor) URL(instance *models.ServiceInstance) (string, error) {
	var hostPort int
	if m.probe.Port == 0 {
		p, err := instance.Port()
		if err != nil {
			return "", err
		}
		hostPort = p
	} else {
		p, ok := instance.HostPortFor(m.probe.Port)
		if !ok {
			return "", fmt.Errorf("container port %d of %q is not published", m.probe.Port, instance.Name)
		}
		hostPort = p
	}

	path := m.probe.Path
	if path == "" {
		path = "/"
	}
	return "http://" + net.JoinHostPort(instance.Host, strconv.Itoa(hostPort)) + path, nil
}

func (m *HTTPMonitor) ready(status int) bool {
	if len(m.probe.ReadyStatus) == 0 {
		return status >= 200 && status < 300
	}
	return slices.Contains(m.probe.ReadyStatus, status)
}

// WaitUntilReady probes immediately and then on every interval until the
// endpoint answers with a ready status or ctx is done.
func (m *HTTPMonitor) WaitUntilReady(ctx context.Context, instance *models.ServiceInstance) error {
	url, err := m.URL(instance)
	if err != nil {
		return err
	}
	method := m.probe.Method
	if method == "" {
		method = http.MethodHead
	}
	interval := m.probe.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return fmt.Errorf("build probe request %q: %w", url, err)
		}

		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if m.ready(resp.StatusCode) {
				return nil
			}
			m.log.Debug().Str("instance", instance.Name).Str("url", url).Int("status", resp.StatusCode).Msg("probe not ready")
		} else if ctx.Err() == nil {
			m.log.Debug().Str("instance", instance.Name).Str("url", url).Err(err).Msg("probe failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
