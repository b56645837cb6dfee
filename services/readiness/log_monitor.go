package readiness

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ezenkico/useintest/interfaces"
	"github.com/ezenkico/useintest/models"
	"github.com/rs/zerolog"
)

const (
	defaultCapturedLines = 200
	maxLineBytes         = 1 << 20
)

// LogMonitor follows the container's output and classifies every line.
type LogMonitor struct {
	driver    interfaces.ContainerDriver
	detectors Detectors
	log       zerolog.Logger

	// Number of trailing lines kept for the failure dump
	CapturedLines int
}

func NewLogMonitor(driver interfaces.ContainerDriver, detectors Detectors, log zerolog.Logger) *LogMonitor {
	return &LogMonitor{
		driver:        driver,
		detectors:     detectors,
		log:           log,
		CapturedLines: defaultCapturedLines,
	}
}

type scanResult struct {
	line string
	err  error
	done bool
}

// WaitUntilReady reads the log stream until a detector matches, the stream
// closes or ctx is done. The stream is always closed before returning.
func (m *LogMonitor) WaitUntilReady(ctx context.Context, instance *models.ServiceInstance) error {
	rc, err := m.driver.Logs(ctx, instance.ContainerID)
	if err != nil {
		return fmt.Errorf("stream logs for %q: %w", instance.Name, err)
	}
	defer rc.Close()

	results := make(chan scanResult)
	stop := make(chan struct{})
	defer close(stop)

	go scanLines(rc, results, stop)

	captured := newTail(m.CapturedLines)
	for {
		select {
		case <-ctx.Done():
			// Closing unblocks the scanner goroutine
			_ = rc.Close()
			return ctx.Err()

		case r := <-results:
			if r.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("read logs for %q: %w", instance.Name, r.err)
			}
			if r.done {
				return &models.TransientServiceStartError{
					Reason: fmt.Sprintf("no error detected in logs but the output of %q has ended", instance.Name),
					Logs:   captured.String(),
				}
			}

			captured.Add(r.line)
			m.log.Trace().Str("instance", instance.Name).Msg(r.line)

			switch m.detectors.Classify(r.line, instance) {
			case PersistentFailure:
				return &models.PersistentServiceStartError{Reason: r.line}
			case TransientFailure:
				return &models.TransientServiceStartError{Reason: r.line}
			case Ready:
				return nil
			}
		}
	}
}

func scanLines(r io.Reader, results chan<- scanResult, stop <-chan struct{}) {
	send := func(res scanResult) bool {
		select {
		case results <- res:
			return true
		case <-stop:
			return false
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if !send(scanResult{line: scanner.Text()}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(scanResult{err: err})
		return
	}
	send(scanResult{done: true})
}

// tail keeps the last n lines written to it.
type tail struct {
	lines []string
	max   int
}

func newTail(n int) *tail {
	if n <= 0 {
		n = defaultCapturedLines
	}
	return &tail{max: n}
}

func (t *tail) Add(line string) {
	if len(t.lines) == t.max {
		t.lines = t.lines[1:]
	}
	t.lines = append(t.lines, line)
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}
