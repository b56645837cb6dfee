// Package readiness decides when a freshly started service is usable.
//
// Evidence is either the container's log output, classified line by line by
// up to three detectors, or an HTTP endpoint polled until it answers.
//
// When several detectors match the same line the outcome is resolved as
// persistent failure first, then transient failure, then ready. An error
// signal is never hidden behind a readiness message printed on the same line.
package readiness

import (
	"regexp"
	"strings"

	"github.com/ezenkico/useintest/interfaces"
	"github.com/ezenkico/useintest/models"
	"github.com/rs/zerolog"
)

type Outcome int

const (
	NotReady Outcome = iota
	Ready
	TransientFailure
	PersistentFailure
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TransientFailure:
		return "transient_failure"
	case PersistentFailure:
		return "persistent_failure"
	default:
		return "not_ready"
	}
}

// Detectors groups the three optional log detectors of a service. A nil
// detector never matches.
type Detectors struct {
	Ready      models.Detector
	Persistent models.Detector
	Transient  models.Detector
}

// DetectorsFor returns the detectors declared on spec.
func DetectorsFor(spec models.ServiceSpec) Detectors {
	return Detectors{
		Ready:      spec.ReadyDetector,
		Persistent: spec.PersistentErrorDetector,
		Transient:  spec.TransientErrorDetector,
	}
}

// Classify evaluates every detector against line and resolves ties as
// persistent > transient > ready.
func (d Detectors) Classify(line string, instance *models.ServiceInstance) Outcome {
	persistent := matches(d.Persistent, line, instance)
	transient := matches(d.Transient, line, instance)
	ready := matches(d.Ready, line, instance)

	switch {
	case persistent:
		return PersistentFailure
	case transient:
		return TransientFailure
	case ready:
		return Ready
	default:
		return NotReady
	}
}

func matches(d models.Detector, line string, instance *models.ServiceInstance) bool {
	return d != nil && d(line, instance)
}

// LineDetector adapts a detector that only needs the log line.
func LineDetector(f func(line string) bool) models.Detector {
	if f == nil {
		return nil
	}
	return func(line string, _ *models.ServiceInstance) bool { return f(line) }
}

// Contains matches lines containing any of the given substrings. It returns
// nil, a detector that never matches, when no substring is given.
func Contains(substrings ...string) models.Detector {
	if len(substrings) == 0 {
		return nil
	}
	return LineDetector(func(line string) bool {
		for _, s := range substrings {
			if strings.Contains(line, s) {
				return true
			}
		}
		return false
	})
}

// Matches matches lines against any of the given regular expressions.
func Matches(patterns ...*regexp.Regexp) models.Detector {
	if len(patterns) == 0 {
		return nil
	}
	return LineDetector(func(line string) bool {
		for _, re := range patterns {
			if re.MatchString(line) {
				return true
			}
		}
		return false
	})
}

// NonEmpty matches any line with visible content.
func NonEmpty() models.Detector {
	return LineDetector(func(line string) bool { return strings.TrimSpace(line) != "" })
}

// NewMonitor picks the monitor for spec: the HTTP probe when one is declared,
// log classification otherwise.
func NewMonitor(spec models.ServiceSpec, driver interfaces.ContainerDriver, log zerolog.Logger) interfaces.Monitor {
	if spec.Probe != nil {
		return NewHTTPMonitor(*spec.Probe, log)
	}
	return NewLogMonitor(driver, DetectorsFor(spec), log)
}
