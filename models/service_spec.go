package models

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Unbounded disables the start timeout or the attempt limit of a ServiceSpec.
const Unbounded = 0

// Detector classifies one line of container output. It is handed the
// instance being started so it can look at the assigned ports.
type Detector func(line string, instance *ServiceInstance) bool

// HTTPProbe polls an endpoint of the service instead of reading its logs.
type HTTPProbe struct {
	// Container port to probe. Zero means the instance's only port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	Method string `json:"method,omitempty" yaml:"method,omitempty"` // HEAD when empty
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`     // "/" when empty

	// Status codes that count as ready. Any 2xx when empty.
	ReadyStatus []int `json:"ready_status,omitempty" yaml:"ready_status,omitempty"`

	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

type RuntimeOptions struct {
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Overrides the image entrypoint when non-empty
	Entrypoint []string `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`

	// Overrides the image command when non-empty
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	Volumes []VolumeMount `json:"volumes,omitempty" yaml:"volumes,omitempty"`
}

// ServiceSpec describes how to bring up one type of service. It is handed to
// a controller at construction and never mutated afterwards.
type ServiceSpec struct {
	// Required
	Repository string `json:"repository"`
	Tag        string `json:"tag"`

	// Container ports to publish, in declaration order
	Ports []int `json:"ports,omitempty"`

	ReadyDetector           Detector `json:"-"`
	PersistentErrorDetector Detector `json:"-"`
	TransientErrorDetector  Detector `json:"-"`

	// Replaces log based detection when set
	Probe *HTTPProbe `json:"probe,omitempty"`

	StartTimeout time.Duration `json:"start_timeout,omitempty"` // Unbounded when zero
	MaxAttempts  int           `json:"max_attempts,omitempty"`  // Unbounded when zero
	StopOnExit   bool          `json:"stop_on_exit"`

	Runtime RuntimeOptions `json:"runtime"`

	// Credentials provisioned by the image, copied onto every instance
	Users    []User `json:"users,omitempty"`
	RootUser string `json:"root_user,omitempty"`
}

// Image returns the repository:tag image reference.
func (s ServiceSpec) Image() string {
	tag := s.Tag
	if tag == "" {
		tag = "latest"
	}
	return s.Repository + ":" + tag
}

// Validate checks for configuration errors that no amount of
// retrying would fix.
func (s ServiceSpec) Validate() error {
	if strings.TrimSpace(s.Repository) == "" {
		return errors.New("service spec repository is empty")
	}
	if s.StartTimeout < 0 {
		return fmt.Errorf("service %q start_timeout %s is negative", s.Image(), s.StartTimeout)
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("service %q max_attempts %d is negative", s.Image(), s.MaxAttempts)
	}
	if s.ReadyDetector != nil && s.Probe != nil {
		return fmt.Errorf("service %q has both a ready detector and an http probe", s.Image())
	}
	if s.Probe != nil && (s.PersistentErrorDetector != nil || s.TransientErrorDetector != nil) {
		return fmt.Errorf("service %q log error detectors cannot be combined with an http probe", s.Image())
	}

	seenPort := map[int]struct{}{}
	for _, p := range s.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("service %q port %d is out of range", s.Image(), p)
		}
		if _, ok := seenPort[p]; ok {
			return fmt.Errorf("service %q declares port %d twice", s.Image(), p)
		}
		seenPort[p] = struct{}{}
	}
	if s.Probe != nil {
		if s.Probe.Port == 0 && len(s.Ports) != 1 {
			return fmt.Errorf("service %q http probe needs a port: %w", s.Image(), &UnexpectedPortCountError{Count: len(s.Ports)})
		}
		if _, ok := seenPort[s.Probe.Port]; s.Probe.Port != 0 && !ok {
			return fmt.Errorf("service %q http probe port %d is not declared", s.Image(), s.Probe.Port)
		}
	}

	// Ensure no duplicate mount paths
	seenMountPath := map[string]struct{}{}
	for _, m := range s.Runtime.Volumes {
		mountPath := strings.TrimSpace(m.MountPath)
		if mountPath == "" {
			return fmt.Errorf("service %q has a volume with empty mount_path", s.Image())
		}
		if !path.IsAbs(mountPath) {
			return fmt.Errorf("service %q volume mount_path %q must be absolute", s.Image(), mountPath)
		}
		if _, ok := seenMountPath[mountPath]; ok {
			return fmt.Errorf("service %q has duplicate volume mount_path %q", s.Image(), mountPath)
		}
		seenMountPath[mountPath] = struct{}{}

		if strings.TrimSpace(m.Source) == "" {
			return fmt.Errorf("service %q volume %q has an empty source", s.Image(), mountPath)
		}
		switch m.Type {
		case "", MountTypeBind, MountTypeVolume:
		default:
			return fmt.Errorf("service %q volume %q has unknown type %q", s.Image(), mountPath, m.Type)
		}
	}

	if s.RootUser != "" {
		found := false
		for _, u := range s.Users {
			if u.Username == s.RootUser {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("service %q root_user %q is not one of its users", s.Image(), s.RootUser)
		}
	}

	return nil
}
