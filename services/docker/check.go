package docker

import (
	"fmt"
	"strings"

	"github.com/ezenkico/useintest/interfaces"
)

// CheckRequest rejects create requests the daemon would refuse or
// misinterpret.
func CheckRequest(req interfaces.CreateRequest) error {
	if strings.TrimSpace(req.Image) == "" {
		return fmt.Errorf("create request image is empty")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("create request for %q has no container name", req.Image)
	}
	for k := range req.Runtime.Environment {
		if strings.TrimSpace(k) == "" || strings.Contains(k, "=") {
			return fmt.Errorf("container %q has invalid environment variable name %q", req.Name, k)
		}
	}
	for _, b := range req.Ports.Bindings() {
		if b.ContainerPort < 1 || b.ContainerPort > 65535 {
			return fmt.Errorf("container %q port %d is out of range", req.Name, b.ContainerPort)
		}
		if b.HostPort < 1 || b.HostPort > 65535 {
			return fmt.Errorf("container %q host port %d is out of range", req.Name, b.HostPort)
		}
	}
	for _, vm := range req.Runtime.Volumes {
		if !strings.HasPrefix(vm.MountPath, "/") {
			return fmt.Errorf("container %q volume mount_path %q must be absolute", req.Name, vm.MountPath)
		}
	}
	return nil
}
