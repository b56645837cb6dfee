package models

// BindingSpec is one container-port to host-port pair of a PortMapping.
type BindingSpec struct {
	ContainerPort int `json:"container_port"`
	HostPort      int `json:"host_port"`
}
