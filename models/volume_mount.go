package models

type MountType string

const (
	MountTypeBind   MountType = "bind"   // host path
	MountTypeVolume MountType = "volume" // named docker volume
)

type VolumeMount struct {
	// bind | volume, bind when empty
	Type MountType `json:"type,omitempty" yaml:"type,omitempty"`

	// Host path (bind) or volume name (volume)
	Source string `json:"source" yaml:"source"`

	// Path inside the container where the source is mounted
	MountPath string `json:"mount_path" yaml:"mount_path"`

	ReadOnly bool `json:"read_only,omitempty" yaml:"read_only,omitempty"`
}
