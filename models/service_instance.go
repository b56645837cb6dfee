package models

import (
	"encoding/json"
	"slices"
)

// DefaultHost is where published ports are reachable. The container runtime
// is assumed to be local.
const DefaultHost = "localhost"

type State string

const (
	StateInit          State = "init"
	StateStarting      State = "starting"
	StateAwaitingReady State = "awaiting_ready"
	StateReady         State = "ready"
	StateFailed        State = "failed"
	StateStopping      State = "stopping"
	StateStopped       State = "stopped"
)

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateStopped
}

type User struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// ServiceInstance is one running, test-scoped container. It is mutated only
// by the controller that started it.
type ServiceInstance struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Service     string      `json:"service"`
	ContainerID string      `json:"container_id,omitempty"`
	Host        string      `json:"host"`
	Ports       PortMapping `json:"ports"`
	State       State       `json:"state"`

	users    []User
	rootUser *User
}

// NewServiceInstance returns an instance in the init state.
func NewServiceInstance(id, service string) *ServiceInstance {
	return &ServiceInstance{
		ID:      id,
		Service: service,
		Host:    DefaultHost,
		State:   StateInit,
	}
}

// Port returns the only host port of the instance.
func (s *ServiceInstance) Port() (int, error) {
	if s.Ports.Len() != 1 {
		return 0, &UnexpectedPortCountError{Count: s.Ports.Len()}
	}
	return s.Ports.HostPorts()[0], nil
}

// HostPortFor returns the host port the given container port maps to.
func (s *ServiceInstance) HostPortFor(containerPort int) (int, bool) {
	return s.Ports.HostPort(containerPort)
}

// Running reports whether the instance currently owns a container.
func (s *ServiceInstance) Running() bool {
	return s.ContainerID != ""
}

// AddUser adds u to the instance's users, replacing any user with the same name.
func (s *ServiceInstance) AddUser(u User) {
	i := slices.IndexFunc(s.users, func(x User) bool { return x.Username == u.Username })
	if i >= 0 {
		s.users[i] = u
		return
	}
	s.users = append(s.users, u)
}

// Users returns a copy of the instance's users.
func (s *ServiceInstance) Users() []User {
	return slices.Clone(s.users)
}

// SetRootUser designates the privileged user, adding it to the users first
// when needed. A nil user clears the designation.
func (s *ServiceInstance) SetRootUser(u *User) {
	if u == nil {
		s.rootUser = nil
		return
	}
	s.AddUser(*u)
	root := *u
	s.rootUser = &root
}

// RootUser returns the privileged user, if any.
func (s *ServiceInstance) RootUser() (User, bool) {
	if s.rootUser == nil {
		return User{}, false
	}
	return *s.rootUser, true
}

func (s *ServiceInstance) MarshalJSON() ([]byte, error) {
	type plain ServiceInstance
	out := struct {
		*plain
		Users    []User  `json:"users,omitempty"`
		RootUser *string `json:"root_user,omitempty"`
	}{plain: (*plain)(s), Users: s.users}
	if s.rootUser != nil {
		out.RootUser = &s.rootUser.Username
	}
	return json.Marshal(out)
}
