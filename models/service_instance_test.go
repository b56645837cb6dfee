package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceInstance(t *testing.T) {
	s := NewServiceInstance("id-1", "mongo:3")
	assert.Equal(t, "localhost", s.Host)
	assert.Equal(t, StateInit, s.State)
	assert.False(t, s.Running())
}

func TestServiceInstancePort(t *testing.T) {
	s := NewServiceInstance("id", "svc")

	_, err := s.Port()
	var countErr *UnexpectedPortCountError
	require.True(t, errors.As(err, &countErr))
	assert.Equal(t, 0, countErr.Count)

	s.Ports, err = NewPortMapping(BindingSpec{ContainerPort: 27017, HostPort: 41000})
	require.NoError(t, err)
	p, err := s.Port()
	require.NoError(t, err)
	assert.Equal(t, 41000, p)

	s.Ports, err = NewPortMapping(
		BindingSpec{ContainerPort: 1, HostPort: 2},
		BindingSpec{ContainerPort: 3, HostPort: 4},
	)
	require.NoError(t, err)
	_, err = s.Port()
	require.True(t, errors.As(err, &countErr))
	assert.Equal(t, 2, countErr.Count)

	h, ok := s.HostPortFor(3)
	assert.True(t, ok)
	assert.Equal(t, 4, h)
}

func TestServiceInstanceUsers(t *testing.T) {
	s := NewServiceInstance("id", "svc")
	_, ok := s.RootUser()
	assert.False(t, ok)

	s.AddUser(User{Username: "alice", Password: "a"})
	s.SetRootUser(&User{Username: "rods", Password: "irods"})

	root, ok := s.RootUser()
	require.True(t, ok)
	assert.Equal(t, "rods", root.Username)
	assert.ElementsMatch(t, []User{{"alice", "a"}, {"rods", "irods"}}, s.Users())

	// Same username replaces rather than duplicates
	s.AddUser(User{Username: "alice", Password: "b"})
	assert.Len(t, s.Users(), 2)

	s.SetRootUser(nil)
	_, ok = s.RootUser()
	assert.False(t, ok)
	assert.Len(t, s.Users(), 2)
}

func TestServiceInstanceMarshalJSON(t *testing.T) {
	s := NewServiceInstance("id", "gogs/gogs:latest")
	s.Name = "gogs-abc"
	s.State = StateReady
	s.Ports, _ = NewPortMapping(BindingSpec{ContainerPort: 3000, HostPort: 40000})
	s.SetRootUser(&User{Username: "root", Password: "pw"})

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":"id",
		"name":"gogs-abc",
		"service":"gogs/gogs:latest",
		"host":"localhost",
		"ports":[{"container_port":3000,"host_port":40000}],
		"state":"ready",
		"users":[{"username":"root","password":"pw"}],
		"root_user":"root"
	}`, string(b))
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateStopped.Terminal())
	for _, s := range []State{StateInit, StateStarting, StateAwaitingReady, StateReady, StateStopping} {
		assert.False(t, s.Terminal(), s)
	}
}
