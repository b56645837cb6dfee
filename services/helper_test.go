package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortRepository(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mongo", "mongo"},
		{"library/mongo", "mongo"},
		{"docker.io/mercury/bissell", "bissell"},
		{"  gogs/gogs ", "gogs"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortRepository(tt.in))
		})
	}
}

func TestInstanceName(t *testing.T) {
	name := InstanceName("mercury/Bissell", "0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.Equal(t, "bissell-0f8fad5bd9cb", name)

	assert.Equal(t, "mongo-abc", InstanceName("mongo", "abc"))
	assert.NotEqual(t, InstanceName("mongo", "a-1"), InstanceName("mongo", "a-2"))
}

func TestInstanceLabels(t *testing.T) {
	labels := InstanceLabels("sess", "inst", "mongo:3")
	assert.Equal(t, map[string]string{
		LabelManaged:  "true",
		LabelSession:  "sess",
		LabelInstance: "inst",
		LabelService:  "mongo:3",
	}, labels)
}

func TestEnvList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=two", "C="}, EnvList(map[string]string{"C": "", "B": "two", "A": "1"}))
	assert.Empty(t, EnvList(nil))
}
