package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	LabelManaged  = "useintest.managed"
	LabelSession  = "useintest.session"
	LabelInstance = "useintest.instance"
	LabelService  = "useintest.service"
)

// Session identifies the current process. Containers are labelled with it so a
// later cleanup run can find whatever a crashed process left behind.
var Session = uuid.NewString()

// ShortRepository returns the last path element of an image repository,
// e.g. "mongo" for "docker.io/library/mongo".
func ShortRepository(repository string) string {
	repository = strings.TrimSpace(repository)
	if i := strings.LastIndex(repository, "/"); i >= 0 {
		repository = repository[i+1:]
	}
	return repository
}

// InstanceName returns a unique, docker-friendly container name for an
// instance of the given repository.
func InstanceName(repository, instanceID string) string {
	// Keep names docker-friendly and deterministic.
	safe := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.ReplaceAll(s, " ", "-")
		s = strings.ReplaceAll(s, ":", "-")
		return s
	}
	suffix := strings.ReplaceAll(instanceID, "-", "")
	if len(suffix) > 12 {
		suffix = suffix[:12]
	}
	return fmt.Sprintf("%s-%s", safe(ShortRepository(repository)), safe(suffix))
}

// InstanceLabels returns the labels every managed container carries.
func InstanceLabels(session, instanceID, image string) map[string]string {
	return map[string]string{
		LabelManaged:  "true",
		LabelSession:  session,
		LabelInstance: instanceID,
		LabelService:  image,
	}
}

// EnvList renders an environment map as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}
