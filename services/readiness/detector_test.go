package readiness

import (
	"regexp"
	"strings"
	"testing"

	"github.com/ezenkico/useintest/models"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPrecedence(t *testing.T) {
	d := Detectors{
		Ready:      Contains("ready"),
		Persistent: Contains("disk full"),
		Transient:  Contains("retry"),
	}

	tests := []struct {
		line string
		want Outcome
	}{
		{"booting", NotReady},
		{"ready", Ready},
		{"please retry", TransientFailure},
		{"disk full", PersistentFailure},
		{"ready but retry", TransientFailure},
		{"ready, retry, disk full", PersistentFailure},
		{"retry after disk full", PersistentFailure},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Classify(tt.line, nil))
		})
	}
}

func TestClassifyAbsentDetectors(t *testing.T) {
	var d Detectors
	assert.Equal(t, NotReady, d.Classify("anything", nil))

	d = Detectors{Ready: Contains("up")}
	assert.Equal(t, Ready, d.Classify("service up", nil))
	assert.Equal(t, NotReady, d.Classify("down", nil))
}

func TestDetectorsSeeInstance(t *testing.T) {
	inst := models.NewServiceInstance("id", "svc")
	inst.Ports, _ = models.NewPortMapping(models.BindingSpec{ContainerPort: 80, HostPort: 43210})

	d := Detectors{Ready: func(line string, inst *models.ServiceInstance) bool {
		p, err := inst.Port()
		return err == nil && strings.Contains(line, "43210") && p == 43210
	}}
	assert.Equal(t, Ready, d.Classify("listening on 43210", inst))
}

func TestDetectorsFor(t *testing.T) {
	spec := models.ServiceSpec{
		ReadyDetector:           Contains("a"),
		PersistentErrorDetector: Contains("b"),
	}
	d := DetectorsFor(spec)
	assert.NotNil(t, d.Ready)
	assert.NotNil(t, d.Persistent)
	assert.Nil(t, d.Transient)
}

func TestDetectorHelpers(t *testing.T) {
	assert.Nil(t, Contains())
	assert.Nil(t, Matches())
	assert.Nil(t, LineDetector(nil))

	c := Contains("Node info in sync", "Synced node info")
	assert.True(t, c("agent: Synced node info", nil))
	assert.False(t, c("agent: starting", nil))

	m := Matches(regexp.MustCompile(`^Apache CouchDB has started on http://[^:]+:\d+`))
	assert.True(t, m("Apache CouchDB has started on http://127.0.0.1:5984/", nil))
	assert.False(t, m("Apache CouchDB is starting", nil))

	n := NonEmpty()
	assert.True(t, n(" x ", nil))
	assert.False(t, n("   ", nil))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "not_ready", NotReady.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "transient_failure", TransientFailure.String())
	assert.Equal(t, "persistent_failure", PersistentFailure.String())
}
