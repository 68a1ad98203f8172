package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()

	// Must not panic and must not require any setup.
	c.IncrementCounter("datasets_loaded_total", "source", "file")
	c.RecordHistogram("load_duration_seconds", 0.5)
	c.RecordGauge("datasets_registered", 3)

	timer := c.StartTimer("filter_duration_seconds")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()
	assert.Greater(t, elapsed, 0.0)
}

func TestParseLabelPairs(t *testing.T) {
	names, values := parseLabelPairs([]string{"source", "file", "status", "ok"})
	assert.Equal(t, []string{"source", "status"}, names)
	assert.Equal(t, []string{"file", "ok"}, values)

	names, values = parseLabelPairs([]string{"source", "file", "dangling"})
	assert.Equal(t, []string{"source"}, names)
	assert.Equal(t, []string{"file"}, values)

	names, values = parseLabelPairs(nil)
	assert.Empty(t, names)
	assert.Empty(t, values)
}
