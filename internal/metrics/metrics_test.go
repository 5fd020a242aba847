package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.KeyEvent(KeyQueued)
		m.CharacterPolled()
		m.PickerRequested()
		m.ImportResult(ImportImported)
		m.ImportCompleted(10, time.Millisecond)
		require.NoError(t, m.TrackQueue("characters", func() int { return 1 }))
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New("")

	m.KeyEvent(KeyQueued)
	m.KeyEvent(KeyQueued)
	m.KeyEvent(KeyDropped)
	m.CharacterPolled()
	m.PickerRequested()
	m.ImportResult(ImportCanceled)
	m.ImportCompleted(1024, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.KeyEvents.WithLabelValues(KeyQueued)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyEvents.WithLabelValues(KeyDropped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CharsPolled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PickerRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues(ImportCanceled)))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.ImportedBytes))
}

func TestTrackQueueAndHandler(t *testing.T) {
	m := New("test")
	depth := 3
	require.NoError(t, m.TrackQueue("paths", func() int { return depth }))
	// a second gauge with the same label is a duplicate registration
	assert.Error(t, m.TrackQueue("paths", func() int { return 0 }))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.True(t, strings.Contains(body, `test_queue_depth{queue="paths"} 3`), body)
}
