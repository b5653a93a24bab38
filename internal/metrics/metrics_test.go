package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		ObserveAdmission("accepted", "", 3*time.Millisecond)
		IncTransition("confirm", "ok")
		IncOutbox("completed")
	})
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestAdmissionCounter(t *testing.T) {
	Register()
	labels := map[string]string{"result": "rejected", "reason": "SLOT_TAKEN"}

	before := counterValue(t, "courtbook_booking_admissions_total", labels)
	ObserveAdmission("rejected", "SLOT_TAKEN", time.Millisecond)
	assert.Equal(t, before+1, counterValue(t, "courtbook_booking_admissions_total", labels))
}
