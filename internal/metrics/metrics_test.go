package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestIncStartBeforeRegisterIsNoop(t *testing.T) {
	regOK.Store(false)
	IncStart("cfg", "app") // must not panic despite no registerer
}

func TestRegisterIsIdempotent(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestIncStartAfterRegisterUpdatesCounter(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	IncStart("cfg-1", "api")

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.True(t, gatherHasCounterValue(metricFamilies, "csrunner_application_starts_total", 1))
}

func gatherHasCounterValue(families []*dto.MetricFamily, name string, want float64) bool {
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.Metric {
			if m.GetCounter().GetValue() == want {
				return true
			}
		}
	}
	return false
}
