package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Polls.WithLabelValues("ok").Inc()
	mfs, err := Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["tracker_polls_total"])
	assert.True(t, names["go_goroutines"])
	assert.GreaterOrEqual(t, testutil.ToFloat64(Polls.WithLabelValues("ok")), 1.0)
}
