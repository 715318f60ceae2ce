package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSweep("discovery", time.Second, nil)
	m.ObserveSweep("discovery", time.Second, errors.New("boom"))
	m.TickDropped("favorites")
	m.NotificationSent("favorite", nil)
	m.ProviderFailed("search", &core.ProviderError{Op: "search", Err: core.ErrRateLimited})
	m.SetSeenEntries(3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.SweepsTotal.WithLabelValues("discovery", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SweepsTotal.WithLabelValues("discovery", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TicksDropped.WithLabelValues("favorites")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("favorite", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProviderErrors.WithLabelValues("search", "rate_limited")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.SeenEntries))
}
