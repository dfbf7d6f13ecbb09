package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommerceMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewCommerceMetrics(reg).(*commerceMetrics)

	m.IncOrderCreated("USD")
	m.IncOrderCreated("USD")
	m.IncVerification(OutcomeActivated)
	m.IncVerification(OutcomeBadSignature)
	m.ObserveGatewayCall("fetch_payment", time.Millisecond, errors.New("boom"))
	m.ObserveHTTPRequest("POST", "/payment/verify", 409, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues(OutcomeActivated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues(OutcomeBadSignature)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/payment/verify", "4xx")))
}

func TestSystemMetrics_Record(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewSystemMetrics(reg, logger.NewNop())
	m.Record()

	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "system_uptime_seconds")
}
