//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_NilReceiverIsSafe(t *testing.T) {
	var pm *PrometheusMetrics

	assert.NotPanics(t, func() {
		pm.AddToTotal("Article", 10)
		pm.EntitiesLoaded("Article", 4)
		pm.DocumentsIndexed("Article", 3)
		pm.ItemFailure("Article")
		pm.FatalFailure("Article")
		pm.ObserveRun("completed", time.Second)
	})
}

func TestPrometheusMetrics_CountsPerGroup(t *testing.T) {
	pm := NewPrometheusMetrics(prometheus.NewPedanticRegistry())

	pm.AddToTotal("Article", 10)
	pm.AddToTotal("Article", 5)
	pm.AddToTotal("Comment", 2)
	pm.EntitiesLoaded("Article", 4)
	pm.DocumentsIndexed("Article", 3)
	pm.ItemFailure("Article")
	pm.ItemFailure("Article")
	pm.FatalFailure("Comment")

	assert.Equal(t, float64(15), testutil.ToFloat64(pm.MassIndexingTotal.WithLabelValues("Article")))
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.MassIndexingTotal.WithLabelValues("Comment")))
	assert.Equal(t, float64(4), testutil.ToFloat64(pm.MassIndexingLoaded.WithLabelValues("Article")))
	assert.Equal(t, float64(3), testutil.ToFloat64(pm.MassIndexingIndexed.WithLabelValues("Article")))
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.MassIndexingFailures.WithLabelValues("Article", "item")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.MassIndexingFailures.WithLabelValues("Comment", "fatal")))
}

func TestPrometheusMetrics_ObserveRun(t *testing.T) {
	pm := NewPrometheusMetrics(prometheus.NewPedanticRegistry())

	pm.ObserveRun("completed", 2*time.Second)
	pm.ObserveRun("completed", 4*time.Second)
	pm.ObserveRun("failed", time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(pm.MassIndexingRuns.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.MassIndexingRuns.WithLabelValues("failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(pm.MassIndexingDuration))
}

func TestNewPrometheusMetrics_RegistersAllMeters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	NewPrometheusMetrics(reg)

	// a second registration on the same registry must trip the
	// duplicate check
	require.Panics(t, func() {
		NewPrometheusMetrics(reg)
	})
}

func TestNewPrometheusMetrics_NoopRegistry(t *testing.T) {
	reg := &NoopPrometheusRegistery{}

	assert.NotPanics(t, func() {
		NewPrometheusMetrics(reg)
		NewPrometheusMetrics(reg)
	})
}
