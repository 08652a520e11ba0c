package scheduler_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/metrics"
)

func TestRunTickObservesActionDurations(t *testing.T) {
	f := newFixture(t, config.DefaultSchedulerConfig())

	f.svc.RunTick(context.Background())

	// One histogram series per housekeeping action.
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.SchedulerActionDuration,
		"bearmemori_scheduler_action_duration_seconds"))
}
