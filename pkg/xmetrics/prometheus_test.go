package xmetrics_test

import (
	"testing"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xmetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := xmetrics.NewPrometheus(reg)

	m.MessageProcessed("Counter-1", time.Millisecond, true)
	m.MessageProcessed("Counter-1", time.Millisecond, false)
	m.MessageTimeout("Counter-1")
	m.ActorRestarted("Counter-1")
	m.MailboxDepth("Counter-1", 3)
	m.MailboxRejected("Counter-1")

	m.TaskExecuted(0, time.Microsecond, time.Millisecond, true)
	m.TaskStolen(1, 0)
	m.TaskRejected()
	m.ActiveWorkers(4)
	m.GlobalQueueDepth(2)

	m.ActorSpawned()
	m.ActorSpawned()
	m.ActorStopped()
	m.ActiveActors(1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["vela_actor_message_duration_seconds"])
	assert.True(t, names["vela_actor_messages_total"])
	assert.True(t, names["vela_executor_steals_total"])
	assert.True(t, names["vela_scheduler_active_actors"])

	assert.Equal(t, 2.0, counterValue(t, reg, "vela_scheduler_actors_spawned_total"))
	assert.Equal(t, 4.0, gaugeValue(t, reg, "vela_executor_active_workers"))

	m.Forget("Counter-1")
	mfs, err = reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "vela_actor_mailbox_depth" {
			assert.Empty(t, mf.GetMetric())
		}
	}
}

func TestNop(t *testing.T) {
	var a xmetrics.Actor = xmetrics.Nop
	a.MessageProcessed("x", time.Second, true)
	a.Forget("x")
	var e xmetrics.Executor = xmetrics.Nop
	e.TaskStolen(0, 1)
	var s xmetrics.Scheduler = xmetrics.Nop
	s.ActiveActors(1)
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
