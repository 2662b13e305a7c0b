package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	collector := NewCollector("bpm", nil)
	collector.RecordCommand("executeJob", "ok", time.Millisecond)
	collector.RecordCommand("executeJob", "conflict", time.Millisecond)
	collector.RecordConflict()
	collector.RecordOperations(7)
	collector.RecordAcquired(2)
	collector.RecordJob("timer-start", "failed", time.Millisecond)

	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(`
# HELP bpm_commands_total Total number of executed commands
# TYPE bpm_commands_total counter
bpm_commands_total{command="executeJob",status="conflict"} 1
bpm_commands_total{command="executeJob",status="ok"} 1
# HELP bpm_agenda_operations_total Total number of executed agenda operations
# TYPE bpm_agenda_operations_total counter
bpm_agenda_operations_total 7
# HELP bpm_jobs_acquired_total Total number of acquired jobs
# TYPE bpm_jobs_acquired_total counter
bpm_jobs_acquired_total 2
# HELP bpm_jobs_total Total number of executed jobs
# TYPE bpm_jobs_total counter
bpm_jobs_total{status="failed",type="timer-start"} 1
`), "bpm_commands_total", "bpm_agenda_operations_total", "bpm_jobs_acquired_total", "bpm_jobs_total"))

	count, err := testutil.GatherAndCount(collector.Registry(), "bpm_optimistic_lock_conflicts_total", "bpm_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector("bpm", nil)
		NewCollector("bpm", nil)
	})
}
