package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunSummaryAdd(t *testing.T) {
	s := RunSummary{}
	s.Add(RunStatusPending, 2)
	s.Add(RunStatusRunning, 1)
	s.Add(RunStatusCompleted, 3)
	s.Add(RunStatusFailed, 1)

	assert.Equal(t, int32(7), s.Total)
	assert.Equal(t, int32(3), s.Unfinished())
	assert.Equal(t, int32(3), s.Completed)
	assert.Equal(t, int32(1), s.Failed)
}

func TestRunCanBeViewedBy(t *testing.T) {
	run := &OptimisationRun{ID: 1, RequestedBy: 7}

	assert.True(t, run.CanBeViewedBy(7, RoleCoordinator))
	assert.False(t, run.CanBeViewedBy(8, RoleCoordinator))
	assert.True(t, run.CanBeViewedBy(8, RoleAdmin))
	assert.False(t, run.CanBeViewedBy(8, ""))
}
