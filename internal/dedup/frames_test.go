package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/vms-coordinator/internal/dedup"
)

func TestFrameDedup_FirstUpdateNeverDuplicate(t *testing.T) {
	d := dedup.NewFrameDedup(16)
	assert.False(t, d.IsDuplicate("task-1", 100))
}

func TestFrameDedup_RedeliveredUpdateIsDuplicate(t *testing.T) {
	d := dedup.NewFrameDedup(16)
	d.IsDuplicate("task-1", 100)
	assert.True(t, d.IsDuplicate("task-1", 100))
	assert.True(t, d.IsDuplicate("task-1", 50))
}

func TestFrameDedup_AdvancingFrameIsNotDuplicate(t *testing.T) {
	d := dedup.NewFrameDedup(16)
	d.IsDuplicate("task-1", 100)
	assert.False(t, d.IsDuplicate("task-1", 150))
}

func TestFrameDedup_TracksPerTaskIndependently(t *testing.T) {
	d := dedup.NewFrameDedup(16)
	d.IsDuplicate("task-1", 100)
	assert.False(t, d.IsDuplicate("task-2", 10))
}
