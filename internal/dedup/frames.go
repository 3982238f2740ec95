// Package dedup suppresses duplicate/redelivered AI worker frame-stat
// updates, grounded on the teacher's event-dedup cache for NVR events.
package dedup

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// FrameDedup tracks the highest frame number already applied per AI task,
// so a worker-side retry that redelivers the same (task_id,
// last_processed_frame) pair doesn't double-count frames_processed or
// detections_made.
type FrameDedup struct {
	cache *lru.Cache[string, int64]
}

func NewFrameDedup(maxTasks int) *FrameDedup {
	if maxTasks <= 0 {
		maxTasks = 4096
	}
	c, _ := lru.New[string, int64](maxTasks)
	return &FrameDedup{cache: c}
}

// IsDuplicate reports whether lastProcessedFrame has already been applied
// for taskID (i.e. is <= the highest frame number seen so far), and
// records the new high-water mark when it is not.
func (d *FrameDedup) IsDuplicate(taskID string, lastProcessedFrame int64) bool {
	if seen, ok := d.cache.Get(taskID); ok && lastProcessedFrame <= seen {
		return true
	}
	d.cache.Add(taskID, lastProcessedFrame)
	return false
}
