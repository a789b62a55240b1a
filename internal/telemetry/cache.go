// Package telemetry publishes the robot state seen by the control loop to
// external observers without touching control state.
//
// The control loop stores a copy of each snapshot in a StateCache. A
// Publisher reads the cache at its own rate and fans Frames out through a
// Hub to the debug HTTP routes and the SQLite Recorder.
package telemetry

import (
	"sync"
	"time"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// Sample is a timestamped copy of one snapshot.
type Sample struct {
	Snapshot robot.Snapshot
	At       time.Time
	// Seq increases by one on every Store.
	Seq uint64
}

// StateCache holds the latest snapshot copy. The lock is only held while
// copying.
type StateCache struct {
	mu  sync.RWMutex
	s   Sample
	set bool
}

func NewStateCache() *StateCache {
	return &StateCache{}
}

// Store copies snap into the cache.
func (c *StateCache) Store(snap *robot.Snapshot, at time.Time) {
	c.mu.Lock()
	c.s.Snapshot = *snap
	c.s.At = at
	c.s.Seq++
	c.set = true
	c.mu.Unlock()
}

// Load returns a copy of the latest sample; ok is false before the first
// Store.
func (c *StateCache) Load() (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s, c.set
}
