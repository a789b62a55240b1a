package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/banshee-data/gaitcore/internal/timeutil"
)

// Publisher re-publishes the cached state at a fixed interval, independent
// of the control period.
type Publisher struct {
	cache    *StateCache
	hub      *Hub
	joints   robot.JointMap
	interval time.Duration
	clock    timeutil.Clock

	published atomic.Uint64
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Interval time.Duration // defaults to 2ms (500 Hz)
	Joints   robot.JointMap
	Clock    timeutil.Clock
}

func NewPublisher(cache *StateCache, hub *Hub, cfg PublisherConfig) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Publisher{cache: cache, hub: hub, joints: cfg.Joints, interval: cfg.Interval, clock: cfg.Clock}
}

// PublishOnce publishes the latest sample and reports whether there was one.
func (p *Publisher) PublishOnce() bool {
	s, ok := p.cache.Load()
	if !ok {
		return false
	}
	p.hub.Publish(NewFrame(s, p.joints))
	p.published.Add(1)
	return true
}

// Published returns the number of frames published.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Run publishes on every tick until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			p.PublishOnce()
		}
	}
}
