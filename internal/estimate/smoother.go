// Package estimate derives a smoothed body angular velocity from successive
// telemetry snapshots.
//
// Two strategies share one Smoother: Exponential blends the gyroscope reading
// into the previous estimate, Windowed blends the mean finite-difference rate
// of the recent orientation history instead. Exponential is the default.
package estimate

import (
	"math"
	"time"

	"github.com/banshee-data/gaitcore/internal/robot"
)

// Strategy produces this cycle's raw angular-velocity sample, which the
// Smoother then blends into its running estimate.
type Strategy interface {
	Name() string
	Sample(snap *robot.Snapshot, h *History) robot.Vec3
}

// Exponential samples the gyroscope directly.
type Exponential struct{}

func (Exponential) Name() string { return "exponential" }

func (Exponential) Sample(snap *robot.Snapshot, _ *History) robot.Vec3 {
	return snap.AngularRate
}

// Windowed samples the mean of delta/dt over the filled entries of the
// orientation history. Entries with a non-positive dt are skipped.
type Windowed struct{}

func (Windowed) Name() string { return "windowed" }

func (Windowed) Sample(_ *robot.Snapshot, h *History) robot.Vec3 {
	var sum robot.Vec3
	n := 0
	h.Each(func(delta robot.Vec3, dt float64) {
		if dt <= 0 {
			return
		}
		sum = sum.Add(delta.Scale(1 / dt))
		n++
	})
	if n == 0 {
		return robot.Vec3{}
	}
	return sum.Scale(1 / float64(n))
}

// StrategyByName returns the strategy for a config name. Unknown names fall
// back to Exponential.
func StrategyByName(name string) Strategy {
	if name == (Windowed{}).Name() {
		return Windowed{}
	}
	return Exponential{}
}

// History is a fixed-depth ring of per-cycle orientation deltas and the
// elapsed wall time (seconds) between the snapshots that produced them.
type History struct {
	deltas []robot.Vec3
	dts    []float64
	idx    int
	filled int
}

// NewHistory returns a History of the given depth (minimum 1).
func NewHistory(depth int) *History {
	if depth < 1 {
		depth = 1
	}
	return &History{deltas: make([]robot.Vec3, depth), dts: make([]float64, depth)}
}

// Record stores one entry at the write index and advances it.
func (h *History) Record(delta robot.Vec3, dt float64) {
	h.deltas[h.idx] = delta
	h.dts[h.idx] = dt
	h.idx = (h.idx + 1) % len(h.deltas)
	if h.filled < len(h.deltas) {
		h.filled++
	}
}

// Len returns the number of filled entries.
func (h *History) Len() int { return h.filled }

// Depth returns the capacity.
func (h *History) Depth() int { return len(h.deltas) }

// Each calls fn for every filled entry, oldest first.
func (h *History) Each(fn func(delta robot.Vec3, dt float64)) {
	start := (h.idx - h.filled + len(h.deltas)) % len(h.deltas)
	for i := 0; i < h.filled; i++ {
		j := (start + i) % len(h.deltas)
		fn(h.deltas[j], h.dts[j])
	}
}

// Config configures a Smoother.
type Config struct {
	Strategy Strategy  // defaults to Exponential
	Ratio    float64   // blend factor for the new sample, defaults to 0.2
	Window   int       // history depth, defaults to 12
	Start    time.Time // reference time for the first dt
}

// Smoother maintains the orientation history and the blended estimate. It is
// owned by the control loop and not safe for concurrent use.
type Smoother struct {
	strategy Strategy
	ratio    float64
	history  *History

	prevOrientation robot.Vec3
	prevTime        time.Time
	estimate        robot.Vec3
}

// NewSmoother builds a Smoother with zeroed previous orientation and estimate.
func NewSmoother(cfg Config) *Smoother {
	if cfg.Strategy == nil {
		cfg.Strategy = Exponential{}
	}
	if cfg.Ratio <= 0 || cfg.Ratio > 1 {
		cfg.Ratio = 0.2
	}
	if cfg.Window < 1 {
		cfg.Window = 12
	}
	return &Smoother{
		strategy: cfg.Strategy,
		ratio:    cfg.Ratio,
		history:  NewHistory(cfg.Window),
		prevTime: cfg.Start,
	}
}

// Update records the orientation change since the previous snapshot and
// returns the new estimate. The first call sees a zero previous orientation
// and estimate, so its output is a small transient.
func (s *Smoother) Update(snap *robot.Snapshot, now time.Time) robot.Vec3 {
	delta := wrapAngles(snap.Orientation.Sub(s.prevOrientation))
	dt := 0.0
	if !s.prevTime.IsZero() {
		dt = now.Sub(s.prevTime).Seconds()
	}
	s.history.Record(delta, dt)
	s.prevOrientation = snap.Orientation
	s.prevTime = now

	sample := s.strategy.Sample(snap, s.history)
	s.estimate = sample.Scale(s.ratio).Add(s.estimate.Scale(1 - s.ratio))
	return s.estimate
}

// Estimate returns the latest estimate without updating.
func (s *Smoother) Estimate() robot.Vec3 { return s.estimate }

// Strategy returns the active strategy.
func (s *Smoother) Strategy() Strategy { return s.strategy }

// History exposes the orientation history for inspection.
func (s *Smoother) History() *History { return s.history }

// wrapAngles maps each component into [-pi, pi] so a yaw crossing the branch
// cut reads as a small delta.
func wrapAngles(v robot.Vec3) robot.Vec3 {
	for i := range v {
		v[i] = math.Remainder(v[i], 2*math.Pi)
	}
	return v
}
