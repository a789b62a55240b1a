package estimate

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/gaitcore/internal/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestExponentialBlend(t *testing.T) {
	t.Parallel()
	s := NewSmoother(Config{Start: epoch})
	snap := &robot.Snapshot{AngularRate: robot.Vec3{1, -2, 0.5}}

	first := s.Update(snap, epoch.Add(20*time.Millisecond))
	assert.InDeltaSlice(t, []float64{0.2, -0.4, 0.1}, first[:], 1e-12)

	second := s.Update(snap, epoch.Add(40*time.Millisecond))
	// 0.2*1 + 0.8*0.2 = 0.36
	assert.InDeltaSlice(t, []float64{0.36, -0.72, 0.18}, second[:], 1e-12)
	assert.Equal(t, second, s.Estimate())
	assert.Equal(t, "exponential", s.Strategy().Name())
}

func TestExponentialConvergesToRate(t *testing.T) {
	t.Parallel()
	s := NewSmoother(Config{Ratio: 0.2, Start: epoch})
	snap := &robot.Snapshot{AngularRate: robot.Vec3{0.3, 0, 0}}
	var est robot.Vec3
	for i := 1; i <= 200; i++ {
		est = s.Update(snap, epoch.Add(time.Duration(i)*20*time.Millisecond))
	}
	assert.InDelta(t, 0.3, est[0], 1e-9)
}

func TestHistoryRing(t *testing.T) {
	t.Parallel()
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Record(robot.Vec3{float64(i)}, float64(i))
	}
	require.Equal(t, 3, h.Len())
	require.Equal(t, 3, h.Depth())

	var got []float64
	h.Each(func(d robot.Vec3, dt float64) { got = append(got, dt) })
	assert.Equal(t, []float64{3, 4, 5}, got)
}

func TestSmootherRecordsDeltas(t *testing.T) {
	t.Parallel()
	s := NewSmoother(Config{Window: 12, Start: epoch})

	s.Update(&robot.Snapshot{Orientation: robot.Vec3{0.1, 0, 0}}, epoch.Add(20*time.Millisecond))
	s.Update(&robot.Snapshot{Orientation: robot.Vec3{0.15, 0, 0}}, epoch.Add(40*time.Millisecond))

	var deltas []float64
	var dts []float64
	s.History().Each(func(d robot.Vec3, dt float64) {
		deltas = append(deltas, d[0])
		dts = append(dts, dt)
	})
	assert.InDeltaSlice(t, []float64{0.1, 0.05}, deltas, 1e-12)
	assert.InDeltaSlice(t, []float64{0.02, 0.02}, dts, 1e-12)
}

func TestWindowedAverage(t *testing.T) {
	t.Parallel()
	s := NewSmoother(Config{Strategy: StrategyByName("windowed"), Ratio: 1, Start: epoch})
	assert.Equal(t, "windowed", s.Strategy().Name())

	// constant roll rate of 0.5 rad/s sampled every 20ms
	var est robot.Vec3
	for i := 1; i <= 12; i++ {
		est = s.Update(&robot.Snapshot{
			Orientation: robot.Vec3{0.01 * float64(i), 0, 0},
			AngularRate: robot.Vec3{99, 99, 99}, // ignored by this strategy
		}, epoch.Add(time.Duration(i)*20*time.Millisecond))
	}
	assert.InDelta(t, 0.5, est[0], 1e-9)
	assert.InDelta(t, 0, est[1], 1e-12)
}

func TestWindowedSkipsZeroDt(t *testing.T) {
	t.Parallel()
	s := NewSmoother(Config{Strategy: Windowed{}, Ratio: 1})
	// no Start: first dt is zero and must not produce NaN
	est := s.Update(&robot.Snapshot{Orientation: robot.Vec3{1, 1, 1}}, epoch)
	for _, v := range est {
		assert.False(t, math.IsNaN(v))
	}
	assert.Equal(t, robot.Vec3{}, est)
}

func TestYawWrap(t *testing.T) {
	t.Parallel()
	s := NewSmoother(Config{Start: epoch})
	s.Update(&robot.Snapshot{Orientation: robot.Vec3{0, 0, math.Pi - 0.01}}, epoch.Add(20*time.Millisecond))
	s.Update(&robot.Snapshot{Orientation: robot.Vec3{0, 0, -math.Pi + 0.01}}, epoch.Add(40*time.Millisecond))

	var last robot.Vec3
	s.History().Each(func(d robot.Vec3, _ float64) { last = d })
	assert.InDelta(t, 0.02, last[2], 1e-9)
}

func TestStrategyByNameDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "exponential", StrategyByName("").Name())
	assert.Equal(t, "exponential", StrategyByName("bogus").Name())
}
