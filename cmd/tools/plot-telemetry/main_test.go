package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/telemetry"
)

func syntheticFrames(n int) []telemetry.Frame {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	frames := make([]telemetry.Frame, n)
	for i := range frames {
		f := &frames[i]
		f.Seq = uint64(i + 1)
		f.At = t0.Add(time.Duration(i) * 2 * time.Millisecond)
		for j := range f.DofPos {
			f.DofPos[j] = float64(i*j) / 100
		}
		f.LinAcc = [3]float64{0, 0, 9.81}
	}
	return frames
}

func TestSeriesLabels(t *testing.T) {
	assert.Equal(t, []string{"x", "y", "z"}, seriesLabels(telemetry.ChannelLinAcc))
	labels := seriesLabels(telemetry.ChannelDofPos)
	require.Len(t, labels, 12)
	assert.Equal(t, "FL_0", labels[0])
}

func TestPlotChannelWritesPNG(t *testing.T) {
	dir := t.TempDir()
	frames := syntheticFrames(50)
	for _, ch := range []string{telemetry.ChannelDofPos, telemetry.ChannelLinAcc} {
		path := filepath.Join(dir, ch+".png")
		require.NoError(t, plotChannel(frames, ch, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestPlotChannelRejects(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, plotChannel(nil, telemetry.ChannelDofPos, filepath.Join(dir, "a.png")))
	assert.Error(t, plotChannel(syntheticFrames(2), "imu_quat", filepath.Join(dir, "b.png")))
}
