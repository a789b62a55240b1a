package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitcore/internal/robot"
)

func openTestRecorder(t *testing.T, path string) *Recorder {
	t.Helper()
	r, err := OpenRecorder(path, "test run")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func recordedFrame(seq uint64) Frame {
	f := NewFrame(Sample{
		Snapshot: *testSnapshot(uint32(seq * 10)),
		At:       epoch.Add(time.Duration(seq) * 2 * time.Millisecond),
		Seq:      seq,
	}, robot.DefaultJointMap())
	f.DofPos[0] = float64(seq) / 3
	return f
}

func TestRecorderMigrates(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "telemetry.db"))
	version, dirty, err := r.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
	assert.NotEmpty(t, r.RunID())
}

func TestRecorderRoundTrip(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "telemetry.db"))

	want := []Frame{recordedFrame(1), recordedFrame(2), recordedFrame(3)}
	require.NoError(t, r.Record(want...))
	// duplicates are ignored
	require.NoError(t, r.Record(want[1]))

	got, err := r.Frames(r.RunID())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Frames() mismatch (-want +got):\n%s", diff)
	}

	none, err := r.Frames("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecorderRunsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	first, err := OpenRecorder(path, "first")
	require.NoError(t, err)
	require.NoError(t, first.Record(recordedFrame(1)))
	firstID := first.RunID()
	require.NoError(t, first.Close())

	second := openTestRecorder(t, path)
	assert.NotEqual(t, firstID, second.RunID())

	runs, err := second.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID(), runs[0].ID)
	assert.Equal(t, 0, runs[0].Frames)
	assert.Equal(t, firstID, runs[1].ID)
	assert.Equal(t, "first", runs[1].Note)
	assert.Equal(t, 1, runs[1].Frames)
}

func TestOpenArchiveReadsWithoutStartingRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	rec, err := OpenRecorder(path, "live")
	require.NoError(t, err)
	require.NoError(t, rec.Record(recordedFrame(1), recordedFrame(2)))
	id := rec.RunID()
	require.NoError(t, rec.Close())

	archive, err := OpenArchive(path)
	require.NoError(t, err)
	defer archive.Close()
	assert.Empty(t, archive.RunID())
	assert.ErrorIs(t, archive.Record(recordedFrame(3)), ErrNoRun)

	runs, err := archive.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)

	frames, err := archive.Frames(id)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestRecorderConsume(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "telemetry.db"))
	hub := NewHub(16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Consume(ctx, hub, 2, 10*time.Millisecond) }()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, time.Millisecond)

	// the publisher repeats a sample until the loop stores a new one
	for _, seq := range []uint64{1, 1, 2, 3, 3} {
		hub.Publish(recordedFrame(seq))
	}

	require.Eventually(t, func() bool {
		frames, err := r.Frames(r.RunID())
		return err == nil && len(frames) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
	assert.Zero(t, hub.Subscribers())
}

func TestRecorderTailSQLRoute(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "telemetry.db"))
	mux := http.NewServeMux()
	require.NoError(t, r.AttachAdminRoutes(mux))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/tailsql/", nil))
	assert.NotEqual(t, http.StatusNotFound, w.Code, "tailsql should be mounted under /debug/tailsql/")
}

func TestRecorderRunsRoute(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, r.Record(recordedFrame(1)))
	mux := http.NewServeMux()
	require.NoError(t, r.AttachAdminRoutes(mux))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/telemetry-runs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Current string `json:"current"`
		Runs    []Run  `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, r.RunID(), body.Current)
	require.Len(t, body.Runs, 1)
	assert.Equal(t, 1, body.Runs[0].Frames)
}
