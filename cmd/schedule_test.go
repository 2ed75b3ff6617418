package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/api"
	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	"github.com/JakeFAU/drhp-archiver/internal/clock/system"
	"github.com/JakeFAU/drhp-archiver/internal/metrics"
	"github.com/JakeFAU/drhp-archiver/internal/state/file"
)

func TestRunTrackerSkipsOverlappingRuns(t *testing.T) {
	fake := &fakeApp{release: make(chan struct{}), summary: archiver.Summary{RunID: "run-1", Archived: 2}}
	tracker := newRunTracker(context.Background(), fake, zap.NewNop())

	require.True(t, tracker.Trigger())
	require.Eventually(t, func() bool { return fake.Runs() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, tracker.Trigger())
	assert.False(t, tracker.RunIfIdle())
	_, ok := tracker.Last()
	assert.False(t, ok)

	close(fake.release)
	tracker.Wait()

	last, ok := tracker.Last()
	require.True(t, ok)
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, 2, last.Archived)
	assert.Empty(t, last.Error)
	assert.False(t, last.FinishedAt.Before(last.StartedAt))
	assert.Equal(t, 1, fake.Runs())
}

func TestRunTrackerRecordsError(t *testing.T) {
	fake := &fakeApp{err: errors.New("save state: disk full")}
	tracker := newRunTracker(context.Background(), fake, zap.NewNop())
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker.clock = system.NewFixed(started)

	require.True(t, tracker.RunIfIdle())
	last, ok := tracker.Last()
	require.True(t, ok)
	assert.Equal(t, "save state: disk full", last.Error)
	assert.Equal(t, started, last.StartedAt)
}

func TestScheduleStatusServer(t *testing.T) {
	store, err := file.New(filepath.Join(t.TempDir(), "downloaded.json"))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), archiver.NewProcessedSet("https://a/1.pdf")))

	fake := &fakeApp{summary: archiver.Summary{RunID: "run-7", Candidates: 1, Skipped: 1}, state: store, recorder: metrics.New()}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runSchedule(ctx, scheduleOptions{expr: "@every 1h", listener: ln}, fake, zap.NewNop())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/v1/state")
	require.NoError(t, err)
	var state struct {
		Count int      `json:"count"`
		URLs  []string `json:"urls"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	_ = resp.Body.Close()
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, []string{"https://a/1.pdf"}, state.URLs)

	resp, err = http.Post(base+"/v1/runs", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var last api.RunStatus
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/v1/runs/last")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return json.NewDecoder(resp.Body).Decode(&last) == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "run-7", last.RunID)
	assert.Equal(t, 1, fake.Runs())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

// brokenListener fails every Accept, which makes http.Server.Serve return.
type brokenListener struct {
	net.Listener
}

func (brokenListener) Accept() (net.Conn, error) {
	return nil, errors.New("accept: listener broken")
}

func TestScheduleReturnsStatusServerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	fake := &fakeApp{recorder: metrics.New()}
	done := make(chan error, 1)
	go func() {
		done <- runSchedule(context.Background(), scheduleOptions{expr: "@every 1h", listener: brokenListener{ln}}, fake, zap.NewNop())
	}()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "status server")
		require.ErrorContains(t, err, "listener broken")
	case <-time.After(5 * time.Second):
		t.Fatal("schedule kept running after the status server failed")
	}
}
