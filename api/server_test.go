package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crisslavik/xStage/config"
	"github.com/crisslavik/xStage/engine"
	"github.com/crisslavik/xStage/history"
	"github.com/crisslavik/xStage/probe"
	"github.com/crisslavik/xStage/types"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	cfg.Workers = 2
	e := engine.New(cfg, engine.Deps{
		ProbeConfig: probe.Config{
			LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
		},
	}, zaptest.NewLogger(t))
	t.Cleanup(e.Close)
	return e
}

func newTestServer(t *testing.T, cfg config.ServerConfig, hist *history.Store) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := newTestEngine(t)
	srv := NewServer(cfg, eng, hist, nil, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, eng
}

func writeOBJ(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.mtl"),
		[]byte("newmtl paint\nKd 0.8 0.1 0.1\n"), 0o644))
	path := filepath.Join(dir, "tri.obj")
	obj := "mtllib tri.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl paint\nf 1 2 3\n"
	require.NoError(t, os.WriteFile(path, []byte(obj), 0o644))
	return path
}

func submitBody(t *testing.T, source, target string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(submitRequest{SourcePath: source, TargetPath: target})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func decodeJob(t *testing.T, resp *http.Response) engine.JobView {
	t.Helper()
	defer resp.Body.Close()
	var view engine.JobView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func TestSubmitAndPollJob(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)
	target := filepath.Join(t.TempDir(), "tri.usda")

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", submitBody(t, writeOBJ(t), target))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	view := decodeJob(t, resp)
	require.NotEmpty(t, view.Job.ID)

	assert.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/v1/jobs/" + view.Job.ID)
		if err != nil {
			return false
		}
		got := decodeJob(t, resp)
		return got.State == engine.StateFinished
	}, 5*time.Second, 20*time.Millisecond)

	resp, err = http.Get(ts.URL + "/api/v1/jobs/" + view.Job.ID)
	require.NoError(t, err)
	got := decodeJob(t, resp)
	require.NotNil(t, got.Result)
	assert.Equal(t, types.StatusSucceeded, got.Result.Status)
	assert.FileExists(t, target)
}

func TestSubmitMissingSourceRejected(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json",
		submitBody(t, filepath.Join(t.TempDir(), "ghost.obj"), filepath.Join(t.TempDir(), "out.usda")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitMismatchedGLBRejected(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	src := filepath.Join(t.TempDir(), "fake.glb")
	require.NoError(t, os.WriteFile(src, []byte("just some text"), 0o644))

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json",
		submitBody(t, src, filepath.Join(t.TempDir(), "out.usda")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitUnsupportedExtensionRejected(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	src := filepath.Join(t.TempDir(), "scene.blend")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json",
		submitBody(t, src, filepath.Join(t.TempDir(), "out.usda")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownJobIs404(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailabilityAndRefresh(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	resp, err := http.Get(ts.URL + "/api/v1/availability")
	require.NoError(t, err)
	var before probe.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&before))
	resp.Body.Close()
	assert.True(t, before.Available(types.FormatOBJ, types.MethodLibrary))
	assert.False(t, before.Available(types.FormatFBX, types.MethodTool))

	resp, err = http.Post(ts.URL+"/api/v1/availability/refresh", "application/json", nil)
	require.NoError(t, err)
	var after probe.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&after))
	resp.Body.Close()
	assert.Greater(t, after.Generation, before.Generation)
}

func TestHistoryDisabledIs404(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	resp, err := http.Get(ts.URL + "/api/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryListsRecords(t *testing.T) {
	hist, err := history.Open(filepath.Join(t.TempDir(), "h.db"), 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })
	ts, _ := newTestServer(t, config.DefaultServerConfig(), hist)

	job, err := types.NewJob("/assets/a.obj", "/out/a.usda", types.DefaultJobOptions())
	require.NoError(t, err)
	require.NoError(t, hist.Record(t.Context(), job, &types.ConversionResult{
		JobID: job.ID, Status: types.StatusSucceeded, Duration: time.Second,
	}))

	resp, err := http.Get(ts.URL + "/api/v1/history?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []history.JobRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, job.ID, recs[0].JobID)
}

func TestStatsAggregatesHistoryCounts(t *testing.T) {
	hist, err := history.Open(filepath.Join(t.TempDir(), "h.db"), 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })
	ts, _ := newTestServer(t, config.DefaultServerConfig(), hist)

	for _, status := range []types.JobStatus{types.StatusSucceeded, types.StatusSucceeded, types.StatusFailed} {
		job, err := types.NewJob("/assets/a.obj", "/out/a.usda", types.DefaultJobOptions())
		require.NoError(t, err)
		require.NoError(t, hist.Record(t.Context(), job, &types.ConversionResult{
			JobID: job.ID, Status: status,
		}))
	}

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		JobsByStatus map[string]int64 `json:"jobs_by_status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, int64(2), payload.JobsByStatus[string(types.StatusSucceeded)])
	assert.Equal(t, int64(1), payload.JobsByStatus[string(types.StatusFailed)])
}

func TestRateLimitRejectsBurst(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	ts, _ := newTestServer(t, cfg, nil)

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json",
		submitBody(t, writeOBJ(t), filepath.Join(t.TempDir(), "a.usda")))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/jobs", "application/json",
		submitBody(t, writeOBJ(t), filepath.Join(t.TempDir(), "b.usda")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, config.DefaultServerConfig(), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProgressWebsocketStreamsUntilDone(t *testing.T) {
	ts, eng := newTestServer(t, config.DefaultServerConfig(), nil)
	target := filepath.Join(t.TempDir(), "tri.usda")

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", submitBody(t, writeOBJ(t), target))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	view := decodeJob(t, resp)

	conn, _, err := websocket.Dial(t.Context(), ts.URL+"/api/v1/jobs/"+view.Job.ID+"/progress", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var last engine.ProgressEvent
	for {
		var ev engine.ProgressEvent
		if err := wsjson.Read(t.Context(), conn, &ev); err != nil {
			break
		}
		last = ev
		if ev.Phase == types.PhaseDone {
			break
		}
	}
	assert.Equal(t, types.PhaseDone, last.Phase)
	assert.Equal(t, view.Job.ID, last.JobID)

	// The job itself must have finished for the stream to close with done.
	got, ok := eng.Job(view.Job.ID)
	require.True(t, ok)
	assert.Equal(t, engine.StateFinished, got.State)
}
