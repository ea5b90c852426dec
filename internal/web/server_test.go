package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/status"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	results chan capture.Result
	alerts  chan capture.Alert
	resets  atomic.Int32
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		results: make(chan capture.Result, 8),
		alerts:  make(chan capture.Alert, 8),
	}
}

func (f *fakePipeline) Subscribe(int) (<-chan capture.Result, func()) {
	return f.results, func() {}
}

func (f *fakePipeline) SubscribeAlerts(int) (<-chan capture.Alert, func()) {
	return f.alerts, func() {}
}

func (f *fakePipeline) ResetPolicy() { f.resets.Add(1) }

var now = time.Date(2026, 3, 2, 14, 30, 0, 0, time.Local)

func newTestServer(t *testing.T, history History) (*httptest.Server, *Server, *status.Tracker, *fakePipeline) {
	t.Helper()
	cfg := status.Config{
		Device:    0,
		Threshold: 0.21,
		RunLength: 3,
		Cooldown:  30 * time.Second,
		CadenceHz: 10,
		LogFile:   "data/ear_log.csv",
		Detector:  "localhost:50051",
		HTTPAddr:  ":8080",
	}
	tr := status.NewTracker(now.Add(-time.Hour), cfg)
	pipe := newFakePipeline()
	srv := New(":0", tr, pipe, history, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, srv, tr, pipe
}

func newHistory(t *testing.T) *earlog.Log {
	t.Helper()
	log := earlog.New(filepath.Join(t.TempDir(), "ear_log.csv"), earlog.WithClock(func() time.Time { return now }))
	samples := []earlog.Sample{
		{Time: now.Add(-20 * time.Minute), EAR: 0.30, Status: analyzer.Normal},
		{Time: now.Add(-2 * time.Minute), EAR: 0.28, Status: analyzer.Normal},
		{Time: now.Add(-time.Minute), EAR: 0.18, Status: analyzer.Drowsy},
	}
	for _, s := range samples {
		require.NoError(t, log.Append(s))
	}
	return log
}

func TestJSONEndpoint(t *testing.T) {
	ts, _, tr, _ := newTestServer(t, nil)
	tr.Observe(capture.Result{Result: analyzer.Result{EAR: 0.25, Status: analyzer.Normal}, Time: now})
	tr.SetMQTTStatus(func() bool { return true })

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	assert.Equal(t, "idle", sj.State)
	assert.Equal(t, "Normal", sj.Status)
	assert.InDelta(t, 0.25, sj.EAR, 1e-9)
	assert.True(t, sj.MQTTConnected)
	assert.Nil(t, sj.LastAlert)
	require.NotNil(t, sj.LastFrame)
	assert.True(t, now.Equal(*sj.LastFrame))
	assert.Equal(t, "30s", sj.Config.Cooldown)
	assert.Equal(t, 3, sj.Config.RunLength)
}

func TestJSONEndpointRejectsPost(t *testing.T) {
	ts, _, _, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	ts, _, _, _ := newTestServer(t, newHistory(t))

	resp, err := http.Get(ts.URL + "/history.json?window=5m&tail=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hj HistoryJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hj))
	assert.Equal(t, "5m0s", hj.Window)
	assert.Empty(t, hj.Error)
	assert.Equal(t, 2, hj.Summary.Count)
	assert.Equal(t, 1, hj.Summary.Drowsy)
	assert.InDelta(t, 0.23, hj.Summary.MeanEAR, 1e-9)

	require.Len(t, hj.Recent, 2)
	assert.Equal(t, "Normal", hj.Recent[0].Status)
	assert.Equal(t, "Drowsy", hj.Recent[1].Status)
	assert.InDelta(t, 0.18, hj.Recent[1].EAR, 1e-9)
}

func TestHistoryEndpointInvalidQuery(t *testing.T) {
	ts, _, _, _ := newTestServer(t, newHistory(t))

	for _, q := range []string{"window=soon", "window=-1m", "tail=x", "tail=-1", "tail=5000"} {
		resp, err := http.Get(ts.URL + "/history.json?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHistoryEndpointSchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ear_log.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,status\n2026-03-02 14:29:00,Normal\n"), 0o644))
	ts, _, _, _ := newTestServer(t, earlog.New(path))

	resp, err := http.Get(ts.URL + "/history.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hj HistoryJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hj))
	assert.NotEmpty(t, hj.Error)
	assert.Zero(t, hj.Summary.Count)
	assert.Empty(t, hj.Recent)
}

func TestHistoryEndpointWithoutLog(t *testing.T) {
	ts, _, _, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/history.json")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetEndpoint(t *testing.T) {
	ts, _, _, pipe := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/reset")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/reset", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), pipe.resets.Load())
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestStreamPushesResultsAndAlerts(t *testing.T) {
	ts, _, _, pipe := newTestServer(t, nil)
	conn := dialStream(t, ts)

	pipe.results <- capture.Result{
		Result:    analyzer.Result{EAR: 0.19, Status: analyzer.Drowsy},
		SessionID: "s1",
		Time:      now,
	}

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "result", msg.Type)
	assert.Equal(t, "s1", msg.SessionID)
	assert.Equal(t, "Drowsy", msg.Status)
	assert.InDelta(t, 0.19, msg.EAR, 1e-9)

	pipe.alerts <- capture.Alert{SessionID: "s1", Time: now, EAR: 0.19, Consecutive: 3}

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, 3, msg.Consecutive)
}

func TestStreamOmitsFramePixels(t *testing.T) {
	ts, _, _, pipe := newTestServer(t, nil)
	conn := dialStream(t, ts)

	res := capture.Result{Result: analyzer.Result{Status: analyzer.NotDetected}, SessionID: "s1", Time: now}
	res.Frame.Data = []byte("jpeg-bytes")
	pipe.results <- res

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "jpeg")
	assert.Contains(t, string(raw), `"status":"NotDetected"`)
}

func TestShutdownClosesStreams(t *testing.T) {
	ts, srv, _, pipe := newTestServer(t, nil)
	conn := dialStream(t, ts)

	// Make sure the handler is subscribed before shutting down.
	pipe.results <- capture.Result{SessionID: "s1", Time: now}
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))

	require.NoError(t, srv.Shutdown(context.Background()))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
