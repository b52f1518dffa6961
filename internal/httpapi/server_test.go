package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
	"github.com/roach88/speller/internal/monitor"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	eng    *engine.Engine
	picker *flash.ScriptedPicker
	src    *monitor.ChannelSource
	srv    *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	picker := flash.NewScriptedPicker()
	e, err := engine.New(grid.Default(),
		engine.WithPicker(picker),
		engine.WithTicker(flash.NewManualTicker().Func()),
		engine.WithNow(func() time.Time { return t0 }),
		engine.WithSessionGenerator(engine.NewFixedGenerator("http-1")),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	src := monitor.NewChannelSource(4)
	return &fixture{
		eng:    e,
		picker: picker,
		src:    src,
		srv:    NewServer(e, WithSamples(src)),
	}
}

// do sends a request and decodes the envelope, leaving Data as raw JSON.
func (f *fixture) do(t *testing.T, method, path, body string) (int, Envelope, json.RawMessage) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), "body: %s", rec.Body.String())
	return rec.Code, Envelope{Status: raw.Status, Error: raw.Error}, raw.Data
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.eng.Sync(ctx))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	code, env, data := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Status)
	assert.JSONEq(t, `{"session":"http-1"}`, string(data))
}

func TestState_Initial(t *testing.T) {
	f := newFixture(t)

	code, _, data := f.do(t, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, code)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "http-1", snap.Session)
	assert.False(t, snap.Running)
	assert.Nil(t, snap.Highlight)
	assert.Equal(t, 0.3, snap.Threshold)
	assert.Equal(t, int64(1000), snap.IntervalMS)
	assert.Equal(t, "level", snap.Trigger)
}

func TestFlashing_StartStop(t *testing.T) {
	f := newFixture(t)

	code, _, data := f.do(t, http.MethodPost, "/flashing/start", "")
	require.Equal(t, http.StatusOK, code)
	var res ActionResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.True(t, res.Changed)
	assert.True(t, res.State.Running)

	_, _, data = f.do(t, http.MethodPost, "/flashing/start", "")
	require.NoError(t, json.Unmarshal(data, &res))
	assert.False(t, res.Changed, "already running")

	f.picker.Push(grid.Row, 1)
	_, ok := f.eng.Tick()
	require.True(t, ok)

	_, _, data = f.do(t, http.MethodGet, "/state", "")
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.NotNil(t, snap.Highlight)
	assert.Equal(t, grid.Row, snap.Highlight.Axis)
	assert.Equal(t, 1, snap.Highlight.Index)

	_, _, data = f.do(t, http.MethodPost, "/flashing/stop", "")
	require.NoError(t, json.Unmarshal(data, &res))
	assert.True(t, res.Changed)
	assert.False(t, res.State.Running)
	assert.Nil(t, res.State.Highlight)

	_, _, data = f.do(t, http.MethodPost, "/flashing/stop", "")
	require.NoError(t, json.Unmarshal(data, &res))
	assert.False(t, res.Changed)
}

func TestSamples_DriveDecode(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Attach(context.Background(), f.src)
	require.NoError(t, err)

	f.do(t, http.MethodPost, "/flashing/start", "")
	f.picker.Push(grid.Row, 2)
	f.eng.Tick()

	code, env, _ := f.do(t, http.MethodPost, "/samples", `{"probability": 0.9}`)
	require.Equal(t, http.StatusAccepted, code, env.Error)
	require.Eventually(t, func() bool {
		return f.eng.Snapshot().Pending.Row != nil
	}, 2*time.Second, 5*time.Millisecond)

	f.picker.Push(grid.Col, 3)
	f.eng.Tick()
	f.do(t, http.MethodPost, "/samples", `{"probability": 0.8}`)
	require.Eventually(t, func() bool {
		return f.eng.Snapshot().Text == "P"
	}, 2*time.Second, 5*time.Millisecond)

	snap := f.eng.Snapshot()
	require.NotNil(t, snap.LastDecoded)
	assert.Equal(t, "P", snap.LastDecoded.Symbol)
	assert.True(t, snap.Connected)
}

func TestSamples_Errors(t *testing.T) {
	f := newFixture(t)

	code, env, _ := f.do(t, http.MethodPost, "/samples", `{"probability": 0.5}`)
	assert.Equal(t, http.StatusConflict, code, "no subscriber yet")
	assert.Equal(t, "error", env.Status)

	_, err := f.eng.Attach(context.Background(), f.src)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing", body: `{}`, want: "probability is a required field"},
		{name: "too high", body: `{"probability": 1.2}`, want: "probability must be at most 1"},
		{name: "negative", body: `{"probability": -0.1}`, want: "probability must be at least 0"},
		{name: "unknown field", body: `{"p": 0.5}`, want: "unknown field"},
		{name: "not json", body: `0.5,`, want: "invalid JSON"},
		{name: "trailing", body: `{"probability": 0.5} {}`, want: "trailing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env, _ := f.do(t, http.MethodPost, "/samples", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, env.Error, tt.want)
		})
	}
}

func TestSamples_Disabled(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.eng)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/samples", strings.NewReader(`{"probability": 0.5}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	code, env, data := f.do(t, http.MethodPut, "/settings", `{"threshold": 0.55, "interval_ms": 250}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 0.55, snap.Threshold)
	assert.Equal(t, int64(250), snap.IntervalMS)

	code, _, data = f.do(t, http.MethodPut, "/settings", `{"threshold": 0}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 0.0, snap.Threshold)
	assert.Equal(t, int64(250), snap.IntervalMS, "interval unchanged")

	for body, want := range map[string]string{
		`{}`:                  "no settings given",
		`{"threshold": 2}`:    "threshold must be at most 1",
		`{"interval_ms": 0}`:  "interval_ms must be at least 1",
		`{"cadence": 100}`:    "unknown field",
		``:                    "empty body",
	} {
		code, env, _ := f.do(t, http.MethodPut, "/settings", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.Contains(t, env.Error, want, body)
	}
}

func TestSelectionReset(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Attach(context.Background(), f.src)
	require.NoError(t, err)

	f.eng.StartFlashing()
	f.picker.Push(grid.Col, 4)
	f.eng.Tick()
	f.eng.Offer(monitor.Sample{Value: 0.9, At: t0})
	f.sync(t)
	require.NotNil(t, f.eng.Snapshot().Pending.Col)

	code, _, _ := f.do(t, http.MethodPost, "/selection/reset", "")
	assert.Equal(t, http.StatusAccepted, code)
	f.sync(t)
	assert.Nil(t, f.eng.Snapshot().Pending.Col)
	assert.Equal(t, int64(1), f.eng.Snapshot().Counters.Resets)
}

func TestSelectionReset_Stopped(t *testing.T) {
	f := newFixture(t)
	f.eng.Stop()

	code, env, _ := f.do(t, http.MethodPost, "/selection/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "engine stopped", env.Error)
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/settings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_ReturnsListenerError(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	// The context never ends; Serve must still return and release its
	// shutdown goroutine.
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(context.Background(), ln) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.NotErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the listener failed")
	}
}
