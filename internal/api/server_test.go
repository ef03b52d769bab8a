package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/infrastructure/logging"
	"github.com/nerrad567/rfbridge/internal/pubsub"
	"github.com/nerrad567/rfbridge/internal/radio"
	"github.com/nerrad567/rfbridge/internal/state"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memStore) Get(_ context.Context, path string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[path]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, path, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = state
	return nil
}

type recordingTx struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingTx) Transmit(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, command)
	return nil
}

type fakeHistory struct {
	path  string
	limit int
	err   error
}

func (f *fakeHistory) History(_ context.Context, path string, limit int) ([]state.HistoryEntry, error) {
	f.path, f.limit = path, limit
	if f.err != nil {
		return nil, f.err
	}
	return []state.HistoryEntry{{Path: path, State: "ON", Source: "command", Time: time.Unix(0, 0).UTC()}}, nil
}

type fixture struct {
	srv     *Server
	handler http.Handler
	fanTx   *recordingTx
	store   *memStore
	history *fakeHistory
	bus     *pubsub.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fanTx:   &recordingTx{},
		store:   &memStore{values: map[string]string{"light/porch": "OFF"}},
		history: &fakeHistory{},
	}
	f.bus = pubsub.New(nil)
	t.Cleanup(f.bus.Close)

	reg := device.NewRegistry()
	fan, err := device.New(device.Config{
		Kind: device.KindThreeSpeedFan, Name: "bedroom", Vendor: "hunter",
		Transmitter: f.fanTx, Store: f.store, Notifier: f.bus,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(fan))

	light, err := device.New(device.Config{
		Kind: device.KindLight, Name: "porch", Label: "Porch", Vendor: "hamptonbay",
		Transmitter: &recordingTx{}, Store: f.store, Notifier: f.bus,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(light))

	f.srv, err = New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		Logger:  logging.Discard(),
		Devices: reg,
		History: f.history,
		Events:  f.bus,
		Stats:   func() map[string]uint64 { return map[string]uint64{"transmissions": 7} },
		Version: "test",
	})
	require.NoError(t, err)
	f.handler = f.srv.Handler()
	return f
}

func (f *fixture) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Deps{Devices: device.NewRegistry()})
	assert.Error(t, err)
	_, err = New(Deps{Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestGetState(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/devices/light/porch", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OFF", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = f.do(http.MethodGet, "/api/v1/devices/fan/bedroom", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/devices/fan/attic", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetStateReturnsCanonicalState(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/v1/devices/fan/bedroom/speed", "high\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Body.String())
	assert.Equal(t, []string{"3"}, f.fanTx.sent)

	rec = f.do(http.MethodPost, "/api/v1/devices/fan/bedroom", "OFF")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OFF", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/devices/fan/bedroom/speed", "")
	assert.Equal(t, "3", rec.Body.String())
}

func TestSetStateErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/v1/devices/fan/bedroom", "SIDEWAYS")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.fanTx.sent)

	f.fanTx.err = fmt.Errorf("%w: usb", radio.ErrTransportTimeout)
	rec = f.do(http.MethodPut, "/api/v1/devices/fan/bedroom", "ON")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	f.fanTx.err = errors.New("boom")
	rec = f.do(http.MethodPut, "/api/v1/devices/fan/bedroom", "ON")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/devices/fan/bedroom/wobble", "ON")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionsListsStates(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodOptions, "/api/v1/devices/fan/bedroom/speed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1\n2\n3", rec.Body.String())

	rec = f.do(http.MethodOptions, "/api/v1/devices/fan/bedroom", "",
		"Origin", "http://panel", "Access-Control-Request-Method", "PUT")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://panel", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPluralClassRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/fans/bedroom/speed", "2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Body.String())

	rec = f.do(http.MethodGet, "/lights/porch", "")
	assert.Equal(t, "OFF", rec.Body.String())

	rec = f.do(http.MethodGet, "/", "")
	assert.Equal(t, "/fans/bedroom - ON\n/lights/porch - OFF", rec.Body.String())
}

func TestListDevices(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int          `json:"count"`
		Devices []deviceView `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)

	fan := body.Devices[0]
	assert.Equal(t, "fan/bedroom", fan.Path)
	assert.Equal(t, "three_speed_fan", fan.Kind)
	assert.Nil(t, fan.State)
	assert.Equal(t, []string{"1", "2", "3"}, fan.SubDevices["speed"].States)

	porch := body.Devices[1]
	require.NotNil(t, porch.State)
	assert.Equal(t, "OFF", *porch.State)
	assert.Equal(t, "Porch", porch.Label)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/devices/fan/bedroom/speed/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fan/bedroom/speed", f.history.path)
	assert.Equal(t, 5, f.history.limit)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = f.do(http.MethodGet, "/api/v1/devices/light/porch/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, f.history.limit)

	rec = f.do(http.MethodGet, "/api/v1/devices/light/porch/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.history.err = errors.New("disk")
	rec = f.do(http.MethodGet, "/api/v1/devices/light/porch/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParseHistoryLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultHistoryLimit, false},
		{"10", 10, false},
		{"100000", maxHistoryLimit, false},
		{"0", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHistoryLimit(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		assert.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.EqualValues(t, 2, body["devices"])
	assert.EqualValues(t, 7, body["statistics"].(map[string]any)["transmissions"])
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(http.MethodGet, "/api/v1/health", "", "X-Request-ID", "abc")
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestStartAndClose(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.srv.HealthCheck(context.Background()))

	require.NoError(t, f.srv.Start(context.Background()))
	assert.NoError(t, f.srv.HealthCheck(context.Background()))

	resp, err := http.Get("http://" + f.srv.Addr() + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, f.srv.Close())
}
