package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	require.NoError(t, f.srv.Start(context.Background()))
	t.Cleanup(func() { f.srv.Close() })

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+f.srv.Addr()+"/api/v1/stream", nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return f.srv.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) StreamFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f StreamFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStreamDeliversStateChanges(t *testing.T) {
	f := newFixture(t)
	conn := dialStream(t, f)

	rec := f.do(http.MethodPut, "/api/v1/devices/light/porch", "ON")
	require.Equal(t, http.StatusOK, rec.Code)

	frame := readFrame(t, conn)
	assert.Equal(t, FrameStateChanged, frame.Type)
	assert.NotEmpty(t, frame.ID)
	require.NotNil(t, frame.Event)
	assert.Equal(t, "light/porch", frame.Event.Path)
	assert.Equal(t, "ON", frame.Event.State)
}

func TestStreamSubscriptionFiltersPaths(t *testing.T) {
	f := newFixture(t)
	conn := dialStream(t, f)

	require.NoError(t, conn.WriteJSON(StreamRequest{
		Type: RequestSubscribe, ID: "1", Paths: []string{"/fan/bedroom/", ""},
	}))
	resp := readFrame(t, conn)
	assert.Equal(t, FrameSubscribed, resp.Type)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, []string{"fan/bedroom"}, resp.Paths)

	f.do(http.MethodPut, "/api/v1/devices/light/porch", "ON")
	f.do(http.MethodPut, "/api/v1/devices/fan/bedroom/speed", "1")

	// The light event is filtered out; the fan's first update is power.
	frame := readFrame(t, conn)
	require.NotNil(t, frame.Event)
	assert.Equal(t, "fan/bedroom/power", frame.Event.Path)
}

func TestStreamPingAndErrors(t *testing.T) {
	f := newFixture(t)
	conn := dialStream(t, f)

	require.NoError(t, conn.WriteJSON(StreamRequest{Type: RequestPing, ID: "p"}))
	frame := readFrame(t, conn)
	assert.Equal(t, FramePong, frame.Type)
	assert.Equal(t, "p", frame.ID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	frame = readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)

	require.NoError(t, conn.WriteJSON(StreamRequest{Type: "dance"}))
	frame = readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Contains(t, frame.Error, "dance")
}

func TestStreamClosesWhenServerStops(t *testing.T) {
	f := newFixture(t)
	conn := dialStream(t, f)

	require.NoError(t, f.srv.Close())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestStreamClientWants(t *testing.T) {
	c := newStreamClient(nil, nil)
	assert.True(t, c.wants("fan/bedroom"))

	c.paths["fan/bedroom"] = struct{}{}
	assert.True(t, c.wants("fan/bedroom/speed"))
	assert.False(t, c.wants("fan/bedroom2"))
	assert.False(t, c.wants("light/porch"))
}

func TestSlowClientMissesEvents(t *testing.T) {
	c := newStreamClient(nil, nil)
	for i := 0; i < streamQueueSize+5; i++ {
		c.queue([]byte("x"))
	}
	assert.Len(t, c.out, streamQueueSize)

	c.close()
	c.close()
	c.queue([]byte("y"))
}
