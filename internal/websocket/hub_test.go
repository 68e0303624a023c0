package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
)

type stubGate struct {
	valid map[string]bool
	err   error
}

func (g stubGate) Validate(ctx context.Context, token string) (bool, error) {
	return g.valid[token], g.err
}

func setupStreamServer(t *testing.T, gate stubGate) (*Hub, string) {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleStream(hub, gate, c, logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHandleStreamRejectsInvalidSession(t *testing.T) {
	_, url := setupStreamServer(t, stubGate{valid: map[string]bool{}})

	_, resp, err := websocket.DefaultDialer.Dial(url+"?login_token=nope&id=dev-1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?login_token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStreamStoreFailure(t *testing.T) {
	_, url := setupStreamServer(t, stubGate{err: errors.New("down")})

	_, resp, err := websocket.DefaultDialer.Dial(url+"?login_token=tok&id=dev-1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHubDeliversToDeviceWatchers(t *testing.T) {
	hub, url := setupStreamServer(t, stubGate{valid: map[string]bool{"tok": true}})

	watcher := dial(t, url+"?login_token=tok&id=dev-1")
	other := dial(t, url+"?login_token=tok&id=dev-2")

	require.Eventually(t, func() bool {
		return hub.ClientCount("dev-1") == 1 && hub.ClientCount("dev-2") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Notify(&entities.Message{DeviceID: "dev-1", Value: 7, Alert: true, Timestamp: 99})

	var frame TelemetryMessage
	readFrame(t, watcher, &frame)
	assert.Equal(t, MessageTypeTelemetry, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "dev-1", frame.Message.DeviceID)
	assert.Equal(t, int32(7), frame.Message.Value)
	assert.True(t, frame.Message.Alert)
	assert.Equal(t, int64(99), frame.Message.Timestamp)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestHubAnswersPing(t *testing.T) {
	hub, url := setupStreamServer(t, stubGate{valid: map[string]bool{"tok": true}})
	conn := dial(t, url+"?login_token=tok&id=dev-1")
	require.Eventually(t, func() bool {
		return hub.ClientCount("dev-1") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":"hi"}`)))
	var pong PongMessage
	readFrame(t, conn, &pong)
	assert.Equal(t, MessageTypePong, pong.Type)
	assert.Equal(t, "hi", pong.Data)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	var errFrame ErrorMessage
	readFrame(t, conn, &errFrame)
	assert.Equal(t, MessageTypeError, errFrame.Type)
	assert.Equal(t, "error-decode", errFrame.Code)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, url := setupStreamServer(t, stubGate{valid: map[string]bool{"tok": true}})
	conn := dial(t, url+"?login_token=tok&id=dev-1")
	require.Eventually(t, func() bool {
		return hub.ClientCount("dev-1") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount("dev-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := &Client{hub: hub, send: make(chan []byte, 1), deviceID: "dev-1", logger: zap.NewNop()}
	hub.clients["dev-1"] = map[*Client]struct{}{client: {}}

	hub.deliver(&entities.Message{DeviceID: "dev-1"})
	assert.Equal(t, 1, hub.ClientCount("dev-1"))

	hub.deliver(&entities.Message{DeviceID: "dev-1"})
	assert.Equal(t, 0, hub.ClientCount("dev-1"))

	// send is closed once the client is dropped
	<-client.send
	_, ok := <-client.send
	assert.False(t, ok)
}

func TestNotifyNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Notify(&entities.Message{DeviceID: "dev-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked without a running hub")
	}
}
