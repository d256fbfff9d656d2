package realtime_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/services/realtime"
	testutil "github.com/trezcool/masomo-notifications/tests"
)

func setup(t *testing.T) (*realtime.Hub, func(recipientID string) *websocket.Conn) {
	t.Helper()
	hub := realtime.NewHub(core.NewTestConfig(), new(testutil.Logger))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("recipient"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	dial := func(recipientID string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?recipient=" + recipientID
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	return hub, dial
}

func TestHub_Publish(t *testing.T) {
	hub, dial := setup(t)
	jane1, jane2, john := dial("jane"), dial("jane"), dial("john")
	require.Eventually(t, func() bool {
		return hub.Subscribers("jane") == 2 && hub.Subscribers("john") == 1
	}, time.Second, 10*time.Millisecond)

	n := testutil.NewNotification("jane", notification.KindNewMessage, "New message from Mr. Smith", time.Now(), nil)
	hub.Publish("jane", n, notification.SoundUrgentAlert)

	for _, conn := range []*websocket.Conn{jane1, jane2} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var evt realtime.Event
		require.NoError(t, json.Unmarshal(msg, &evt))
		assert.Equal(t, "notification", evt.Type)
		assert.Equal(t, notification.SoundUrgentAlert, evt.Sound)
		assert.Equal(t, n.ID, evt.Notification.ID)
		_, ok := evt.Notification.Data.(*notification.NewMessageData)
		assert.True(t, ok, "got %T", evt.Notification.Data)
	}

	_ = john.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := john.ReadMessage()
	assert.Error(t, err, "john must not receive jane's notifications")

	// no subscriber: no-op
	hub.Publish("nobody", n, "")
}

func TestHub_disconnect(t *testing.T) {
	hub, dial := setup(t)
	conn := dial("jane")
	require.Eventually(t, func() bool { return hub.Subscribers("jane") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers("jane") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub, dial := setup(t)
	conn := dial("jane")
	require.Eventually(t, func() bool { return hub.Subscribers("jane") == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Subscribers("jane"))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)
}

func TestHub_origin(t *testing.T) {
	hub := realtime.NewHub(core.NewTestConfig(), new(testutil.Logger)) // frontend: http://masomo.test
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "jane")
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{name: "no origin"},
		{name: "frontend", origin: "http://masomo.test"},
		{name: "frontend, upper case", origin: "HTTP://Masomo.Test"},
		{name: "other host", origin: "http://evil.test", wantErr: true},
		{name: "other scheme", origin: "https://masomo.test", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := make(http.Header)
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.wantErr {
				require.Error(t, err)
				if assert.NotNil(t, resp) {
					assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			_ = conn.Close()
		})
	}

	t.Run("debug mode accepts any origin", func(t *testing.T) {
		conf := core.NewTestConfig()
		conf.Debug = true
		dbgHub := realtime.NewHub(conf, new(testutil.Logger))
		dbgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = dbgHub.Serve(w, r, "jane")
		}))
		defer func() {
			dbgHub.Close()
			dbgSrv.Close()
		}()

		header := http.Header{"Origin": []string{"http://evil.test"}}
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(dbgSrv.URL, "http"), header)
		require.NoError(t, err)
		_ = conn.Close()
	})
}

func TestHub_Serve_closed(t *testing.T) {
	hub := realtime.NewHub(core.NewTestConfig(), new(testutil.Logger))
	hub.Close()

	rec := httptest.NewRecorder()
	err := hub.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), "jane")
	if assert.Error(t, err) {
		assert.True(t, core.IsShutdown(err))
	}
	assert.Equal(t, 0, hub.Subscribers("jane"))
}
