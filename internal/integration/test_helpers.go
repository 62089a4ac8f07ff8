// Package integration drives a fully wired relay over real HTTP and
// WebSocket connections.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"tutorrelay/internal/app"
	"tutorrelay/internal/config"
)

// FixedNow is the wall clock every integration test runs at.
var FixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

// TestServer is a running application bound to a loopback port.
type TestServer struct {
	App     *app.Application
	BaseURL string
}

// StartTestServer boots the application with cfg adjusted for tests. mutate
// may tweak the configuration before it is validated.
func StartTestServer(t *testing.T, mutate func(cfg *config.Config)) *TestServer {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.WebSocket.PingInterval = time.Second
	cfg.WebSocket.ReadTimeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.NewApplication(cfg, nil, app.WithClock(func() time.Time { return FixedNow }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, application.Start(ctx))

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = application.Stop(shutdownCtx)
		cancel()
	})

	return &TestServer{App: application, BaseURL: "http://" + application.Addr()}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// PostJSON sends body to path and decodes the response into out when out
// is non-nil.
func (s *TestServer) PostJSON(t *testing.T, path string, body interface{}, out interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.BaseURL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// GetJSON fetches path and decodes the response into out.
func (s *TestServer) GetJSON(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(s.BaseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// ConnectionCounts reads the live connection counts from /health.
func (s *TestServer) ConnectionCounts(t *testing.T) map[string]int {
	t.Helper()
	var health struct {
		Connections map[string]int `json:"connections"`
	}
	s.GetJSON(t, "/health", &health)
	return health.Connections
}

// TestClient is a WebSocket participant that collects every frame it receives.
type TestClient struct {
	conn     *websocket.Conn
	messages chan map[string]interface{}
	done     chan struct{}

	writeMu sync.Mutex
}

// Dial opens a real-time connection to the server.
func (s *TestServer) Dial(t *testing.T) *TestClient {
	t.Helper()
	url := "ws://" + s.App.Addr() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	c := &TestClient{
		conn:     conn,
		messages: make(chan map[string]interface{}, 100),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(func() { c.Close() })
	return c
}

func (c *TestClient) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.messages <- msg
	}
}

// Send writes v as a single text frame.
func (c *TestClient) Send(t *testing.T, v interface{}) {
	t.Helper()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	require.NoError(t, c.conn.WriteJSON(v))
}

// SendRaw writes a text frame verbatim.
func (c *TestClient) SendRaw(t *testing.T, data string) {
	t.Helper()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

// Expect waits for the next frame of the given type, skipping others.
func (c *TestClient) Expect(t *testing.T, frameType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg["type"] == frameType {
				return msg
			}
		case <-deadline:
			require.FailNow(t, fmt.Sprintf("timed out waiting for %q frame", frameType))
			return nil
		}
	}
}

// ExpectNone asserts that no frame arrives within wait.
func (c *TestClient) ExpectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-c.messages:
		require.FailNow(t, fmt.Sprintf("unexpected frame: %v", msg))
	case <-time.After(wait):
	}
}

// Close shuts the connection and waits for the reader to exit.
func (c *TestClient) Close() {
	_ = c.conn.Close()
	<-c.done
}
