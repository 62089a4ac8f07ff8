package main

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tutorrelay.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_StopsOnSignal(t *testing.T) {
	port := freePort(t)
	path := writeConfig(t, `{"http":{"host":"127.0.0.1","port":`+strconv.Itoa(port)+`},"log":{"level":"error"}}`)

	signalCh := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- run(path, signalCh) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	signalCh <- syscall.SIGTERM

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `{"http":{"port":70000}}`)
	err := run(path, make(chan os.Signal))
	assert.Error(t, err)
}

func TestRun_UnreadableConfigFile(t *testing.T) {
	path := writeConfig(t, `{not json`)
	err := run(path, make(chan os.Signal))
	assert.Error(t, err)
}
