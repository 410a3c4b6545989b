package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	return NewDirectory(filepath.Join(t.TempDir(), RegistryFileName))
}

func TestDirectory_Paths(t *testing.T) {
	t.Run("default path is in the temp directory", func(t *testing.T) {
		t.Setenv(RegistryEnv, "")
		path := DefaultPath()
		assert.Contains(t, path, RegistryFileName)
		assert.Equal(t, path, NewDirectory("").Path())
	})

	t.Run("environment overrides the path", func(t *testing.T) {
		custom := filepath.Join(t.TempDir(), "custom.json")
		t.Setenv(RegistryEnv, custom)
		assert.Equal(t, custom, DefaultPath())
	})
}

func TestDirectory_Lifecycle(t *testing.T) {
	t.Run("register and discover service", func(t *testing.T) {
		d := newTestDirectory(t)
		require.NoError(t, d.Register("svc", "tcp://localhost:55555", 55555))

		info, err := d.Discover(context.Background(), "svc", time.Second)
		require.NoError(t, err)
		assert.Equal(t, "tcp://localhost:55555", info.Endpoint)
		assert.Equal(t, 55555, info.Port)
		assert.Equal(t, os.Getpid(), info.PID)
	})

	t.Run("discover non-existent service", func(t *testing.T) {
		d := newTestDirectory(t)
		start := time.Now()
		_, err := d.Discover(context.Background(), "missing", 200*time.Millisecond)
		assert.ErrorIs(t, err, ErrServiceNotFound)
		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	})

	t.Run("discover waits for late registration", func(t *testing.T) {
		d := newTestDirectory(t)
		go func() {
			time.Sleep(150 * time.Millisecond)
			_ = d.Register("late", "tcp://localhost:6000", 6000)
		}()

		info, err := d.Discover(context.Background(), "late", 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 6000, info.Port)
	})

	t.Run("discover honours the context", func(t *testing.T) {
		d := newTestDirectory(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := d.Discover(ctx, "svc", 5*time.Second)
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("unregister service", func(t *testing.T) {
		d := newTestDirectory(t)
		require.NoError(t, d.Register("svc", "tcp://localhost:55554", 55554))
		require.NoError(t, d.Unregister("svc"))
		require.NoError(t, d.Unregister("svc"))

		_, err := d.Lookup("svc")
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("dead processes are cleaned up", func(t *testing.T) {
		d := newTestDirectory(t)
		services := map[string]ServiceInfo{
			"dead": {Endpoint: "tcp://localhost:7000", Port: 7000, PID: -1},
		}
		d.mu.Lock()
		require.NoError(t, d.save(services))
		d.mu.Unlock()

		_, err := d.Lookup("dead")
		assert.ErrorIs(t, err, ErrServiceNotFound)

		list, err := d.List()
		require.NoError(t, err)
		assert.NotContains(t, list, "dead")
	})

	t.Run("list skips and removes dead processes", func(t *testing.T) {
		d := newTestDirectory(t)
		require.NoError(t, d.Register("live", "tcp://localhost:7004", 7004))

		d.mu.Lock()
		services, err := d.load()
		require.NoError(t, err)
		services["gone"] = ServiceInfo{Endpoint: "tcp://localhost:7005", Port: 7005, PID: -1}
		require.NoError(t, d.save(services))
		d.mu.Unlock()

		list, err := d.List()
		require.NoError(t, err)
		assert.Contains(t, list, "live")
		assert.NotContains(t, list, "gone")

		d.mu.Lock()
		stored, err := d.load()
		d.mu.Unlock()
		require.NoError(t, err)
		assert.NotContains(t, stored, "gone")
	})

	t.Run("list and clear", func(t *testing.T) {
		d := newTestDirectory(t)
		require.NoError(t, d.Register("a", "tcp://localhost:7001", 7001))
		require.NoError(t, d.Register("b", "tcp://localhost:7002", 7002))

		list, err := d.List()
		require.NoError(t, err)
		assert.Len(t, list, 2)

		require.NoError(t, d.Clear())
		list, err = d.List()
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("two directories share one file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), RegistryFileName)
		d1 := NewDirectory(path)
		d2 := NewDirectory(path)

		require.NoError(t, d1.Register("shared", "tcp://localhost:7003", 7003))
		info, err := d2.Lookup("shared")
		require.NoError(t, err)
		assert.Equal(t, 7003, info.Port)
	})

	t.Run("corrupt file is reported", func(t *testing.T) {
		d := newTestDirectory(t)
		require.NoError(t, os.WriteFile(d.Path(), []byte("{not json"), 0644))
		_, err := d.List()
		assert.Error(t, err)
	})

	t.Run("empty service id is rejected", func(t *testing.T) {
		d := newTestDirectory(t)
		assert.Error(t, d.Register("", "tcp://localhost:1", 1))
	})
}

func TestPorts(t *testing.T) {
	t.Run("validate port range", func(t *testing.T) {
		assert.NoError(t, ValidatePort(1024))
		assert.NoError(t, ValidatePort(65535))
		assert.Error(t, ValidatePort(80))
		assert.Error(t, ValidatePort(70000))
	})

	t.Run("free port is usable", func(t *testing.T) {
		port, err := findFreePort()
		require.NoError(t, err)
		assert.Greater(t, port, 0)
	})

	t.Run("endpoint port parsing", func(t *testing.T) {
		port, err := endpointPort("tcp://*:5555")
		require.NoError(t, err)
		assert.Equal(t, 5555, port)

		port, err = endpointPort("ipc:///tmp/x")
		require.NoError(t, err)
		assert.Equal(t, 0, port)

		_, err = endpointPort("tcp://localhost")
		assert.Error(t, err)
	})

	t.Run("wildcard endpoints dial localhost", func(t *testing.T) {
		assert.Equal(t, "tcp://localhost:5555", dialEndpoint("tcp://*:5555"))
		assert.Equal(t, "tcp://localhost:5555", dialEndpoint("tcp://0.0.0.0:5555"))
		assert.Equal(t, "tcp://127.0.0.1:5555", dialEndpoint("tcp://127.0.0.1:5555"))
	})
}
