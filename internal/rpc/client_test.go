package rpc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencausal/latticegraphd/internal/store/memory"
)

func startUnixServer(t *testing.T) (*Client, *Server) {
	t.Helper()
	s := NewServer(memory.New(), nil)
	socketPath := filepath.Join(t.TempDir(), "latticegraphd.sock")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		go func() { close(ready) }()
		_ = s.Serve(ctx, socketPath)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)

	c, err := Dial(socketPath, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestClient_GetLiveViewUnknownIncidentReturnsErrNotFound(t *testing.T) {
	c, _ := startUnixServer(t)

	_, err := c.GetLiveView("never-created")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrTransient))
	require.False(t, errors.Is(err, ErrFatal))
}

func TestClient_GetTombstonesUnknownIncidentReturnsErrNotFound(t *testing.T) {
	c, _ := startUnixServer(t)

	_, err := c.GetTombstones("never-created")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_UnknownOperationIsUnclassified(t *testing.T) {
	c, _ := startUnixServer(t)

	var data HealthData
	err := c.call("nonsense", struct{}{}, &data)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrTransient))
	require.False(t, errors.Is(err, ErrFatal))
}
