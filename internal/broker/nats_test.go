package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartEmbedded(t *testing.T) {
	b, err := Start(Config{Port: -1, StoreDir: t.TempDir()})
	require.NoError(t, err)
	defer b.Shutdown()

	assert.True(t, b.Embedded())
	assert.True(t, b.Conn().IsConnected())
	assert.NotEmpty(t, b.URL())

	js, err := b.Conn().JetStream()
	require.NoError(t, err)
	_, err = js.AccountInfo()
	require.NoError(t, err, "JetStream is enabled")

	h := b.Health()
	assert.Equal(t, "running", h.Status)
	assert.True(t, h.JetStream)
}

func TestStartExternal(t *testing.T) {
	server, err := Start(Config{Port: -1, StoreDir: t.TempDir()})
	require.NoError(t, err)
	defer server.Shutdown()

	client, err := Start(Config{URL: server.URL(), Name: "client"})
	require.NoError(t, err)
	assert.False(t, client.Embedded())
	assert.Equal(t, "connected", client.Health().Status)

	client.Shutdown()
	assert.Equal(t, "stopped", client.Health().Status)
}

func TestStartRequiresStoreDir(t *testing.T) {
	_, err := Start(Config{Port: -1})
	assert.Error(t, err)
}

func TestStartExternalUnreachable(t *testing.T) {
	_, err := Start(Config{URL: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}
