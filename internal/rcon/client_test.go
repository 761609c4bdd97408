package rcon

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gorcon/rcon"
	"github.com/gorcon/rcon/rcontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *rcontest.Server {
	t.Helper()
	server := rcontest.NewServer(
		rcontest.SetSettings(rcontest.Settings{Password: "secret"}),
		rcontest.SetCommandHandler(func(c *rcontest.Context) {
			body := "Unknown command"
			switch c.Request().Body() {
			case "list":
				body = "§6There are §c2§6 of a max of §c20§6 players online: §rSteve, Alex"
			case "save-off":
				body = "Automatic saving is now disabled"
			}
			rcon.NewPacket(rcon.SERVERDATA_RESPONSE_VALUE, c.Request().ID, body).WriteTo(c.Conn())
		}),
	)
	t.Cleanup(server.Close)
	return server
}

func clientFor(t *testing.T, addr, password string) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := net.LookupPort("tcp", portStr)
	require.NoError(t, err)
	return NewClient(host, port, password, time.Second)
}

func TestClient_Execute(t *testing.T) {
	server := newTestServer(t)
	client := clientFor(t, server.Addr(), "secret")

	resp, err := client.Execute(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, "There are 2 of a max of 20 players online: Steve, Alex", resp)

	resp, err = client.Execute(context.Background(), "save-off")
	require.NoError(t, err)
	assert.Equal(t, "Automatic saving is now disabled", resp)
}

func TestClient_Execute_WrongPassword(t *testing.T) {
	server := newTestServer(t)
	client := clientFor(t, server.Addr(), "nope")

	_, err := client.Execute(context.Background(), "list")
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "auth", connErr.Op)
}

func TestClient_Execute_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := clientFor(t, addr, "secret")
	_, err = client.Execute(context.Background(), "list")
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.Addr)
}

func TestClient_Execute_CancelledContext(t *testing.T) {
	server := newTestServer(t)
	client := clientFor(t, server.Addr(), "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Execute(ctx, "list")
	require.Error(t, err)
	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestClient_Execute_ClosesSessionWhenContextEnds(t *testing.T) {
	closed := make(chan struct{})
	server := rcontest.NewServer(
		rcontest.SetSettings(rcontest.Settings{Password: "secret"}),
		rcontest.SetCommandHandler(func(c *rcontest.Context) {
			// Never answer; return once the client hangs up.
			io.Copy(io.Discard, c.Conn())
			close(closed)
		}),
	)
	t.Cleanup(server.Close)

	host, portStr, err := net.SplitHostPort(server.Addr())
	require.NoError(t, err)
	port, err := net.LookupPort("tcp", portStr)
	require.NoError(t, err)
	client := NewClient(host, port, "secret", 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Execute(ctx, "list")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "timeout", connErr.Op)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after Execute returned")
	}
}

func TestStripFormatting(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Saved the game", want: "Saved the game"},
		{name: "section codes", in: "§aTPS: §r§a20.0", want: "TPS: 20.0"},
		{name: "ansi", in: "\x1b[0;32mDone\x1b[0m", want: "Done"},
		{name: "trailing whitespace", in: "ok\n\n", want: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFormatting(tt.in))
		})
	}
}
