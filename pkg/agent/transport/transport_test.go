package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGobTransportRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req, err := readFrame(conn)
		if err != nil {
			return
		}

		_ = writeFrame(conn, Envelope{MsgType: req.MsgType, Payload: []byte("pong")})
	}()

	tr := GobTransport{DialTimeout: time.Second}
	resp, err := tr.Call(context.Background(), ln.Addr().String(), Envelope{MsgType: 3, Payload: []byte("ping")})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.MsgType)
	assert.Equal(t, "pong", string(resp.Payload))
}

func TestGobTransportRespectsCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never respond, forcing the caller to hit its deadline.
		time.Sleep(5 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	tr := GobTransport{DialTimeout: time.Second}

	start := time.Now()
	_, err = tr.Call(ctx, ln.Addr().String(), Envelope{MsgType: 1})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
