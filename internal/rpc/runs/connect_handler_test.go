package runs

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bufbuild/connect-go"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

func startConnectServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	path, handler := NewConnectHandler(runner, nil)
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open listener in sandbox: %v", err)
	}

	server := httptest.NewUnstartedServer(h2c.NewHandler(mux, &http2.Server{}))
	server.Listener = ln
	server.Start()
	t.Cleanup(server.Close)
	return server
}

func h2cClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func TestConnectHandlerStreamsEvents(t *testing.T) {
	runner := newStubRunner(&stubSequencer{}, nil)
	server := startConnectServer(t, runner)

	client := NewConnectClient(h2cClient(), server.URL)
	stream, err := client.CallServerStream(context.Background(), connect.NewRequest(&rpc.RunRequest{RunID: "conn-1", Request: "counter"}))
	require.NoError(t, err)

	var types []string
	for stream.Receive() {
		ev := stream.Msg()
		require.Equal(t, "conn-1", ev.RunID)
		types = append(types, ev.Type)
	}
	require.NoError(t, stream.Err())
	require.NoError(t, stream.Close())
	runner.Wait()
	require.Equal(t, []string{rpc.EventStepStarted, rpc.EventDone}, types)
}

func TestConnectHandlerBusy(t *testing.T) {
	busy := runnerFunc(func(context.Context, rpc.RunRequest) (<-chan rpc.RunEvent, error) { return nil, ErrBusy })
	server := startConnectServer(t, busy)

	client := NewConnectClient(h2cClient(), server.URL)
	stream, err := client.CallServerStream(context.Background(), connect.NewRequest(&rpc.RunRequest{Request: "x"}))
	if err == nil {
		require.False(t, stream.Receive())
		err = stream.Err()
		_ = stream.Close()
	}

	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, connect.CodeResourceExhausted, cerr.Code())
}
