package connectjson

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

func TestCodecRoundTripsRunRequest(t *testing.T) {
	var c Codec
	require.Equal(t, "json", c.Name())

	data, err := c.Marshal(&rpc.RunRequest{RunID: "r1", Request: "counter"})
	require.NoError(t, err)
	require.JSONEq(t, `{"run_id":"r1","request":"counter"}`, string(data))

	var got rpc.RunRequest
	require.NoError(t, c.Unmarshal(data, &got))
	require.Equal(t, rpc.RunRequest{RunID: "r1", Request: "counter"}, got)
}

func TestCodecEmptyPayload(t *testing.T) {
	got := rpc.RunRequest{}
	require.NoError(t, Codec{}.Unmarshal([]byte("  "), &got))
	require.Equal(t, rpc.RunRequest{}, got)

	require.Error(t, Codec{}.Unmarshal([]byte("{"), &got))
}
