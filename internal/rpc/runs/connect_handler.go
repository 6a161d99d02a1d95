package runs

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/observability"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc/connectjson"
)

const ConnectRunProcedure = "/protoease.v1.PipelineService/Run"

// NewConnectHandler builds a Connect server stream handler for Run.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectRunHandler{runner: runner, metrics: metrics}
	return ConnectRunProcedure, connect.NewServerStreamHandler(ConnectRunProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRunHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectRunHandler) handle(ctx context.Context, req *connect.Request[rpc.RunRequest], stream *connect.ServerStream[rpc.RunEvent]) error {
	events, err := h.runner.Start(ctx, *req.Msg)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			h.metrics.RecordTransportError("connect", "busy")
			return connect.NewError(connect.CodeResourceExhausted, err)
		}
		h.metrics.RecordTransportError("connect", "invalid_run")
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	h.metrics.IncActiveRuns("connect")
	defer h.metrics.DecActiveRuns("connect")

	for ev := range events {
		if err := stream.Send(&ev); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			return err
		}
	}
	return nil
}

// NewConnectClient returns a client for the Run procedure at baseURL.
func NewConnectClient(httpClient connect.HTTPClient, baseURL string) *connect.Client[rpc.RunRequest, rpc.RunEvent] {
	return connect.NewClient[rpc.RunRequest, rpc.RunEvent](httpClient, baseURL+ConnectRunProcedure, connect.WithCodec(connectjson.Codec{}))
}
