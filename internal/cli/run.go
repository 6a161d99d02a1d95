package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc/runs"
)

// NewRunCmd wires the run command to stream events from the panel.
func NewRunCmd(opts *Options) *cobra.Command {
	var addr string
	var transport string
	var runID string

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Trigger a run on the control panel and stream its progress",
		Long:  "Trigger a run on the control panel and stream its progress. Without a request the panel runs its saved request.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if transport == "" {
				transport = cfg.Server.Transport
			}

			req := rpc.RunRequest{RunID: runID}
			if len(args) == 1 {
				req.Request = strings.TrimSpace(args[0])
				if req.Request == "" {
					return fmt.Errorf("request cannot be empty")
				}
			}

			baseURL := panelURL(addr)
			switch strings.ToLower(strings.TrimSpace(transport)) {
			case "ndjson":
				return runNDJSON(cmd.Context(), cmd.OutOrStdout(), http.DefaultClient, baseURL+"/api/run", req)
			default:
				return runConnect(cmd.Context(), cmd.OutOrStdout(), buildH2CClient(), baseURL, req)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Panel address (default: server.addr)")
	cmd.Flags().StringVar(&transport, "transport", "", "connect or ndjson (default: server.transport)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (default: random)")
	return cmd
}

func panelURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, out io.Writer, client *http.Client, url string, reqBody rpc.RunRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("panel returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var evt rpc.RunEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(out, evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runConnect(ctx context.Context, out io.Writer, client connect.HTTPClient, baseURL string, reqBody rpc.RunRequest) error {
	stream, err := runs.NewConnectClient(client, baseURL).CallServerStream(ctx, connect.NewRequest(&reqBody))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := renderEvent(out, *stream.Msg()); err != nil {
			return err
		}
	}
	return stream.Err()
}

func buildH2CClient() *http.Client {
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
