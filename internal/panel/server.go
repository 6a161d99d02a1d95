package panel

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/observability"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/pipeline"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc/runs"
)

//go:embed templates
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Runner is the run controller behind /api/run. *runs.PipelineRunner implements it.
type Runner interface {
	runs.Runner
	Status() rpc.RunStatus
	Wait()
}

// Server hosts the control panel: request form, run streaming and artifacts.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	runner   Runner
	store    *artifacts.Writer
	requests *RequestStore
	markdown goldmark.Markdown
}

// NewServer wires the pipeline behind a panel instance.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	metrics := observability.NewMetrics()
	seq, store, err := pipeline.Build(cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	requests := NewRequestStore(cfg.Panel.RequestFile, cfg.Pipeline.Request, store)
	return newServer(cfg, logger, metrics, newRunner(cfg, seq, requests, logger), store, requests), nil
}

// newRunner serves runs from seq, bounded by server.run_timeout.
func newRunner(cfg *config.Config, seq *pipeline.Sequencer, requests *RequestStore, logger *zap.Logger) *runs.PipelineRunner {
	return runs.NewPipelineRunner(seq, requests.Load, logger).WithTimeout(cfg.Server.RunTimeout)
}

func newServer(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, runner Runner, store *artifacts.Writer, requests *RequestStore) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		runner:   runner,
		store:    store,
		requests: requests,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Handler returns the panel routes. The Connect procedure is mounted next to
// the NDJSON endpoint; h2c is added unless the transport is ndjson only.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /metrics", s.metricsHandler)
	mux.HandleFunc("GET /api/request", s.getRequestHandler)
	mux.HandleFunc("PUT /api/request", s.putRequestHandler)
	mux.HandleFunc("GET /api/run/status", s.statusHandler)
	mux.Handle("/api/run", runs.NewHandler(s.runner, s.metrics))
	mux.HandleFunc("GET /api/artifacts", s.listArtifactsHandler)
	mux.HandleFunc("GET /api/artifacts/{name...}", s.downloadArtifactHandler)
	mux.HandleFunc("GET /api/prd", s.prdHandler)

	if s.transport() == "ndjson" {
		return mux
	}
	procedure, handler := runs.NewConnectHandler(s.runner, s.metrics)
	mux.Handle(procedure, handler)
	return h2c.NewHandler(mux, &http2.Server{})
}

func (s *Server) transport() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting protoease panel",
			zap.String("addr", s.cfg.Server.Addr),
			zap.String("transport", s.transport()),
			zap.String("output_dir", s.store.Dir()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down protoease panel")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if st := s.runner.Status(); st.Running {
		s.logger.Info("waiting for active run", zap.String("run_id", st.RunID))
		s.runner.Wait()
	}
	return nil
}

type indexData struct {
	Request       string
	ExtraFeatures []string
	Transport     string
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Load()
	if err != nil {
		s.logger.Warn("loading saved request failed", zap.Error(err))
	}
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, indexData{Request: req, ExtraFeatures: ExtraFeatures, Transport: s.transport()}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) getRequestHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rpc.SavedRequest{Request: req})
}

func (s *Server) putRequestHandler(w http.ResponseWriter, r *http.Request) {
	var form rpc.RequestForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	composed, err := ComposeRequest(form)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	backup, err := s.requests.Save(composed)
	if err != nil {
		s.logger.Error("saving request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("request saved", zap.String("backup", backup))
	writeJSON(w, http.StatusOK, rpc.SavedRequest{Request: composed, Backup: backup})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) listArtifactsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	list := rpc.ArtifactList{Files: make([]rpc.Artifact, 0, len(entries))}
	for _, e := range entries {
		list.Files = append(list.Files, rpc.Artifact{Name: e.Name, Size: e.Size, ModTime: e.ModTime})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) downloadArtifactHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.store.Read(name)
	switch {
	case errors.Is(err, artifacts.ErrUnsafePath):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, fs.ErrNotExist):
		http.NotFound(w, r)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(name)}))
	_, _ = w.Write(data)
}

func (s *Server) prdHandler(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.Read(artifacts.PRDFile)
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert(src, &buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
