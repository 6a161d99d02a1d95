package runs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/pipeline"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

// ErrBusy is returned by Start while another run is in flight.
var ErrBusy = errors.New("a run is already in progress")

// Runner starts a pipeline run and yields its streamed events. The channel is
// closed once the run finishes.
type Runner interface {
	Start(ctx context.Context, req rpc.RunRequest) (<-chan rpc.RunEvent, error)
}

// Sequencer is implemented by *pipeline.Sequencer.
type Sequencer interface {
	Run(ctx context.Context, runID, request string) (pipeline.Summary, error)
}

// RequestSource supplies the saved request when a RunRequest carries none.
type RequestSource func() (string, error)

// PipelineRunner serializes runs: at most one pipeline executes at a time.
// A run is detached from the caller's context so a disconnecting client only
// stops receiving events.
type PipelineRunner struct {
	build   func(pipeline.Reporter) Sequencer
	source  RequestSource
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
	runID   string
	wg      sync.WaitGroup
}

// NewPipelineRunner wires a runner around seq. source may be nil.
func NewPipelineRunner(seq *pipeline.Sequencer, source RequestSource, logger *zap.Logger) *PipelineRunner {
	return newPipelineRunner(func(r pipeline.Reporter) Sequencer { return seq.WithReporter(r) }, source, logger)
}

func newPipelineRunner(build func(pipeline.Reporter) Sequencer, source RequestSource, logger *zap.Logger) *PipelineRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineRunner{build: build, source: source, logger: logger}
}

// WithTimeout bounds each run. Zero means no bound.
func (p *PipelineRunner) WithTimeout(d time.Duration) *PipelineRunner {
	p.timeout = d
	return p
}

// Status reports whether a run is active and its id.
func (p *PipelineRunner) Status() rpc.RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rpc.RunStatus{Running: p.running, RunID: p.runID}
}

// Wait blocks until every started run has finished.
func (p *PipelineRunner) Wait() {
	p.wg.Wait()
}

// Start implements Runner.
func (p *PipelineRunner) Start(ctx context.Context, req rpc.RunRequest) (<-chan rpc.RunEvent, error) {
	request := strings.TrimSpace(req.Request)
	if request == "" && p.source != nil {
		saved, err := p.source()
		if err != nil {
			return nil, err
		}
		request = strings.TrimSpace(saved)
	}
	if request == "" {
		return nil, errors.New("request is empty")
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.running = true
	p.runID = runID
	p.wg.Add(1)
	p.mu.Unlock()

	out := make(chan rpc.RunEvent, 16)
	gone := ctx.Done()
	send := func(ev rpc.RunEvent) {
		select {
		case out <- ev:
		case <-gone:
		}
	}

	var terminal bool
	reporter := pipeline.ReporterFunc(func(e pipeline.Event) {
		ev := FromPipeline(e)
		terminal = terminal || ev.Done
		send(ev)
	})

	runCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if p.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, p.timeout)
	}

	go func() {
		defer p.wg.Done()
		defer close(out)
		defer cancel()
		defer p.release()

		log := p.logger.With(zap.String("run_id", runID))
		log.Info("run started")
		sum, err := p.build(reporter).Run(runCtx, runID, request)
		if err != nil {
			log.Warn("run failed", zap.Error(err))
			if !terminal {
				send(rpc.RunEvent{Type: rpc.EventError, RunID: runID, Error: err.Error(), Done: true, Time: time.Now().UTC()})
			}
			return
		}
		log.Info("run finished",
			zap.Int("iterations", sum.Iterations),
			zap.Bool("tests_passed", sum.TestsPassed),
			zap.Duration("duration", sum.Duration))
	}()
	return out, nil
}

func (p *PipelineRunner) release() {
	p.mu.Lock()
	p.running = false
	p.runID = ""
	p.mu.Unlock()
}

// FromPipeline converts a pipeline event to its wire form.
func FromPipeline(e pipeline.Event) rpc.RunEvent {
	ev := rpc.RunEvent{
		Type:        string(e.Type),
		RunID:       e.RunID,
		Step:        string(e.Step),
		Iteration:   e.Iteration,
		Message:     e.Message,
		TestsPassed: e.TestsPassed,
		Files:       e.Files,
		Time:        e.Time,
	}
	switch e.Type {
	case pipeline.EventDone:
		ev.Done = true
	case pipeline.EventError:
		ev.Error = e.Message
		ev.Done = true
	}
	return ev
}
