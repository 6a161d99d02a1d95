package runs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/pipeline"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

// stubSequencer emits a start event, optionally waits for release, then
// finishes or fails.
type stubSequencer struct {
	reporter pipeline.Reporter
	release  <-chan struct{}
	err      error

	mu       sync.Mutex
	requests []string
	ctxErr   error
}

func (s *stubSequencer) Run(ctx context.Context, runID, request string) (pipeline.Summary, error) {
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()

	s.reporter.Event(pipeline.Event{Type: pipeline.EventStepStarted, RunID: runID, Step: pipeline.StepPlan})
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.ctxErr = ctx.Err()
	s.mu.Unlock()
	if s.err != nil {
		return pipeline.Summary{}, s.err
	}
	passed := true
	s.reporter.Event(pipeline.Event{Type: pipeline.EventDone, RunID: runID, Step: pipeline.StepDone, Iteration: 1, TestsPassed: &passed})
	return pipeline.Summary{RunID: runID, Iterations: 1, TestsPassed: true}, nil
}

func newStubRunner(stub *stubSequencer, source RequestSource) *PipelineRunner {
	return newPipelineRunner(func(r pipeline.Reporter) Sequencer {
		stub.reporter = r
		return stub
	}, source, nil)
}

func drain(events <-chan rpc.RunEvent) []rpc.RunEvent {
	var out []rpc.RunEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRunnerStreamsUntilDone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := newStubRunner(&stubSequencer{}, nil)
	events, err := runner.Start(context.Background(), rpc.RunRequest{RunID: "r1", Request: "counter app"})
	require.NoError(t, err)

	got := drain(events)
	runner.Wait()
	require.Len(t, got, 2)
	require.Equal(t, rpc.EventStepStarted, got[0].Type)
	require.Equal(t, "PLAN", got[0].Step)
	require.Equal(t, rpc.EventDone, got[1].Type)
	require.True(t, got[1].Done)
	require.True(t, *got[1].TestsPassed)
	require.Equal(t, "r1", got[1].RunID)
	require.False(t, runner.Status().Running)
}

func TestRunnerRejectsConcurrentRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	runner := newStubRunner(&stubSequencer{release: release}, nil)

	events, err := runner.Start(context.Background(), rpc.RunRequest{RunID: "first", Request: "a"})
	require.NoError(t, err)
	require.Equal(t, rpc.RunStatus{Running: true, RunID: "first"}, runner.Status())

	_, err = runner.Start(context.Background(), rpc.RunRequest{Request: "b"})
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	drain(events)
	runner.Wait()

	events, err = runner.Start(context.Background(), rpc.RunRequest{Request: "c"})
	require.NoError(t, err)
	drain(events)
	runner.Wait()
}

func TestRunnerUsesSavedRequest(t *testing.T) {
	stub := &stubSequencer{}
	runner := newStubRunner(stub, func() (string, error) { return "  saved request\n", nil })

	events, err := runner.Start(context.Background(), rpc.RunRequest{})
	require.NoError(t, err)
	drain(events)
	runner.Wait()
	require.Equal(t, []string{"saved request"}, stub.requests)
}

func TestRunnerRejectsEmptyRequest(t *testing.T) {
	runner := newStubRunner(&stubSequencer{}, func() (string, error) { return "   ", nil })
	_, err := runner.Start(context.Background(), rpc.RunRequest{})
	require.Error(t, err)
	require.False(t, runner.Status().Running)

	boom := errors.New("unreadable")
	runner = newStubRunner(&stubSequencer{}, func() (string, error) { return "", boom })
	_, err = runner.Start(context.Background(), rpc.RunRequest{})
	require.ErrorIs(t, err, boom)
}

func TestRunnerSurvivesDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	stub := &stubSequencer{release: release}
	runner := newStubRunner(stub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := runner.Start(ctx, rpc.RunRequest{Request: "a"})
	require.NoError(t, err)
	<-events
	cancel()
	close(release)

	// The client is gone; remaining events are dropped and the run completes.
	runner.Wait()
	require.NoError(t, stub.ctxErr)
	require.False(t, runner.Status().Running)
}

func TestRunnerReportsFailure(t *testing.T) {
	runner := newStubRunner(&stubSequencer{err: pipeline.ErrPlanFailed}, nil)
	events, err := runner.Start(context.Background(), rpc.RunRequest{Request: "a"})
	require.NoError(t, err)

	got := drain(events)
	runner.Wait()
	last := got[len(got)-1]
	require.Equal(t, rpc.EventError, last.Type)
	require.True(t, last.Done)
	require.Contains(t, last.Error, "plan step failed")
}

func TestRunnerTimeoutBoundsRun(t *testing.T) {
	release := make(chan struct{})
	stub := &stubSequencer{release: release}
	runner := newStubRunner(stub, nil).WithTimeout(time.Millisecond)

	events, err := runner.Start(context.Background(), rpc.RunRequest{Request: "a"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	close(release)
	drain(events)
	runner.Wait()
	require.ErrorIs(t, stub.ctxErr, context.DeadlineExceeded)
}

// roleGenerator answers every role with a fixed reply.
type roleGenerator map[string]string

func (g roleGenerator) Generate(_ context.Context, call llm.Call) (string, error) {
	return g[call.Role], nil
}

func TestPipelineRunnerDrivesSequencer(t *testing.T) {
	store, err := artifacts.NewWriter(filepath.Join(t.TempDir(), "outputs"), nil)
	require.NoError(t, err)

	gen := roleGenerator{
		config.RolePlan: "# Hello\n",
		config.RoleCode: `{"index.html": "<h1>hi</h1>"}`,
		config.RoleQA:   `{"tests_passed": true, "feedback": "ok"}`,
	}
	seq := pipeline.New(gen, pipeline.Roles{}, store, pipeline.Options{MaxIterations: 2})
	runner := NewPipelineRunner(seq, nil, nil)

	events, err := runner.Start(context.Background(), rpc.RunRequest{Request: "hello page"})
	require.NoError(t, err)
	got := drain(events)
	runner.Wait()

	last := got[len(got)-1]
	require.Equal(t, rpc.EventDone, last.Type)
	require.True(t, *last.TestsPassed)

	html, err := store.Read("index.html")
	require.NoError(t, err)
	require.Equal(t, "<h1>hi</h1>", string(html))
}
