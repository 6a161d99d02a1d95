package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// Generator produces text for one role call. *llm.Policy implements it.
type Generator interface {
	Generate(ctx context.Context, call llm.Call) (string, error)
}

// Store is the subset of the artifact writer the sequencer needs.
type Store interface {
	Clear(all bool) error
	Safe(name string) bool
	Write(name string, content any) error
	WriteFiles(files map[string]string) ([]string, error)
	WritePRD(prd string) error
	WriteQALog(passed bool, feedback string) error
	WriteMetrics(m artifacts.RunMetrics) error
	AppendDebug(format string, args ...any) error
}

// Metrics is implemented by *observability.Metrics.
type Metrics interface {
	RecordRun(outcome string, iterations int, duration time.Duration)
	ObserveStep(step string, duration time.Duration)
}

// ClearMode selects what is removed from the output directory before a run.
type ClearMode string

const (
	ClearCore ClearMode = "core"
	ClearAll  ClearMode = "all"
	ClearNone ClearMode = "none"
)

// Options tunes a Sequencer.
type Options struct {
	MaxIterations   int
	StrictCodeRetry bool
	Clear           ClearMode
	Reporter        Reporter
	Logger          *zap.Logger
	Metrics         Metrics
}

// OptionsFromConfig maps pipeline settings onto Options.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	mode := ClearMode(strings.ToLower(strings.TrimSpace(cfg.ClearOutputs)))
	if mode == "" {
		mode = ClearCore
	}
	return Options{
		MaxIterations:   cfg.MaxIterations,
		StrictCodeRetry: cfg.StrictCodeRetry,
		Clear:           mode,
	}
}

// RolesFromConfig resolves the provider pair of every role.
func RolesFromConfig(cfg *config.Config) (Roles, error) {
	var roles Roles
	for _, r := range []struct {
		name string
		dst  *RoleProviders
	}{
		{config.RolePlan, &roles.Plan},
		{config.RoleCode, &roles.Code},
		{config.RoleQA, &roles.QA},
	} {
		primary, secondary, err := cfg.Resolve(r.name)
		if err != nil {
			return Roles{}, err
		}
		*r.dst = RoleProviders{Primary: primary, Secondary: secondary}
	}
	return roles, nil
}

// Sequencer runs PLAN, then CODE and QA until QA passes or the iteration cap
// is reached. It issues one blocking model call at a time.
type Sequencer struct {
	gen   Generator
	roles Roles
	store Store
	opts  Options
}

// New builds a Sequencer. MaxIterations is clamped to [1, config.MaxIterations].
func New(gen Generator, roles Roles, store Store, opts Options) *Sequencer {
	if opts.MaxIterations < 1 || opts.MaxIterations > config.MaxIterations {
		opts.MaxIterations = config.MaxIterations
	}
	if opts.Clear == "" {
		opts.Clear = ClearCore
	}
	if opts.Reporter == nil {
		opts.Reporter = NullReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Sequencer{gen: gen, roles: roles, store: store, opts: opts}
}

// WithReporter returns a copy of s that reports to r.
func (s *Sequencer) WithReporter(r Reporter) *Sequencer {
	c := *s
	if r == nil {
		r = NullReporter{}
	}
	c.opts.Reporter = r
	return &c
}

// Run executes one full pipeline for request. runID may be empty, in which
// case a random one is assigned. Only a PLAN failure or context cancellation
// returns an error; every other failure degrades and the run reaches DONE.
func (s *Sequencer) Run(ctx context.Context, runID, request string) (Summary, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	start := time.Now()
	log := s.opts.Logger.With(zap.String("run_id", runID))
	r := &run{Sequencer: s, id: runID, log: log}

	if strings.TrimSpace(request) == "" {
		return Summary{}, errors.New("request is required")
	}

	if s.opts.Clear != ClearNone {
		if err := s.store.Clear(s.opts.Clear == ClearAll); err != nil {
			log.Warn("clearing previous artifacts failed", zap.Error(err))
		}
	}

	state := State{Request: request}

	prd, err := r.plan(ctx, request)
	if err != nil {
		r.emit(Event{Type: EventError, Step: StepPlan, Message: err.Error()})
		s.recordRun("error", 0, start)
		return Summary{RunID: runID}, err
	}
	state.PRD = prd

	var scaffolds []bool
	for state.Iteration = 1; ; state.Iteration++ {
		if err := ctx.Err(); err != nil {
			r.emit(Event{Type: EventError, Step: StepCode, Iteration: state.Iteration, Message: err.Error()})
			s.recordRun("cancelled", state.Iteration-1, start)
			return Summary{RunID: runID, Iterations: state.Iteration - 1, PRD: prd}, fmt.Errorf("pipeline cancelled: %w", err)
		}

		var previous *QAResult
		if state.TestsPassed != nil {
			previous = &QAResult{TestsPassed: *state.TestsPassed, Feedback: state.Feedback}
		}
		files, scaffold := r.code(ctx, state.Iteration, prd, previous)
		state.Files = files
		scaffolds = append(scaffolds, scaffold)

		verdict := r.qa(ctx, state.Iteration, prd, files)
		passed := verdict.TestsPassed
		state.TestsPassed = &passed
		state.Feedback = verdict.Feedback

		if passed || state.Iteration >= s.opts.MaxIterations {
			break
		}
		log.Info("qa failed, iterating",
			zap.Int("iteration", state.Iteration),
			zap.String("feedback", truncate(verdict.Feedback, 200)),
		)
	}

	written, err := s.store.WriteFiles(state.Files)
	if err != nil {
		log.Error("writing generated files failed", zap.Error(err))
		r.debug("write files: %v", err)
	}
	if err := s.store.WriteMetrics(artifacts.RunMetrics{
		Iterations:     state.Iteration,
		TestsPassed:    *state.TestsPassed,
		GeneratedFiles: written,
	}); err != nil {
		log.Warn("writing metrics failed", zap.Error(err))
	}

	summary := Summary{
		RunID:          runID,
		Iterations:     state.Iteration,
		TestsPassed:    *state.TestsPassed,
		Feedback:       state.Feedback,
		PRD:            state.PRD,
		Files:          state.Files,
		GeneratedFiles: written,
		ScaffoldUsed:   scaffolds,
		Duration:       time.Since(start),
	}

	outcome := "failed_qa"
	if summary.TestsPassed {
		outcome = "passed"
	}
	s.recordRun(outcome, summary.Iterations, start)
	log.Info("pipeline finished",
		zap.Int("iterations", summary.Iterations),
		zap.Bool("tests_passed", summary.TestsPassed),
		zap.Strings("files", written),
		zap.Duration("duration", summary.Duration),
	)
	r.emit(Event{
		Type:        EventDone,
		Step:        StepDone,
		Iteration:   summary.Iterations,
		TestsPassed: &summary.TestsPassed,
		Files:       written,
		Message:     summary.Feedback,
	})
	return summary, nil
}

func (s *Sequencer) recordRun(outcome string, iterations int, start time.Time) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRun(outcome, iterations, time.Since(start))
	}
}

// run carries per-run context for the step helpers.
type run struct {
	*Sequencer
	id  string
	log *zap.Logger
}

func (r *run) emit(e Event) {
	e.RunID = r.id
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.opts.Reporter.Event(e)
}

func (r *run) debug(format string, args ...any) {
	if err := r.store.AppendDebug(format, args...); err != nil {
		r.log.Warn("debug log append failed", zap.Error(err))
	}
}

func (r *run) observe(step Step, start time.Time) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveStep(string(step), time.Since(start))
	}
}

func (r *run) plan(ctx context.Context, request string) (string, error) {
	start := time.Now()
	r.emit(Event{Type: EventStepStarted, Step: StepPlan})
	defer r.observe(StepPlan, start)

	prd, err := r.gen.Generate(ctx, llm.Call{
		Role:      config.RolePlan,
		Primary:   r.roles.Plan.Primary,
		Secondary: r.roles.Plan.Secondary,
		Messages:  planMessages(request),
	})
	if err != nil {
		r.log.Error("plan step failed", zap.Error(err))
		r.debug("plan step failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrPlanFailed, err)
	}

	if err := r.store.WritePRD(prd); err != nil {
		r.log.Warn("writing PRD failed", zap.Error(err))
	}
	r.emit(Event{Type: EventStepFinished, Step: StepPlan, Message: fmt.Sprintf("PRD ready (%d chars)", len(prd))})
	return prd, nil
}

// code returns the FileMap for this iteration and whether it is the scaffold.
func (r *run) code(ctx context.Context, iteration int, prd string, previous *QAResult) (FileMap, bool) {
	start := time.Now()
	r.emit(Event{Type: EventStepStarted, Step: StepCode, Iteration: iteration})
	defer r.observe(StepCode, start)

	call := llm.Call{
		Role:      config.RoleCode,
		Primary:   r.roles.Code.Primary,
		Secondary: r.roles.Code.Secondary,
		Messages:  codeMessages(prd, previous, false),
	}
	raw, err := r.gen.Generate(ctx, call)
	if err != nil && r.opts.StrictCodeRetry && ctx.Err() == nil {
		r.log.Warn("code step failed, retrying with strict instructions", zap.Int("iteration", iteration), zap.Error(err))
		call.Messages = codeMessages(prd, previous, true)
		raw, err = r.gen.Generate(ctx, call)
	}
	if err != nil {
		r.debug("code step failed (iteration %d): %v", iteration, err)
		raw = ""
	}

	debugPayload := raw
	if strings.TrimSpace(debugPayload) == "" {
		debugPayload = "<empty response from coder model>"
	}
	if werr := r.store.Write(artifacts.RawCoderFile, debugPayload); werr != nil {
		r.log.Warn("writing raw coder output failed", zap.Error(werr))
	}

	files, perr := ParseFileMap(raw, r.store.Safe)
	if perr != nil {
		cause := perr
		if err != nil {
			cause = err
		}
		r.log.Warn("using fallback scaffold", zap.Int("iteration", iteration), zap.Error(cause))
		if err == nil {
			r.debug("coder output unusable (iteration %d): %v", iteration, perr)
		}
		files = Scaffold()
		r.emit(Event{Type: EventScaffoldUsed, Step: StepCode, Iteration: iteration, Message: cause.Error(), Files: files.Names()})
		return files, true
	}

	r.emit(Event{Type: EventStepFinished, Step: StepCode, Iteration: iteration, Files: files.Names()})
	return files, false
}

func (r *run) qa(ctx context.Context, iteration int, prd string, files FileMap) QAResult {
	start := time.Now()
	r.emit(Event{Type: EventStepStarted, Step: StepQA, Iteration: iteration})
	defer r.observe(StepQA, start)

	raw, err := r.gen.Generate(ctx, llm.Call{
		Role:      config.RoleQA,
		Primary:   r.roles.QA.Primary,
		Secondary: r.roles.QA.Secondary,
		Messages:  qaMessages(prd, files),
	})

	var verdict QAResult
	if err != nil {
		r.debug("qa step failed (iteration %d): %v", iteration, err)
		verdict = QAResult{TestsPassed: false, Feedback: "QA provider unavailable: " + err.Error()}
	} else {
		if werr := r.store.Write(artifacts.RawQAFile, raw); werr != nil {
			r.log.Warn("writing raw qa output failed", zap.Error(werr))
		}
		verdict = ParseQA(raw)
	}

	if err := r.store.WriteQALog(verdict.TestsPassed, verdict.Feedback); err != nil {
		r.log.Warn("writing qa log failed", zap.Error(err))
	}
	passed := verdict.TestsPassed
	r.emit(Event{Type: EventQAResult, Step: StepQA, Iteration: iteration, TestsPassed: &passed, Message: verdict.Feedback})
	return verdict
}
