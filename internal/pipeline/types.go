package pipeline

import (
	"errors"
	"time"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// ErrPlanFailed is returned when no provider could produce a PRD.
var ErrPlanFailed = errors.New("plan step failed")

// Step names a sequencer state.
type Step string

const (
	StepPlan Step = "PLAN"
	StepCode Step = "CODE"
	StepQA   Step = "QA"
	StepDone Step = "DONE"
)

// FileMap maps relative filenames to file contents.
type FileMap map[string]string

// Names returns the filenames in sorted order.
func (f FileMap) Names() []string {
	return sortedKeys(f)
}

// QAResult is the verdict of one QA pass.
type QAResult struct {
	TestsPassed bool   `json:"tests_passed"`
	Feedback    string `json:"feedback"`
}

// State is the data threaded through PLAN, CODE and QA. Only the sequencer
// mutates it and every field is replaced wholesale.
type State struct {
	Request     string
	PRD         string
	Files       FileMap
	TestsPassed *bool
	Feedback    string
	Iteration   int
}

// RoleProviders is the resolved provider pair for one role.
type RoleProviders struct {
	Primary   llm.ProviderConfig
	Secondary *llm.ProviderConfig
}

// Roles holds the provider pairs for every pipeline role.
type Roles struct {
	Plan RoleProviders
	Code RoleProviders
	QA   RoleProviders
}

// Summary describes a finished run.
type Summary struct {
	RunID          string
	Iterations     int
	TestsPassed    bool
	Feedback       string
	PRD            string
	Files          FileMap
	GeneratedFiles []string
	// ScaffoldUsed has one entry per iteration.
	ScaffoldUsed []bool
	Duration     time.Duration
}
