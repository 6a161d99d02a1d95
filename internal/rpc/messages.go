package rpc

import "time"

// Event types streamed by a run.
const (
	EventStepStarted  = "step_started"
	EventStepFinished = "step_finished"
	EventScaffoldUsed = "scaffold_used"
	EventQAResult     = "qa_result"
	EventDone         = "done"
	EventError        = "error"
)

// RunRequest starts a pipeline run. An empty Request means "use the saved
// request".
type RunRequest struct {
	RunID   string `json:"run_id,omitempty"`
	Request string `json:"request,omitempty"`
}

// RunEvent streams back progress from the panel.
type RunEvent struct {
	Type        string    `json:"type"` // step_started|step_finished|scaffold_used|qa_result|done|error
	RunID       string    `json:"run_id,omitempty"`
	Step        string    `json:"step,omitempty"`
	Iteration   int       `json:"iteration,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	TestsPassed *bool     `json:"tests_passed,omitempty"`
	Files       []string  `json:"files,omitempty"`
	Done        bool      `json:"done,omitempty"`
	Time        time.Time `json:"time"`
}

// RequestForm is the control panel form. Only Request is mandatory.
type RequestForm struct {
	Request      string `json:"request"`
	AppName      string `json:"app_name,omitempty"`
	AccentColor  string `json:"accent_color,omitempty"`
	ExtraFeature string `json:"extra_feature,omitempty"`
	Tone         string `json:"tone,omitempty"`
}

// SavedRequest is returned by GET and PUT /api/request.
type SavedRequest struct {
	Request string `json:"request"`
	Backup  string `json:"backup,omitempty"`
}

// Artifact describes a downloadable file.
type Artifact struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// ArtifactList is returned by GET /api/artifacts.
type ArtifactList struct {
	Files []Artifact `json:"files"`
}

// RunStatus is returned by GET /api/run/status.
type RunStatus struct {
	Running bool   `json:"running"`
	RunID   string `json:"run_id,omitempty"`
}
