package model

import "time"

// RunState is the publish pipeline state machine. Transitions are strictly
// forward; any failure moves directly to RunStateFailed, which is terminal.
type RunState string

const (
	RunStateIdle               RunState = "idle"
	RunStateScanning           RunState = "scanning"
	RunStateUploading          RunState = "uploading"
	RunStateExtractingMetadata RunState = "extracting_metadata"
	RunStateValidating         RunState = "validating"
	RunStateGeneratingContent  RunState = "generating_content"
	RunStateWriting            RunState = "writing"
	RunStateMarkPublished      RunState = "mark_published"
	RunStateDone               RunState = "done"
	RunStateFailed             RunState = "failed"
)

// Terminal reports whether the state ends the run.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// PublishRun is the persisted record of one publish invocation.
type PublishRun struct {
	ID        string    `json:"id"`
	DraftPath string    `json:"draft_path"`
	Kind      DraftKind `json:"kind"`
	State     RunState  `json:"state"`
	Slug      string    `json:"slug,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
