package domain

import "time"

// RunState is one state in the Batch Run Supervisor's state machine.
type RunState string

const (
	RunSelecting                RunState = "selecting"
	RunGeneratingTrack          RunState = "generating_track"
	RunSelectingVideo           RunState = "selecting_video"
	RunAwaitingInitialStatus    RunState = "awaiting_initial_status"
	RunAwaitingApprovalDispatch RunState = "awaiting_approval_dispatch"
	RunPollingApproval          RunState = "polling_approval"
	RunApproved                 RunState = "approved"
	RunSaving                   RunState = "saving"
	RunReleasing                RunState = "releasing"
	RunDone                     RunState = "done"
	RunRejected                 RunState = "rejected"
	RunFailedGeneration         RunState = "failed_generation"
	RunFailedDispatch           RunState = "failed_dispatch"
	RunTimedOut                 RunState = "timed_out"
)

// Terminal reports whether state has no further supervisor transitions.
func (s RunState) Terminal() bool {
	switch s {
	case RunDone, RunRejected, RunFailedGeneration, RunFailedDispatch, RunTimedOut:
		return true
	default:
		return false
	}
}

// RunStatus is the batch supervisor's transient, durable-on-disk state
// for one run, keyed by RunID. It is the coordination point for
// restart-resume and for the approval channel's writeback of the human
// approver's decision.
type RunStatus struct {
	RunID            string    `json:"run_id"`
	PersonaID        string    `json:"persona_id"`
	TrackRef         string    `json:"track_ref,omitempty"`
	VideoRef         []string  `json:"video_ref,omitempty"`
	Status           RunState  `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdated      time.Time `json:"last_updated"`
	ApprovalDeadline time.Time `json:"approval_deadline,omitempty"`
	Message          string    `json:"message,omitempty"`
}
