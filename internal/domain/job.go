package domain

import "time"

// PipelineKind selects the generation plan for a request.
type PipelineKind string

const (
	PipelineSingleStepAnimate  PipelineKind = "single_step_animate"
	PipelineComposeThenAnimate PipelineKind = "compose_then_animate"
)

// StepKind identifies one stage inside a pipeline.
type StepKind string

const (
	StepCompose StepKind = "compose"
	StepAnimate StepKind = "animate"
)

// JobState enumerates the normalized job lifecycle.
type JobState string

const (
	JobProcessing JobState = "processing"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the state will never change on further polls.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// FailureReason distinguishes failure subtypes a caller may act on.
type FailureReason string

const (
	ReasonNone                FailureReason = ""
	ReasonModerationRejected  FailureReason = "moderation_rejected"
	ReasonArtifactMissing     FailureReason = "artifact_missing"
	ReasonUnmappedVendorState FailureReason = "unmapped_vendor_state"
)

// JobHandle is the only state that crosses the submit/poll boundary. JobID is
// the provider's native identifier and is self-describing: the poller recovers
// the owning adapter from the id's shape alone, so the service keeps no job
// table.
type JobHandle struct {
	JobID     string    `json:"jobId"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatus is the normalized view over every vendor async model. A terminal
// success always carries a non-empty ArtifactURL; a success shape with no
// artifact is reported as a failure with ReasonArtifactMissing instead.
type JobStatus struct {
	State       JobState
	ArtifactURL string
	ErrorDetail string
	Reason      FailureReason
}
