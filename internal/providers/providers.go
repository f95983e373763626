// Package providers defines the contracts every vendor adapter satisfies.
// Adapters translate one vendor's request shape, auth scheme, and async model
// into the normalized submit/poll surface; everything vendor-specific stays
// behind these two interfaces.
package providers

import (
	"context"

	"rewrite-moment/internal/domain"
)

// Call is the provider-agnostic input of one adapter invocation.
type Call struct {
	Step        domain.StepKind
	Prompt      domain.PromptSpec
	Image       *domain.ImageBlob
	SecondImage *domain.ImageBlob
	AspectRatio string
	Sliders     domain.Sliders
}

// Animator starts an async video generation and translates the vendor's
// status vocabulary into the normalized one.
//
// Submit returns a handle whose JobID is the vendor's native identifier.
// Poll must be callable with nothing but that id: the id's shape is the only
// routing key, which is what Owns sniffs. Poll returns a non-nil error only
// for transport and infrastructure trouble; a vendor-reported terminal
// failure is a JobFailed status, not an error.
type Animator interface {
	Name() string
	Configured() bool
	Owns(jobID string) bool
	Submit(ctx context.Context, call Call) (domain.JobHandle, error)
	Poll(ctx context.Context, jobID string) (domain.JobStatus, error)
}

// Composer merges subject photos into one staged still. Composition is
// synchronous at the vendor: the artifact comes back in the same call.
type Composer interface {
	Name() string
	Configured() bool
	Compose(ctx context.Context, call Call) (*domain.ImageBlob, error)
}
