package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/providers"
)

// Poller routes status checks back to the adapter that owns a job id. The id
// shape is the only routing key; there is no job table to consult.
type Poller struct {
	animators []providers.Animator
	group     singleflight.Group
	logger    infra.Logger
}

// NewPoller wires the ownership chain. Order matters: the most distinctive
// id shapes must come before the loose ones.
func NewPoller(animators []providers.Animator, logger infra.Logger) *Poller {
	return &Poller{animators: animators, logger: logger}
}

// Owner returns the adapter whose id shape matches.
func (p *Poller) Owner(jobID string) (providers.Animator, bool) {
	for _, a := range p.animators {
		if a.Owns(jobID) {
			return a, true
		}
	}
	return nil, false
}

// Provider names the adapter that owns a job id, or empty when none match.
func (p *Poller) Provider(jobID string) string {
	if a, ok := p.Owner(jobID); ok {
		return a.Name()
	}
	return ""
}

// Poll fetches the normalized status of one job. Concurrent polls for the
// same id collapse into a single vendor call.
func (p *Poller) Poll(ctx context.Context, jobID string) (domain.JobStatus, error) {
	adapter, ok := p.Owner(jobID)
	if !ok {
		return domain.JobStatus{}, fmt.Errorf("%w: unrecognized job id", domain.ErrValidation)
	}

	v, err, shared := p.group.Do(jobID, func() (any, error) {
		status, err := adapter.Poll(ctx, jobID)
		if err != nil {
			return domain.JobStatus{}, err
		}
		return status, nil
	})
	if err != nil {
		return domain.JobStatus{}, err
	}
	status := v.(domain.JobStatus)
	if shared {
		p.logger.Debug().Str("job_id", jobID).Msg("poll shared an in-flight vendor call")
	}
	if status.State == domain.JobFailed {
		p.logger.Info().
			Str("job_id", jobID).
			Str("provider", adapter.Name()).
			Str("reason", string(status.Reason)).
			Str("detail", status.ErrorDetail).
			Msg("job reached failed state")
	}
	return status, nil
}

// WaitOptions bounds a blocking Wait loop.
type WaitOptions struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultWaitOptions polls every five seconds for up to ten minutes.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Interval: 5 * time.Second, MaxAttempts: 120}
}

// Wait is caller-side sugar over Poll: it blocks until the job reaches a
// terminal state or the attempt ceiling runs out. The job keeps running at
// the vendor either way; hitting the ceiling only stops watching it.
func (p *Poller) Wait(ctx context.Context, jobID string, opts WaitOptions) (domain.JobStatus, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultWaitOptions().Interval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultWaitOptions().MaxAttempts
	}

	var last domain.JobStatus
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		status, err := p.Poll(ctx, jobID)
		if err != nil {
			return last, err
		}
		last = status
		if status.State.Terminal() {
			return status, nil
		}
		if err := sleepCtx(ctx, opts.Interval); err != nil {
			return last, err
		}
	}
	return last, fmt.Errorf("%w: job still running after %d polls", domain.ErrTransient, opts.MaxAttempts)
}
