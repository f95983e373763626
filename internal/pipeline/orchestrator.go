// Package pipeline runs generation plans across the configured providers.
// The orchestrator owns every retry, fallback, and degrade decision; adapters
// only classify failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/prompt"
	"rewrite-moment/internal/providers"
)

// Policy bounds retries and controls degradation. Zero values are replaced by
// DefaultPolicy at construction.
type Policy struct {
	ComposeMaxAttempts int
	ComposeBackoff     time.Duration
	SubmitMaxAttempts  int
	SubmitBackoff      time.Duration

	// DegradeOnComposeFailure animates the original photo when composition
	// exhausts its retries on retryable failures. Validation, auth, and
	// moderation failures never degrade.
	DegradeOnComposeFailure bool
}

// DefaultPolicy matches production settings.
func DefaultPolicy() Policy {
	return Policy{
		ComposeMaxAttempts:      3,
		ComposeBackoff:          2 * time.Second,
		SubmitMaxAttempts:       3,
		SubmitBackoff:           2 * time.Second,
		DegradeOnComposeFailure: true,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.ComposeMaxAttempts <= 0 {
		p.ComposeMaxAttempts = def.ComposeMaxAttempts
	}
	if p.ComposeBackoff <= 0 {
		p.ComposeBackoff = def.ComposeBackoff
	}
	if p.SubmitMaxAttempts <= 0 {
		p.SubmitMaxAttempts = def.SubmitMaxAttempts
	}
	if p.SubmitBackoff <= 0 {
		p.SubmitBackoff = def.SubmitBackoff
	}
	return p
}

// Orchestrator turns a validated request into a provider job handle.
type Orchestrator struct {
	composers []providers.Composer
	animators []providers.Animator
	policy    Policy
	logger    infra.Logger
	sleep     func(context.Context, time.Duration) error
}

// NewOrchestrator wires the provider chains. Both slices are in priority
// order; unconfigured entries are skipped at run time, not here.
func NewOrchestrator(composers []providers.Composer, animators []providers.Animator, policy Policy, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		composers: composers,
		animators: animators,
		policy:    policy.withDefaults(),
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Submit runs the request's plan and returns the handle of the started video
// job. For the compose-then-animate plan the composed still is fully
// materialized before any animator sees it.
func (o *Orchestrator) Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error) {
	if req.PrimaryImage == nil || len(req.PrimaryImage.Bytes) == 0 {
		return domain.JobHandle{}, fmt.Errorf("%w: primary image is required", domain.ErrValidation)
	}

	animateImage := req.PrimaryImage
	if req.Kind() == domain.PipelineComposeThenAnimate {
		composed, err := o.compose(ctx, req)
		switch {
		case err == nil:
			animateImage = composed
		case errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrAuth),
			errors.Is(err, domain.ErrModerationRejected),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return domain.JobHandle{}, err
		case o.policy.DegradeOnComposeFailure:
			o.logger.Warn().Err(err).
				Bool("degraded", true).
				Int("compose_attempts", o.policy.ComposeMaxAttempts).
				Msg("compose failed after retries, animating the original photo")
		default:
			return domain.JobHandle{}, err
		}
	}

	return o.animate(ctx, req, animateImage)
}

func (o *Orchestrator) compose(ctx context.Context, req domain.GenerationRequest) (*domain.ImageBlob, error) {
	spec := prompt.Build(req.Creative, domain.StepCompose, req.Subjects())
	call := providers.Call{
		Step:        domain.StepCompose,
		Prompt:      spec,
		Image:       req.PrimaryImage,
		SecondImage: req.SecondaryImage,
		AspectRatio: req.Creative.AspectRatio,
		Sliders:     req.Creative.Sliders,
	}

	var lastErr error
	for _, composer := range o.composers {
		if !composer.Configured() {
			o.logger.Debug().Str("provider", composer.Name()).Msg("compose provider not configured, skipping")
			continue
		}
		for attempt := 1; attempt <= o.policy.ComposeMaxAttempts; attempt++ {
			blob, err := composer.Compose(ctx, call)
			if err == nil {
				o.logger.Info().
					Str("provider", composer.Name()).
					Int("attempt", attempt).
					Int("bytes", len(blob.Bytes)).
					Msg("compose step succeeded")
				return blob, nil
			}
			lastErr = err

			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrModerationRejected) {
				return nil, err
			}
			if errors.Is(err, domain.ErrAuth) {
				o.logger.Error().Err(err).Str("provider", composer.Name()).Msg("compose provider rejected credentials")
				break
			}
			o.logger.Warn().Err(err).
				Str("provider", composer.Name()).
				Int("attempt", attempt).
				Msg("compose attempt failed")
			if attempt < o.policy.ComposeMaxAttempts {
				if err := o.sleep(ctx, o.policy.ComposeBackoff); err != nil {
					return nil, err
				}
			}
		}
	}

	if lastErr == nil {
		return nil, &domain.ProviderError{Provider: "compose", Kind: domain.ErrAuth, Detail: "no compose provider configured"}
	}
	return nil, lastErr
}

func (o *Orchestrator) animate(ctx context.Context, req domain.GenerationRequest, image *domain.ImageBlob) (domain.JobHandle, error) {
	spec := prompt.Build(req.Creative, domain.StepAnimate, req.Subjects())
	call := providers.Call{
		Step:        domain.StepAnimate,
		Prompt:      spec,
		Image:       image,
		AspectRatio: req.Creative.AspectRatio,
		Sliders:     req.Creative.Sliders,
	}

	var lastErr error
	for _, animator := range o.animators {
		if !animator.Configured() {
			o.logger.Debug().Str("provider", animator.Name()).Msg("video provider not configured, skipping")
			continue
		}
		handle, err := o.submitOne(ctx, animator, call)
		if err == nil {
			o.logger.Info().
				Str("provider", animator.Name()).
				Str("job_id", handle.JobID).
				Msg("video job submitted")
			return handle, nil
		}
		if errors.Is(err, domain.ErrValidation) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return domain.JobHandle{}, err
		}
		if errors.Is(err, domain.ErrAuth) {
			o.logger.Error().Err(err).Str("provider", animator.Name()).Msg("video provider rejected credentials")
		} else {
			o.logger.Warn().Err(err).Str("provider", animator.Name()).Msg("video provider unavailable, trying next")
		}
		lastErr = err
	}

	if lastErr == nil {
		return domain.JobHandle{}, &domain.ProviderError{Provider: "animate", Kind: domain.ErrAuth, Detail: "no video provider configured"}
	}
	return domain.JobHandle{}, fmt.Errorf("all video providers failed: %w", lastErr)
}

// submitOne retries transient submission failures against a single provider
// before the chain moves on.
func (o *Orchestrator) submitOne(ctx context.Context, animator providers.Animator, call providers.Call) (domain.JobHandle, error) {
	var lastErr error
	for attempt := 1; attempt <= o.policy.SubmitMaxAttempts; attempt++ {
		handle, err := animator.Submit(ctx, call)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrTransient) {
			return domain.JobHandle{}, err
		}
		o.logger.Warn().Err(err).
			Str("provider", animator.Name()).
			Int("attempt", attempt).
			Msg("submit attempt failed")
		if attempt < o.policy.SubmitMaxAttempts {
			if err := o.sleep(ctx, o.policy.SubmitBackoff); err != nil {
				return domain.JobHandle{}, err
			}
		}
	}
	return domain.JobHandle{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
