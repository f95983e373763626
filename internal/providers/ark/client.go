// Package ark adapts the Volcengine ARK content-generation task API to the
// normalized animator surface. Task ids carry the vendor's "cgt-" prefix,
// which is what routes polls back here.
package ark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/media"
	"rewrite-moment/internal/providers"
)

const (
	providerName = "ark"
	idPrefix     = "cgt-"
)

// Options configures the ARK client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs raw HTTP calls against the content generation tasks API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type createRequest struct {
	Model   string        `json:"model"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type task struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content *struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
	Error *vendorError `json:"error"`
}

type vendorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error *vendorError `json:"error"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "doubao-seedance-1-0-lite-i2v-250428"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name identifies the adapter in logs and provider chains.
func (c *Client) Name() string { return providerName }

// Configured reports whether the client holds credentials.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Owns reports whether a job id is an ARK task id.
func (c *Client) Owns(jobID string) bool {
	return strings.HasPrefix(jobID, idPrefix)
}

// Submit creates a content generation task from the call's still image.
// Prompt modifiers ride in the text item the way the vendor expects.
func (c *Client) Submit(ctx context.Context, call providers.Call) (domain.JobHandle, error) {
	if !c.Configured() {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "ARK_API_KEY is not set"}
	}
	if call.Image == nil || len(call.Image.Bytes) == 0 {
		return domain.JobHandle{}, fmt.Errorf("%w: animate needs an input image", domain.ErrValidation)
	}

	text := call.Prompt.InstructionText
	if ratio := strings.TrimSpace(call.AspectRatio); ratio != "" {
		text += " --ratio " + ratio
	}
	payload := createRequest{
		Model: c.model,
		Content: []contentItem{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &imageURL{URL: media.DataURL(call.Image)}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("ark: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contents/generations/tasks", bytes.NewReader(body))
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("ark: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "read response: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return domain.JobHandle{}, classifyHTTP(resp.StatusCode, raw)
	}

	var created task
	if err := json.Unmarshal(raw, &created); err != nil {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	if created.ID == "" {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "task created without an id", Body: clip(raw)}
	}
	c.logger.Info().Str("task_id", created.ID).Msg("ark: task created")
	return domain.JobHandle{JobID: created.ID, Provider: providerName, CreatedAt: time.Now().UTC()}, nil
}

// Poll fetches the task and maps its status vocabulary onto the normalized
// one.
func (c *Client) Poll(ctx context.Context, jobID string) (domain.JobStatus, error) {
	if !c.Configured() {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "ARK_API_KEY is not set"}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/contents/generations/tasks/"+jobID, nil)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("ark: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "read response: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return domain.JobStatus{}, classifyHTTP(resp.StatusCode, raw)
	}

	var t task
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	return c.normalize(t), nil
}

func (c *Client) normalize(t task) domain.JobStatus {
	switch t.Status {
	case "queued", "running":
		return domain.JobStatus{State: domain.JobProcessing}
	case "succeeded":
		if t.Content == nil || strings.TrimSpace(t.Content.VideoURL) == "" {
			return domain.JobStatus{
				State:       domain.JobFailed,
				Reason:      domain.ReasonArtifactMissing,
				ErrorDetail: "task succeeded without a video url",
			}
		}
		return domain.JobStatus{State: domain.JobSucceeded, ArtifactURL: strings.TrimSpace(t.Content.VideoURL)}
	case "failed", "cancelled":
		detail := "task " + t.Status
		status := domain.JobStatus{State: domain.JobFailed}
		if t.Error != nil && t.Error.Message != "" {
			detail = t.Error.Message
			if looksModerated(t.Error.Code, t.Error.Message) {
				status.Reason = domain.ReasonModerationRejected
			}
		}
		status.ErrorDetail = detail
		return status
	default:
		c.logger.Warn().Str("status", t.Status).Str("task_id", t.ID).Msg("ark: unmapped task status")
		return domain.JobStatus{
			State:       domain.JobFailed,
			Reason:      domain.ReasonUnmappedVendorState,
			ErrorDetail: fmt.Sprintf("unmapped provider status %q", t.Status),
		}
	}
}

func looksModerated(code, message string) bool {
	lower := strings.ToLower(code + " " + message)
	return strings.Contains(lower, "sensitive") || strings.Contains(lower, "moderation")
}

func classifyHTTP(status int, raw []byte) error {
	detail := "request failed"
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		detail = env.Error.Message
	}
	kind := domain.ErrTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = domain.ErrAuth
	case status == http.StatusTooManyRequests:
		kind = domain.ErrTransient
	case status >= 400 && status < 500:
		kind = domain.ErrValidation
	}
	return &domain.ProviderError{Provider: providerName, Kind: kind, StatusCode: status, Detail: detail, Body: clip(raw)}
}

func clip(raw []byte) string {
	const max = 2048
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max]
	}
	return s
}
