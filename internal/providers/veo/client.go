// Package veo adapts the Veo long-running operation API to the normalized
// animator surface. The operation resource name doubles as the job id, so a
// Veo job id always contains "/operations/".
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/providers"
)

const providerName = "veo"

// Options configures the Veo client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs raw HTTP calls against the predictLongRunning endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type instance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

type parameters struct {
	AspectRatio    string `json:"aspectRatio,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type operation struct {
	Name     string   `json:"name"`
	Done     bool     `json:"done"`
	Error    *opError `json:"error"`
	Response *struct {
		GenerateVideoResponse *struct {
			RaiMediaFilteredCount   int      `json:"raiMediaFilteredCount"`
			RaiMediaFilteredReasons []string `json:"raiMediaFilteredReasons"`
			GeneratedSamples        []struct {
				Video struct {
					URI                string `json:"uri"`
					BytesBase64Encoded string `json:"bytesBase64Encoded"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

type opError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type errorEnvelope struct {
	Error *opError `json:"error"`
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
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-3.0-generate-001"
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

// Owns reports whether a job id is an operation resource name.
func (c *Client) Owns(jobID string) bool {
	return strings.Contains(jobID, "/operations/")
}

// Submit starts a long-running generation and returns its operation name as
// the job handle.
func (c *Client) Submit(ctx context.Context, call providers.Call) (domain.JobHandle, error) {
	if !c.Configured() {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "GEMINI_API_KEY is not set"}
	}
	if call.Image == nil || len(call.Image.Bytes) == 0 {
		return domain.JobHandle{}, fmt.Errorf("%w: animate needs an input image", domain.ErrValidation)
	}

	payload := submitRequest{
		Instances: []instance{{
			Prompt: call.Prompt.InstructionText,
			Image: &inlineImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(call.Image.Bytes),
				MIMEType:           call.Image.MIMEType,
			},
		}},
		Parameters: parameters{
			AspectRatio:    call.AspectRatio,
			NegativePrompt: call.Prompt.NegativeText,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("veo: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("veo: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var op operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	if op.Name == "" {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "operation started without a name", Body: clip(raw)}
	}
	c.logger.Info().Str("operation", op.Name).Msg("veo: operation started")
	return domain.JobHandle{JobID: op.Name, Provider: providerName, CreatedAt: time.Now().UTC()}, nil
}

// Poll fetches the operation and normalizes its outcome.
func (c *Client) Poll(ctx context.Context, jobID string) (domain.JobStatus, error) {
	if !c.Configured() {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "GEMINI_API_KEY is not set"}
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", c.baseURL, strings.TrimPrefix(jobID, "/"), c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("veo: build request: %w", err)
	}

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

	var op operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	return c.normalize(op), nil
}

func (c *Client) normalize(op operation) domain.JobStatus {
	if !op.Done {
		return domain.JobStatus{State: domain.JobProcessing}
	}
	if op.Error != nil {
		return domain.JobStatus{
			State:       domain.JobFailed,
			ErrorDetail: fmt.Sprintf("operation failed: %s (%s)", op.Error.Message, op.Error.Status),
		}
	}
	if op.Response == nil || op.Response.GenerateVideoResponse == nil {
		return domain.JobStatus{
			State:       domain.JobFailed,
			Reason:      domain.ReasonArtifactMissing,
			ErrorDetail: "operation completed without a video response",
		}
	}

	gvr := op.Response.GenerateVideoResponse
	for _, sample := range gvr.GeneratedSamples {
		if url := artifactURL(sample.Video.URI, sample.Video.BytesBase64Encoded); url != "" {
			return domain.JobStatus{State: domain.JobSucceeded, ArtifactURL: url}
		}
	}

	if gvr.RaiMediaFilteredCount > 0 {
		detail := "all generated media was filtered"
		if len(gvr.RaiMediaFilteredReasons) > 0 {
			detail = gvr.RaiMediaFilteredReasons[0]
		}
		return domain.JobStatus{
			State:       domain.JobFailed,
			Reason:      domain.ReasonModerationRejected,
			ErrorDetail: detail,
		}
	}
	return domain.JobStatus{
		State:       domain.JobFailed,
		Reason:      domain.ReasonArtifactMissing,
		ErrorDetail: "operation completed without a usable sample",
	}
}

// artifactURL normalizes the shapes a finished sample can carry: a direct
// https url, a gs:// object path, or inline base64 bytes.
func artifactURL(uri, inlineBytes string) string {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "gs://"):
		return "https://storage.googleapis.com/" + strings.TrimPrefix(uri, "gs://")
	case uri != "":
		return uri
	case inlineBytes != "":
		return "data:video/mp4;base64," + inlineBytes
	}
	return ""
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
