// Package replicate adapts the Replicate predictions API to the normalized
// animator surface. The prediction id doubles as the job id.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/media"
	"rewrite-moment/internal/providers"
)

const providerName = "replicate"

// Prediction ids are opaque alphanumerics. Anything with path separators or a
// vendor prefix belongs to another adapter, so this stays deliberately loose.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9]{10,}$`)

// Options configures the predictions client.
type Options struct {
	APIToken       string
	BaseURL        string
	Version        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs raw HTTP calls against the predictions API.
type Client struct {
	apiToken   string
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *infra.Logger
}

type createRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
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
		baseURL = "https://api.replicate.com/v1"
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		// stable-video-diffusion img2vid-xt
		version = "3f0457e4619daac51203dedb472816fd4af51f3749fa76e215b8893c3132b6d8"
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
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		version:    version,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name identifies the adapter in logs and provider chains.
func (c *Client) Name() string { return providerName }

// Configured reports whether the client holds credentials.
func (c *Client) Configured() bool { return c.apiToken != "" }

// Owns reports whether a job id looks like a prediction id. The pattern
// rejects slashes and dashes, so operation names and cgt- task ids can never
// match regardless of where this adapter sits in the poll chain.
func (c *Client) Owns(jobID string) bool {
	return !strings.HasPrefix(jobID, "cgt-") && idPattern.MatchString(jobID)
}

// Submit creates a prediction from the call's still image. Motion parameters
// derive from the pace and intensity sliders; prompt fields ride along for
// model versions that accept them.
func (c *Client) Submit(ctx context.Context, call providers.Call) (domain.JobHandle, error) {
	if !c.Configured() {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "REPLICATE_API_TOKEN is not set"}
	}
	if call.Image == nil || len(call.Image.Bytes) == 0 {
		return domain.JobHandle{}, fmt.Errorf("%w: animate needs an input image", domain.ErrValidation)
	}

	input := map[string]any{
		"input_image":       media.DataURL(call.Image),
		"video_length":      "25_frames_with_svd_xt",
		"sizing_strategy":   "maintain_aspect_ratio",
		"frames_per_second": framesPerSecond(call.Sliders.Pace),
		"motion_bucket_id":  motionBucket(call.Sliders.Intensity),
		"cond_aug":          0.02,
	}
	if call.Prompt.InstructionText != "" {
		input["prompt"] = call.Prompt.InstructionText
	}
	if call.Prompt.NegativeText != "" {
		input["negative_prompt"] = call.Prompt.NegativeText
	}

	body, err := json.Marshal(createRequest{Version: c.version, Input: input})
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("replicate: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.apiToken)

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

	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	if pred.ID == "" {
		return domain.JobHandle{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "prediction created without an id", Body: clip(raw)}
	}
	c.logger.Info().Str("prediction_id", pred.ID).Str("status", pred.Status).Msg("replicate: prediction created")
	return domain.JobHandle{JobID: pred.ID, Provider: providerName, CreatedAt: time.Now().UTC()}, nil
}

// Poll fetches the prediction and maps its status vocabulary onto the
// normalized one.
func (c *Client) Poll(ctx context.Context, jobID string) (domain.JobStatus, error) {
	if !c.Configured() {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "REPLICATE_API_TOKEN is not set"}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+jobID, nil)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.apiToken)

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

	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return domain.JobStatus{}, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	return c.normalize(pred), nil
}

func (c *Client) normalize(pred prediction) domain.JobStatus {
	switch pred.Status {
	case "starting", "queued", "processing":
		return domain.JobStatus{State: domain.JobProcessing}
	case "succeeded":
		url := outputURL(pred.Output)
		if url == "" {
			return domain.JobStatus{
				State:       domain.JobFailed,
				Reason:      domain.ReasonArtifactMissing,
				ErrorDetail: "prediction succeeded without an output url",
			}
		}
		return domain.JobStatus{State: domain.JobSucceeded, ArtifactURL: url}
	case "failed", "canceled":
		detail := errorText(pred.Error)
		if detail == "" {
			detail = "prediction " + pred.Status
		}
		status := domain.JobStatus{State: domain.JobFailed, ErrorDetail: detail}
		if looksModerated(detail) {
			status.Reason = domain.ReasonModerationRejected
		}
		return status
	default:
		c.logger.Warn().Str("status", pred.Status).Str("prediction_id", pred.ID).Msg("replicate: unmapped prediction status")
		return domain.JobStatus{
			State:       domain.JobFailed,
			Reason:      domain.ReasonUnmappedVendorState,
			ErrorDetail: fmt.Sprintf("unmapped provider status %q", pred.Status),
		}
	}
}

// outputURL tolerates the output shapes different model versions return:
// a bare string, an array of urls, or an object keyed by video/url.
func outputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	var obj struct {
		Video string `json:"video"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Video != "" {
			return strings.TrimSpace(obj.Video)
		}
		return strings.TrimSpace(obj.URL)
	}
	return ""
}

func looksModerated(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "nsfw") || strings.Contains(lower, "sensitive") || strings.Contains(lower, "flagged")
}

func errorText(v any) string {
	switch e := v.(type) {
	case string:
		return strings.TrimSpace(e)
	case map[string]any:
		if msg, ok := e["detail"].(string); ok {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}

func motionBucket(intensity int) int {
	switch {
	case intensity < 40:
		return 80
	case intensity > 70:
		return 180
	default:
		return 127
	}
}

func framesPerSecond(pace int) int {
	switch {
	case pace < 40:
		return 6
	case pace > 70:
		return 10
	default:
		return 7
	}
}

func classifyHTTP(status int, raw []byte) error {
	var apiErr apiError
	detail := "request failed"
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Detail != "" {
		detail = apiErr.Detail
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
