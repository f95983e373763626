// Package gemini implements photo composition on the Gemini
// generateContent API. Unlike the video vendors this call is synchronous:
// the composed still comes back in the same response.
package gemini

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

const providerName = "gemini"

// Options configures the compose client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs raw HTTP calls against the generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		FinishReason string `json:"finishReason"`
		Content      struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
				FileData *struct {
					MIMEType string `json:"mimeType"`
					FileURI  string `json:"fileUri"`
				} `json:"fileData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient constructs a compose client with sane defaults.
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
		model = "gemini-2.5-flash-image"
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

// Compose merges the call's photos into one staged still and returns it fully
// materialized. The returned blob never references vendor storage.
func (c *Client) Compose(ctx context.Context, call providers.Call) (*domain.ImageBlob, error) {
	if !c.Configured() {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrAuth, Detail: "GEMINI_API_KEY is not set"}
	}
	if call.Image == nil || len(call.Image.Bytes) == 0 {
		return nil, fmt.Errorf("%w: compose needs at least one image", domain.ErrValidation)
	}

	parts := []part{{InlineData: &inlineData{
		MIMEType: call.Image.MIMEType,
		Data:     base64.StdEncoding.EncodeToString(call.Image.Bytes),
	}}}
	if call.SecondImage != nil && len(call.SecondImage.Bytes) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: call.SecondImage.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(call.SecondImage.Bytes),
		}})
	}
	parts = append(parts, part{Text: call.Prompt.InstructionText})

	payload := generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"IMAGE"}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "read response: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp.StatusCode, raw)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode response: " + err.Error(), Body: clip(raw)}
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return nil, &domain.ProviderError{
			Provider: providerName,
			Kind:     domain.ErrModerationRejected,
			Detail:   "prompt blocked: " + decoded.PromptFeedback.BlockReason,
		}
	}

	for _, cand := range decoded.Candidates {
		if blockedFinish(cand.FinishReason) {
			return nil, &domain.ProviderError{
				Provider: providerName,
				Kind:     domain.ErrModerationRejected,
				Detail:   "candidate blocked: " + cand.FinishReason,
			}
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "decode inline image: " + err.Error()}
				}
				c.logger.Debug().Str("model", c.model).Int("bytes", len(data)).Msg("gemini: composed image")
				return &domain.ImageBlob{Bytes: data, MIMEType: orJPEG(p.InlineData.MIMEType)}, nil
			}
			if p.FileData != nil && p.FileData.FileURI != "" {
				return c.download(ctx, p.FileData.FileURI, p.FileData.MIMEType)
			}
		}
	}

	// 200 with no image part anywhere. Retryable as a soft failure.
	return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrArtifactMissing, Detail: "response carried no image part", Body: clip(raw)}
}

func (c *Client) download(ctx context.Context, fileURI, mimeType string) (*domain.ImageBlob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURI, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: build download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "download artifact: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrArtifactMissing, StatusCode: resp.StatusCode, Detail: "artifact download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransient, Detail: "read artifact: " + err.Error()}
	}
	if len(data) == 0 {
		return nil, &domain.ProviderError{Provider: providerName, Kind: domain.ErrArtifactMissing, Detail: "artifact download was empty"}
	}
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}
	return &domain.ImageBlob{Bytes: data, MIMEType: orJPEG(mimeType)}, nil
}

func classifyHTTP(status int, raw []byte) error {
	detail := vendorMessage(raw)
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

func blockedFinish(reason string) bool {
	switch strings.ToUpper(reason) {
	case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return true
	}
	return false
}

func vendorMessage(raw []byte) string {
	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error != nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	return "request failed"
}

func orJPEG(mime string) string {
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/jpeg"
}

func clip(raw []byte) string {
	const max = 2048
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max]
	}
	return s
}
