package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/providers"
)

func testCall() providers.Call {
	return providers.Call{
		Step:    domain.StepAnimate,
		Prompt:  domain.PromptSpec{InstructionText: "a quiet morning", NegativeText: "watermark"},
		Image:   &domain.ImageBlob{Bytes: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"},
		Sliders: domain.Sliders{Intensity: 90, Pace: 10},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIToken: "tok", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSubmitCreatesPrediction(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predictions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "abc123def456", "status": "starting"})
	})

	handle, err := client.Submit(context.Background(), testCall())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle.JobID != "abc123def456" || handle.Provider != "replicate" {
		t.Fatalf("handle = %+v", handle)
	}
	if gotAuth != "Token tok" {
		t.Fatalf("auth header = %q", gotAuth)
	}

	var payload struct {
		Version string         `json:"version"`
		Input   map[string]any `json:"input"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Version == "" {
		t.Fatal("version missing from payload")
	}
	img, _ := payload.Input["input_image"].(string)
	if !strings.HasPrefix(img, "data:image/jpeg;base64,") {
		t.Fatalf("input_image = %.40q, want data url", img)
	}
	if mb := payload.Input["motion_bucket_id"].(float64); mb != 180 {
		t.Fatalf("motion_bucket_id = %v, want high-intensity band", mb)
	}
	if fps := payload.Input["frames_per_second"].(float64); fps != 6 {
		t.Fatalf("frames_per_second = %v, want low-pace band", fps)
	}
}

func TestSubmitWithoutIDIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "starting"})
	})
	if _, err := client.Submit(context.Background(), testCall()); !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}

func TestPollStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		want   domain.JobState
		reason domain.FailureReason
		url    string
	}{
		{"starting", `{"id":"p1","status":"starting"}`, domain.JobProcessing, domain.ReasonNone, ""},
		{"queued", `{"id":"p1","status":"queued"}`, domain.JobProcessing, domain.ReasonNone, ""},
		{"processing", `{"id":"p1","status":"processing"}`, domain.JobProcessing, domain.ReasonNone, ""},
		{"succeeded string", `{"id":"p1","status":"succeeded","output":"https://cdn/video.mp4"}`, domain.JobSucceeded, domain.ReasonNone, "https://cdn/video.mp4"},
		{"succeeded array", `{"id":"p1","status":"succeeded","output":["https://cdn/a.mp4","https://cdn/b.mp4"]}`, domain.JobSucceeded, domain.ReasonNone, "https://cdn/a.mp4"},
		{"succeeded object", `{"id":"p1","status":"succeeded","output":{"video":"https://cdn/v.mp4"}}`, domain.JobSucceeded, domain.ReasonNone, "https://cdn/v.mp4"},
		{"succeeded empty", `{"id":"p1","status":"succeeded","output":null}`, domain.JobFailed, domain.ReasonArtifactMissing, ""},
		{"failed", `{"id":"p1","status":"failed","error":"out of memory"}`, domain.JobFailed, domain.ReasonNone, ""},
		{"failed nsfw", `{"id":"p1","status":"failed","error":"NSFW content detected"}`, domain.JobFailed, domain.ReasonModerationRejected, ""},
		{"canceled", `{"id":"p1","status":"canceled"}`, domain.JobFailed, domain.ReasonNone, ""},
		{"unknown", `{"id":"p1","status":"paused"}`, domain.JobFailed, domain.ReasonUnmappedVendorState, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/predictions/p1" {
					t.Errorf("path = %s", r.URL.Path)
				}
				io.WriteString(w, c.body)
			})
			status, err := client.Poll(context.Background(), "p1")
			if err != nil {
				t.Fatalf("poll: %v", err)
			}
			if status.State != c.want || status.Reason != c.reason || status.ArtifactURL != c.url {
				t.Fatalf("status = %+v, want state=%s reason=%s url=%s", status, c.want, c.reason, c.url)
			}
			if status.State == domain.JobFailed && status.ErrorDetail == "" {
				t.Fatal("failed status missing detail")
			}
		})
	}
}

func TestOwns(t *testing.T) {
	client, err := NewClient(Options{APIToken: "tok"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	cases := map[string]bool{
		"abc123def456ghi":                 true,
		"5s9wkj2bq1rm80cs8x0v8n2yxc":      true,
		"cgt-20260829-abcdef":             false,
		"task-1234567890abcdef":           false,
		"models/veo-3.0/operations/xyz12": false,
		"short":                           false,
		"":                                false,
	}
	for id, want := range cases {
		if got := client.Owns(id); got != want {
			t.Errorf("Owns(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestSubmitUnconfigured(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Submit(context.Background(), testCall()); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestSubmitHTTPClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAuth},
		{http.StatusUnprocessableEntity, domain.ErrValidation},
		{http.StatusTooManyRequests, domain.ErrTransient},
		{http.StatusBadGateway, domain.ErrTransient},
	}
	for _, c := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			io.WriteString(w, `{"title":"err","detail":"something"}`)
		})
		if _, err := client.Submit(context.Background(), testCall()); !errors.Is(err, c.want) {
			t.Errorf("status %d: err = %v, want %v", c.status, err, c.want)
		}
	}
}
