package veo

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

const opName = "models/veo-3.0-generate-001/operations/op-12345"

func testCall() providers.Call {
	return providers.Call{
		Step:        domain.StepAnimate,
		Prompt:      domain.PromptSpec{InstructionText: "a slow pan", NegativeText: "text overlay"},
		Image:       &domain.ImageBlob{Bytes: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"},
		AspectRatio: "16:9",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSubmitStartsOperation(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":predictLongRunning") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "key" {
			t.Error("api key missing from query")
		}
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{"name": opName})
	})

	handle, err := client.Submit(context.Background(), testCall())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle.JobID != opName || handle.Provider != "veo" {
		t.Fatalf("handle = %+v", handle)
	}

	var payload struct {
		Instances []struct {
			Prompt string `json:"prompt"`
			Image  *struct {
				BytesBase64Encoded string `json:"bytesBase64Encoded"`
				MIMEType           string `json:"mimeType"`
			} `json:"image"`
		} `json:"instances"`
		Parameters struct {
			AspectRatio    string `json:"aspectRatio"`
			NegativePrompt string `json:"negativePrompt"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Instances) != 1 || payload.Instances[0].Prompt != "a slow pan" {
		t.Fatalf("instances = %+v", payload.Instances)
	}
	if payload.Instances[0].Image == nil || payload.Instances[0].Image.MIMEType != "image/jpeg" {
		t.Fatal("inline image missing from payload")
	}
	if payload.Parameters.AspectRatio != "16:9" || payload.Parameters.NegativePrompt != "text overlay" {
		t.Fatalf("parameters = %+v", payload.Parameters)
	}
}

func TestOwns(t *testing.T) {
	client, err := NewClient(Options{APIKey: "key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if !client.Owns(opName) {
		t.Fatal("operation name not owned")
	}
	for _, id := range []string{"cgt-123", "abc123def456", ""} {
		if client.Owns(id) {
			t.Errorf("Owns(%q) = true", id)
		}
	}
}

func TestPollPending(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+opName {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"name": opName, "done": false})
	})
	status, err := client.Poll(context.Background(), opName)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.JobProcessing {
		t.Fatalf("state = %s", status.State)
	}
}

func TestPollOperationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name": opName, "done": true,
			"error": map[string]any{"code": 13, "message": "internal error", "status": "INTERNAL"},
		})
	})
	status, err := client.Poll(context.Background(), opName)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.JobFailed || !strings.Contains(status.ErrorDetail, "internal error") {
		t.Fatalf("status = %+v", status)
	}
}

func TestPollArtifactShapes(t *testing.T) {
	cases := []struct {
		name  string
		video map[string]any
		want  string
	}{
		{"direct url", map[string]any{"uri": "https://cdn.example.com/v.mp4"}, "https://cdn.example.com/v.mp4"},
		{"gcs path", map[string]any{"uri": "gs://veo-out/v.mp4"}, "https://storage.googleapis.com/veo-out/v.mp4"},
		{"inline bytes", map[string]any{"bytesBase64Encoded": "AAAA"}, "data:video/mp4;base64,AAAA"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"name": opName, "done": true,
					"response": map[string]any{
						"generateVideoResponse": map[string]any{
							"generatedSamples": []any{map[string]any{"video": c.video}},
						},
					},
				})
			})
			status, err := client.Poll(context.Background(), opName)
			if err != nil {
				t.Fatalf("poll: %v", err)
			}
			if status.State != domain.JobSucceeded || status.ArtifactURL != c.want {
				t.Fatalf("status = %+v, want url %s", status, c.want)
			}
		})
	}
}

func TestPollAllSamplesFiltered(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name": opName, "done": true,
			"response": map[string]any{
				"generateVideoResponse": map[string]any{
					"raiMediaFilteredCount":   1,
					"raiMediaFilteredReasons": []string{"Responsible AI practices filtered the output"},
					"generatedSamples":        []any{},
				},
			},
		})
	})
	status, err := client.Poll(context.Background(), opName)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.JobFailed || status.Reason != domain.ReasonModerationRejected {
		t.Fatalf("status = %+v, want moderation failure", status)
	}
}

func TestPollDoneWithoutSamples(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name": opName, "done": true,
			"response": map[string]any{"generateVideoResponse": map[string]any{}},
		})
	})
	status, err := client.Poll(context.Background(), opName)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.JobFailed || status.Reason != domain.ReasonArtifactMissing {
		t.Fatalf("status = %+v, want artifact-missing failure", status)
	}
}

func TestPollAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	})
	if _, err := client.Poll(context.Background(), opName); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}
