package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "KO")
				r.Header.Set("Accept-Language", "en-US")
			},
			fallback: "en",
			want:     "ko",
		},
		{
			name: "accept-language korean",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
			},
			fallback: "en",
			want:     "ko",
		},
		{
			name: "accept-language english",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			fallback: "ko",
			want:     "en",
		},
		{
			name: "unsupported language falls back",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ja-JP,ja;q=0.9,ko;q=0.4")
			},
			fallback: "en",
			want:     "ko",
		},
		{
			name:     "configured fallback",
			fallback: "ko",
			want:     "ko",
		},
		{
			name:     "default to en",
			fallback: "en",
			want:     "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NMiddlewareStoresLocale(t *testing.T) {
	var got string
	handler := I18N("ko")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-GB")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != "ko" {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, "ko")
	}
	ctx = context.WithValue(ctx, LocaleKey, "en")
	if got := LocaleFromContext(ctx); got != "en" {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, "en")
	}
}
