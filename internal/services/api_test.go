package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/igloo/internal/shared"
	tu "github.com/desertthunder/igloo/internal/testing"
	"golang.org/x/oauth2"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{Jar: newCookieJar()}
			srv := NewAPIService("http://example.com/api/v1", customClient)

			if srv.baseURL != "http://example.com/api/v1" {
				t.Errorf("expected baseURL 'http://example.com/api/v1', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != "http://localhost:8080/api/v1" {
				t.Errorf("expected default baseURL, got %s", srv.baseURL)
			}
		})

		t.Run("Client Without Jar Gets One", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.httpClient.Jar == nil {
				t.Error("expected cookie jar to be set")
			}
			if customClient.Jar != nil {
				t.Error("expected caller's client to be left untouched")
			}
		})
	})

	t.Run("Request", func(t *testing.T) {
		t.Run("Sends JSON Body And Headers", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.URL.Path != "/api/v1/test" {
					t.Errorf("expected path '/api/v1/test', got %s", r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
				}
				if r.Header.Get(requestIDHeader) == "" {
					t.Error("expected request id header")
				}

				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if body["name"] != "igloo" {
					t.Errorf("expected body to be forwarded, got %v", body)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL+"/api/v1", nil)
			resp, err := srv.Post(context.Background(), "/test", map[string]string{"name": "igloo"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected response to be JSON")
			}
			if resp.RequestID == "" {
				t.Error("expected request id on response")
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("plain text"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "plain text" {
				t.Errorf("expected body 'plain text', got %q", string(resp.Body))
			}
		})

		t.Run("Sends Bearer Token From Token Source", func(t *testing.T) {
			var auth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
			}))
			defer server.Close()

			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-123"})
			if _, err := NewAPIService(server.URL, nil, WithTokenSource(ts)).Get(context.Background(), "/"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if auth != "Bearer access-123" {
				t.Errorf("expected bearer header, got %q", auth)
			}
		})

		t.Run("Omits Bearer Token When Source Has None", func(t *testing.T) {
			var auth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
			}))
			defer server.Close()

			ts := tu.TokenSourceFunc(func() (*oauth2.Token, error) { return nil, shared.ErrNotAuthenticated })
			if _, err := NewAPIService(server.URL, nil, WithTokenSource(ts)).Get(context.Background(), "/"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if auth != "" {
				t.Errorf("expected no auth header, got %q", auth)
			}
		})

		t.Run("Keeps Session Cookies", func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) == 1 {
					http.SetCookie(w, &http.Cookie{Name: "igloo_session", Value: "s1", Path: "/"})
					return
				}
				if c, err := r.Cookie("igloo_session"); err != nil || c.Value != "s1" {
					t.Errorf("expected session cookie on second request, got %v", err)
				}
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			srv.Get(context.Background(), "/login")
			srv.Get(context.Background(), "/me")
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("://invalid-url", nil)
			if _, err := srv.Get(context.Background(), "/test"); err == nil {
				t.Error("expected error for invalid URL")
			}
		})

		t.Run("Unencodable Body", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			if _, err := srv.Post(context.Background(), "/", make(chan int)); err == nil {
				t.Error("expected encode error")
			}
		})

		t.Run("Transport Failure Is Unreachable", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Kind != KindUnreachable {
				t.Errorf("expected unreachable kind, got %s", apiErr.Kind)
			}
			if apiErr.Message != MsgUnreachable {
				t.Errorf("expected unreachable message, got %q", apiErr.Message)
			}
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Error("expected error to match ErrServiceUnavailable")
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     make(http.Header),
			}, nil)}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected unreachable error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := NewAPIService(server.URL, nil).Get(ctx, "/test")
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				t.Error("canceled requests should not be reported as unreachable")
			}
		})

		t.Run("Rate Limited Client Waits On Context", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil, WithRateLimit(0.001))
			srv.limiter.Allow()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := srv.Get(ctx, "/"); err == nil {
				t.Error("expected limiter wait to fail on canceled context")
			}
		})

		t.Run("Zero Rate Disables Limiter", func(t *testing.T) {
			if srv := NewAPIService("http://example.com", nil, WithRateLimit(0)); srv.limiter != nil {
				t.Error("expected no limiter")
			}
		})
	})

	t.Run("Do", func(t *testing.T) {
		t.Run("Decodes Into Out", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"name":"igloo"}`))
			}))
			defer server.Close()

			var out struct{ Name string }
			if err := NewAPIService(server.URL, nil).Do(context.Background(), http.MethodGet, "/", nil, &out); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if out.Name != "igloo" {
				t.Errorf("expected name igloo, got %q", out.Name)
			}
		})

		t.Run("Decode Failure", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			}))
			defer server.Close()

			var out struct{ Name string }
			err := NewAPIService(server.URL, nil).Do(context.Background(), http.MethodGet, "/", nil, &out)

			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Kind != KindDecode {
				t.Fatalf("expected decode error, got %v", err)
			}
			if apiErr.Message != MsgUnexpected {
				t.Errorf("expected unexpected message, got %q", apiErr.Message)
			}
		})

		t.Run("Empty Body With Out", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			var out struct{ Name string }
			if err := NewAPIService(server.URL, nil).Do(context.Background(), http.MethodDelete, "/", nil, &out); err != nil {
				t.Errorf("expected no error for empty body, got %v", err)
			}
		})
	})
}

func TestIsRetryable(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unreachable", err: &APIError{Kind: KindUnreachable}, want: true},
		{name: "server error", err: &APIError{Kind: KindStatus, StatusCode: 500}, want: true},
		{name: "bad gateway", err: &APIError{Kind: KindStatus, StatusCode: 502}, want: true},
		{name: "not found", err: &APIError{Kind: KindStatus, StatusCode: 404}, want: false},
		{name: "unauthorized", err: &APIError{Kind: KindStatus, StatusCode: 401}, want: false},
		{name: "decode", err: &APIError{Kind: KindDecode}, want: false},
		{name: "other error", err: io.EOF, want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newJSONServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.Copy(w, strings.NewReader(body))
	}))
	t.Cleanup(server.Close)
	return server
}
