// API service for making authenticated HTTP requests to the Igloo backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/shared"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// APIService issues JSON requests to the Igloo REST API.
//
// Every request carries credentials: the session cookie jar on the HTTP client and, when
// a token source is configured and holds a token, a bearer Authorization header.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	logger     *log.Logger
}

// APIOption configures an [APIService].
type APIOption func(*APIService)

// WithTokenSource attaches the access token from ts to every request.
func WithTokenSource(ts oauth2.TokenSource) APIOption {
	return func(a *APIService) { a.tokens = ts }
}

// WithRateLimit throttles outgoing requests to rps per second. Zero or less disables throttling.
func WithRateLimit(rps float64) APIOption {
	return func(a *APIService) {
		if rps > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) APIOption {
	return func(a *APIService) { a.logger = l }
}

// NewAPIService creates a new API service instance for the Igloo backend at baseURL (including the API prefix).
//
// A nil client is replaced with one that keeps cookies, and a client without a jar gets one.
func NewAPIService(baseURL string, client *http.Client, opts ...APIOption) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api/v1"
	}
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		withJar := *client
		withJar.Jar = newCookieJar()
		client = &withJar
	}

	a := &APIService{baseURL: baseURL, httpClient: client}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = shared.NewLogger(io.Discard)
	}
	return a
}

func newCookieJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil
	}
	return jar
}

// APIResponse represents a successful API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
	RequestID  string
}

// URL returns the absolute URL for path.
func (a *APIService) URL(path string) string {
	return a.baseURL + path
}

// Request performs an HTTP request with an optional JSON body.
//
// Responses with a status of 400 or above, and transport failures, are returned as [*APIError].
func (a *APIService) Request(ctx context.Context, method, path string, body any) (*APIResponse, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := shared.GenerateID()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	a.authorize(req)

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, &APIError{Kind: KindUnreachable, Message: MsgUnreachable, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindUnreachable, Message: MsgUnreachable, RequestID: requestID, Err: err}
	}

	a.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"duration", time.Since(start), "request_id", requestID)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newStatusError(resp.StatusCode, data)
		apiErr.RequestID = requestID
		return nil, apiErr
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
		RequestID:  requestID,
	}

	var jsonData any
	if len(data) > 0 && json.Unmarshal(data, &jsonData) == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// authorize sets the bearer header when the token source currently holds a token.
func (a *APIService) authorize(req *http.Request) {
	if a.tokens == nil {
		return
	}
	tok, err := a.tokens.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(req)
}

// Do performs a request and decodes a JSON response body into out, which may be nil.
func (a *APIService) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := a.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &APIError{
			Kind:       KindDecode,
			StatusCode: resp.StatusCode,
			Message:    MsgUnexpected,
			RequestID:  resp.RequestID,
			Err:        err,
		}
	}
	return nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Request(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with body encoded as JSON.
func (a *APIService) Post(ctx context.Context, path string, body any) (*APIResponse, error) {
	return a.Request(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with body encoded as JSON.
func (a *APIService) Put(ctx context.Context, path string, body any) (*APIResponse, error) {
	return a.Request(ctx, http.MethodPut, path, body)
}

// Delete performs a DELETE request.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.Request(ctx, http.MethodDelete, path, nil)
}

// IsRetryable reports whether err is worth retrying: the server was unreachable or failed with a 5xx.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindUnreachable:
		return true
	case KindStatus:
		return apiErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}
