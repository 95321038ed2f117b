package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelierink/sketchd/plan"
)

const defaultTimeout = 60 * time.Second

// HTTPService talks JSON over HTTP to the reasoning service.
type HTTPService struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures an HTTPService.
type Option func(*HTTPService)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(s *HTTPService) { s.token = token }
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPService) { s.client = c }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *HTTPService) { s.logger = l }
}

// NewHTTP creates an HTTPService for the given base URL (no trailing slash).
func NewHTTP(baseURL string, opts ...Option) *HTTPService {
	s := &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// wireResponse is the full plan endpoint response. The plan fields are
// decoded separately through plan.Plan's own unmarshaller.
type wireResponse struct {
	ExecutionSummary *ExecuteSummary `json:"executionSummary"`
	Error            string          `json:"error"`
}

// Plan implements Service.
func (s *HTTPService) Plan(ctx context.Context, req Request) (*plan.Plan, error) {
	req.Mode = ModePlan
	body, err := s.post(ctx, req)
	if err != nil {
		return nil, err
	}
	var p plan.Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("planner: decode plan: %w", err)
	}
	return &p, nil
}

// Execute implements Service.
func (s *HTTPService) Execute(ctx context.Context, req Request) (*ExecuteSummary, error) {
	req.Mode = ModeExecute
	body, err := s.post(ctx, req)
	if err != nil {
		return nil, err
	}
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("planner: decode execution summary: %w", err)
	}
	if w.ExecutionSummary == nil {
		return nil, &ServiceError{Code: CodeExecution, Message: "service returned no execution summary"}
	}
	return w.ExecutionSummary, nil
}

func (s *HTTPService) post(ctx context.Context, req Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("planner: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/plans", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("planner: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{Code: CodeNetwork, Message: "reasoning service unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ServiceError{Code: CodeNetwork, Message: "reading response", Err: err}
	}

	s.logger.Debug("planner: request", "mode", req.Mode, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	msg := serviceMessage(body)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &ServiceError{Code: CodeAuthRequired, Message: msg, Status: resp.StatusCode}
	case http.StatusTooManyRequests:
		return nil, &ServiceError{Code: CodeRateLimited, Message: msg, Status: resp.StatusCode}
	default:
		return nil, &ServiceError{Code: CodeAPI, Message: msg, Status: resp.StatusCode}
	}
}

// serviceMessage extracts the error field from a JSON error body, falling
// back to the raw body.
func serviceMessage(body []byte) string {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err == nil && w.Error != "" {
		return w.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
