// Package grading is the HTTP client for the remote grading backend.
// The backend is opaque: requests are sent once, with no retry.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/labdesk/internal/apperr"
)

// Config holds the backend connection settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	SessionCookie string
	Token         string
}

// BackendError reports a failed call. Message is the text shown to the user
// in the fallback result.
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("grading: backend returned %d: %s", e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("grading: %s: %v", e.Message, e.Err)
	}
	return "grading: " + e.Message
}

// Unwrap lets callers match apperr.ErrBackend.
func (e *BackendError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrBackend}
	}
	return []error{apperr.ErrBackend, e.Err}
}

// Client calls the grading backend.
type Client struct {
	baseURL string
	cookie  string
	token   string
	http    *http.Client
}

// NewClient creates a client. An empty BaseURL yields a client whose calls
// always fail with a BackendError.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cookie:  cfg.SessionCookie,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a backend URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type gradeResponse struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	GradingResult *GradeResult `json:"grading_result"`
}

type projectResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Result  *ProjectResult `json:"result"`
}

type submissionsResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Submissions []Submission `json:"submissions"`
}

type submissionResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Submission *Submission `json:"submission"`
}

// Grade submits one lab for grading.
func (c *Client) Grade(ctx context.Context, req GradeRequest) (*GradeResult, error) {
	var resp gradeResponse
	if err := c.do(ctx, http.MethodPost, "/ai/grade/", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.GradingResult == nil {
		return nil, &BackendError{Message: messageOr(resp.Message, "Grading failed")}
	}
	return resp.GradingResult, nil
}

// EvaluateProject submits a multi-file project for evaluation.
func (c *Client) EvaluateProject(ctx context.Context, req ProjectRequest) (*ProjectResult, error) {
	var resp projectResponse
	if err := c.do(ctx, http.MethodPost, "/ai/project/evaluate/", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Result == nil {
		return nil, &BackendError{Message: messageOr(resp.Message, "Evaluation failed")}
	}
	return resp.Result, nil
}

// Submissions lists the grading records the backend holds for the session.
func (c *Client) Submissions(ctx context.Context) ([]Submission, error) {
	var resp submissionsResponse
	if err := c.do(ctx, http.MethodGet, "/ai/submissions/", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &BackendError{Message: messageOr(resp.Message, "Failed to fetch submissions")}
	}
	if resp.Submissions == nil {
		return []Submission{}, nil
	}
	return resp.Submissions, nil
}

// Submission returns the backend's record for one lab.
func (c *Client) Submission(ctx context.Context, labID string) (*Submission, error) {
	// Dot segments would still be resolved by the backend after escaping.
	if labID == "" || labID == "." || labID == ".." {
		return nil, fmt.Errorf("grading: submission %q: %w", labID, apperr.ErrNotFound)
	}
	var resp submissionResponse
	err := c.do(ctx, http.MethodGet, "/ai/submissions/"+url.PathEscape(labID)+"/", nil, &resp)
	var be *BackendError
	if errors.As(err, &be) && be.Status == http.StatusNotFound {
		return nil, fmt.Errorf("grading: submission %s: %w", labID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Submission == nil {
		return nil, fmt.Errorf("grading: submission %s: %w", labID, apperr.ErrNotFound)
	}
	return resp.Submission, nil
}

// do sends one request. Error statuses whose body is a JSON envelope are
// decoded into out as well, so the backend's message reaches the caller.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Enabled() {
		return &BackendError{Message: "grading backend is not configured"}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("grading: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("grading: new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &BackendError{Message: "Failed to connect to AI grading service. Please try again.", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &BackendError{Message: "failed to read backend response", Err: err}
	}
	decodeErr := json.Unmarshal(raw, out)

	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		var env struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		return &BackendError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &BackendError{Message: "invalid backend response", Err: decodeErr}
	}
	return nil
}

func messageOr(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
