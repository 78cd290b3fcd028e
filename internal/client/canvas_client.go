package client

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

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/config"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/model"
)

// ErrRemote is matched by every failure returned from CanvasClient, whether
// the request never completed or Canvas answered with a non-2xx status.
var ErrRemote = errors.New("canvas API error")

// APIError carries the status and body of a non-2xx Canvas response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("canvas API error (status %d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrRemote
}

// CanvasClient talks to the Canvas REST API with a bearer token.
type CanvasClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	perPage    int
	log        zerolog.Logger
}

type listOptions struct {
	PerPage int `url:"per_page,omitempty"`
}

// NewCanvasClient creates a new Canvas API client
func NewCanvasClient(cfg *config.CanvasConfig) *CanvasClient {
	return &CanvasClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		apiKey:  cfg.APIKey,
		perPage: cfg.PerPage,
		log:     logger.Get().With().Str("component", "canvas").Logger(),
	}
}

// IsConfigured returns true if the client has an API key
func (c *CanvasClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GetSelf returns the user that owns the API key.
func (c *CanvasClient) GetSelf(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/users/self", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *CanvasClient) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	var course model.Course
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/courses/%s", c.baseURL, url.PathEscape(courseID)), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *CanvasClient) GetAssignment(ctx context.Context, courseID, assignmentID string) (*model.Assignment, error) {
	var assignment model.Assignment
	endpoint := fmt.Sprintf("%s/courses/%s/assignments/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(assignmentID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (c *CanvasClient) EditAssignment(ctx context.Context, courseID, assignmentID string, payload model.UpdatePayload) (*model.Assignment, error) {
	var assignment model.Assignment
	endpoint := fmt.Sprintf("%s/courses/%s/assignments/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(assignmentID))
	body := map[string]model.UpdatePayload{"assignment": payload}
	if err := c.do(ctx, http.MethodPut, endpoint, body, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (c *CanvasClient) GetQuiz(ctx context.Context, courseID, quizID string) (*model.Quiz, error) {
	var quiz model.Quiz
	endpoint := fmt.Sprintf("%s/courses/%s/quizzes/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(quizID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (c *CanvasClient) EditQuiz(ctx context.Context, courseID, quizID string, payload model.UpdatePayload) (*model.Quiz, error) {
	var quiz model.Quiz
	endpoint := fmt.Sprintf("%s/courses/%s/quizzes/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(quizID))
	body := map[string]model.UpdatePayload{"quiz": payload}
	if err := c.do(ctx, http.MethodPut, endpoint, body, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListAssignments returns every assignment in the course, following pagination.
func (c *CanvasClient) ListAssignments(ctx context.Context, courseID string) ([]model.Assignment, error) {
	var all []model.Assignment
	endpoint, err := c.listURL(fmt.Sprintf("%s/courses/%s/assignments", c.baseURL, url.PathEscape(courseID)))
	if err != nil {
		return nil, err
	}
	for endpoint != "" {
		var page []model.Assignment
		next, err := c.doPage(ctx, endpoint, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		endpoint = next
	}
	return all, nil
}

// ListQuizzes returns every classic quiz in the course, following pagination.
func (c *CanvasClient) ListQuizzes(ctx context.Context, courseID string) ([]model.Quiz, error) {
	var all []model.Quiz
	endpoint, err := c.listURL(fmt.Sprintf("%s/courses/%s/quizzes", c.baseURL, url.PathEscape(courseID)))
	if err != nil {
		return nil, err
	}
	for endpoint != "" {
		var page []model.Quiz
		next, err := c.doPage(ctx, endpoint, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		endpoint = next
	}
	return all, nil
}

func (c *CanvasClient) listURL(base string) (string, error) {
	values, err := query.Values(listOptions{PerPage: c.perPage})
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	if encoded := values.Encode(); encoded != "" {
		return base + "?" + encoded, nil
	}
	return base, nil
}

func (c *CanvasClient) doPage(ctx context.Context, endpoint string, out interface{}) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := decode(resp, out); err != nil {
		return "", err
	}
	return nextLink(resp.Header.Get("Link")), nil
}

func (c *CanvasClient) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	resp, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

func (c *CanvasClient) send(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("url", endpoint).Msg("Sending request to Canvas")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", ErrRemote, err)
	}
	return resp, nil
}

func decode(resp *http.Response, out interface{}) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrRemote, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ErrRemote, err)
	}
	return nil
}

// nextLink extracts the rel="next" URL from a Canvas Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, attr := range segments[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}
