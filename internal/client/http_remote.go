package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/ports"
)

// HTTPRemote talks to the REST API under /api/v1.
type HTTPRemote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPRemote creates a remote for the given address or URL.
func NewHTTPRemote(addr, token string, timeout time.Duration) *HTTPRemote {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPRemote{
		baseURL: baseURL + "/api/v1",
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for a bearer token and keeps it for later calls.
func (r *HTTPRemote) Login(ctx context.Context, username, password string) (*ports.AuthResponse, error) {
	var out ports.AuthResponse
	req := ports.LoginRequest{Username: username, Password: password}
	if err := r.do(ctx, http.MethodPost, "/auth/login", req, nil, &out); err != nil {
		return nil, err
	}
	r.token = out.Token
	return &out, nil
}

// ChangePassword replaces the signed-in account's password.
func (r *HTTPRemote) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := ports.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	return r.do(ctx, http.MethodPut, "/users/me/password", req, nil, nil)
}

func (r *HTTPRemote) Fetch(ctx context.Context) (*ports.Snapshot, error) {
	var out ports.Snapshot
	if err := r.do(ctx, http.MethodGet, "/tasks", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) Create(ctx context.Context, req ports.CreateTaskRequest) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPost, "/tasks", req, nil)
}

func (r *HTTPRemote) Update(ctx context.Context, taskID string, req ports.UpdateTaskRequest, base *int64) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPut, taskPath(taskID), req, base)
}

func (r *HTTPRemote) Delete(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodDelete, taskPath(taskID), nil, base)
}

func (r *HTTPRemote) Move(ctx context.Context, taskID string, newPosition int, base *int64) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPut, taskPath(taskID)+"/move/"+strconv.Itoa(newPosition), nil, base)
}

func (r *HTTPRemote) MoveBy(ctx context.Context, taskID string, step int, base *int64) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPut, taskPath(taskID)+"/move-by/"+strconv.Itoa(step), nil, base)
}

func (r *HTTPRemote) TogglePin(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPut, taskPath(taskID)+"/pin", nil, base)
}

func (r *HTTPRemote) WriteChecklist(ctx context.Context, taskID string, items []entities.ListItem, base *int64) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPut, taskPath(taskID)+"/checklist", ports.ChecklistWriteRequest{Items: items}, base)
}

// Resequence asks the server to close position gaps.
func (r *HTTPRemote) Resequence(ctx context.Context) (*ports.WriteResult, error) {
	return r.write(ctx, http.MethodPost, "/tasks/resequence", nil, nil)
}

func (r *HTTPRemote) write(ctx context.Context, method, path string, payload interface{}, base *int64) (*ports.WriteResult, error) {
	var headers http.Header
	if base != nil {
		headers = http.Header{}
		headers.Set("If-Match", strconv.FormatInt(*base, 10))
	}
	var out ports.WriteResult
	if err := r.do(ctx, method, path, payload, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, payload interface{}, headers http.Header, dest interface{}) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readErrorResponse(resp)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// readErrorResponse turns an error reply back into the matching sentinel.
func readErrorResponse(resp *http.Response) error {
	message := resp.Status
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
		message = payload.Message
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = entities.ErrTaskNotFound
	case http.StatusConflict:
		sentinel = entities.ErrStaleVersion
		if strings.Contains(message, entities.ErrTaskConflict.Error()) {
			sentinel = entities.ErrTaskConflict
		}
	case http.StatusUnauthorized:
		sentinel = entities.ErrUnauthorized
	case http.StatusServiceUnavailable:
		sentinel = entities.ErrPersistence
	}
	if sentinel != nil {
		return &RemoteError{Status: resp.StatusCode, Message: message, err: sentinel}
	}
	return &RemoteError{Status: resp.StatusCode, Message: message, err: errors.New(message)}
}

// RemoteError is a non-2xx reply. It unwraps to the entities sentinel for its status.
type RemoteError struct {
	Status  int
	Message string
	err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server replied %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.err }

func taskPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID)
}
