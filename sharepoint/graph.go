package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louiss0/access-sharepoint-migrator/build_info"
)

// DefaultGraphURL is the Microsoft Graph v1.0 endpoint of the public cloud.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("connector is not authenticated")
	ErrListNotFound     = errors.New("list not found")
)

// GraphError is a non-2xx answer from Microsoft Graph.
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is the server's requested delay, zero when none was sent.
	RetryAfter time.Duration
}

func (e *GraphError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *GraphError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newGraphError(status int, header func(string) string, body []byte) *GraphError {
	var decoded graphErrorBody
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &decoded) == nil && decoded.Error.Message != "" {
		message = decoded.Error.Message
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &GraphError{
		StatusCode: status,
		Code:       decoded.Error.Code,
		Message:    message,
		RetryAfter: parseRetryAfter(header("Retry-After")),
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date values.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(seconds, 0)) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}

// graphClient sends authenticated JSON requests to Microsoft Graph.
type graphClient struct {
	http    *http.Client
	baseURL string
	tokens  TokenProvider
}

func (c *graphClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", build_info.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request to graph: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read graph response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newGraphError(resp.StatusCode, resp.Header.Get, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse graph response: %w", err)
	}
	return nil
}
