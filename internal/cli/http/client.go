package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codeexec/internal/executor"
	pkgerrors "codeexec/pkg/errors"
)

const (
	executePath   = "/api/v1/execute"
	languagesPath = "/api/v1/languages"
)

// ResponseInfo carries response details.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

type envelope struct {
	Code    pkgerrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	TraceID string              `json:"trace_id"`
}

// Client talks to a running exec-service.
type Client struct {
	baseURL string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

// Execute submits one request. Transport and envelope errors are folded into
// an internal error result so callers see the same shape as in-process runs.
func (c *Client) Execute(ctx context.Context, req executor.ExecutionRequest) executor.ExecutionResult {
	body, err := json.Marshal(req)
	if err != nil {
		return remoteFailure(fmt.Errorf("encode request failed: %w", err))
	}
	var result executor.ExecutionResult
	if err := c.call(ctx, http.MethodPost, executePath, body, &result); err != nil {
		return remoteFailure(err)
	}
	return result
}

// Languages fetches the remote language table. An unreachable service yields an empty list.
func (c *Client) Languages() []executor.LanguageInfo {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	var langs []executor.LanguageInfo
	if err := c.call(ctx, http.MethodGet, languagesPath, nil, &langs); err != nil {
		return nil
	}
	return langs
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out interface{}) error {
	resp, err := c.Do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("decode response failed (HTTP %d): %w", resp.StatusCode, err)
	}
	if env.Code != pkgerrors.Success {
		return fmt.Errorf("service error %d: %s", env.Code, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data failed: %w", err)
	}
	return nil
}

func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo
	client := &http.Client{Timeout: c.timeout}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read response body failed: %w", err)
	}
	info.Body = bodyBytes
	return info, nil
}

func remoteFailure(err error) executor.ExecutionResult {
	return executor.ExecutionResult{
		Output:    err.Error(),
		Error:     true,
		ErrorKind: executor.ErrorKindInternal,
	}
}
