package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Media types used on the wire.
const (
	MediaSPARQLQuery  = "application/sparql-query"
	MediaSPARQLUpdate = "application/sparql-update"
	MediaJSON         = "application/json"
)

// DefaultMaxResponseSize limits buffered response bodies.
const DefaultMaxResponseSize = 64 * 1024 * 1024 // 64MB

// maxErrorBody limits how much of a failed response is read for classification.
const maxErrorBody = 64 * 1024

// maxBodySnippet bounds TransportError.Body, in bytes.
const maxBodySnippet = 200

// request describes one HTTP exchange.
type request struct {
	op          string // operation name for errors, logs and metrics
	method      string
	url         string
	contentType string
	accept      string
	body        io.Reader
	creds       Credentials
}

// basicAuth returns the Authorization header value for creds.
func basicAuth(creds Credentials) string {
	token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
	return "Basic " + token
}

// exchange performs r and returns the response when its status is 2xx.
// On 401/403 the not-authorized callback runs once before the error is built.
// The caller must close the returned body.
func (c *Client) exchange(ctx context.Context, r request) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: create HTTP request: %w", r.op, err)
	}
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}
	if r.accept != "" {
		httpReq.Header.Set("Accept", r.accept)
	}
	if r.creds.Enabled() {
		httpReq.Header.Set("Authorization", basicAuth(r.creds))
	}

	c.logger.Debug("Sending store request",
		"operation", r.op,
		"method", r.method,
		"url", r.url)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(r.op, 0, time.Since(start))
		return nil, &ConnectionError{Op: r.op, Err: err}
	}
	c.metrics.observe(r.op, resp.StatusCode, time.Since(start))

	c.logger.Debug("Store responded",
		"operation", r.op,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if isAuthStatus(resp.StatusCode) {
		c.notAuthorized()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyHTTPError(r.op, resp.StatusCode, body)
	}

	return resp, nil
}

// readBody performs r and returns the full response body.
func (c *Client) readBody(ctx context.Context, r request) ([]byte, error) {
	resp, err := c.exchange(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// One byte past the limit tells an oversized body from one that fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, &ConnectionError{Op: r.op, Err: fmt.Errorf("read response body: %w", err)}
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, &ResponseTooLargeError{Op: r.op, Limit: c.maxResponseSize}
	}
	return body, nil
}

// doJSON performs r and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	if r.accept == "" {
		r.accept = MediaJSON
	}
	body, err := c.readBody(ctx, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Op: r.op, Err: err}
	}
	return nil
}

// errorBody is the JSON error document some endpoints return.
type errorBody struct {
	Message string `json:"message"`
}

// classifyHTTPError builds the error for a non-2xx response: a RemoteError
// when the body is JSON with a message, a TransportError otherwise.
func classifyHTTPError(op string, statusCode int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return &RemoteError{Op: op, StatusCode: statusCode, Message: eb.Message}
	}

	bodyStr := strings.TrimSpace(string(body))
	if n := maxBodySnippet; len(bodyStr) > n {
		for n > 0 && !utf8.RuneStart(bodyStr[n]) {
			n--
		}
		bodyStr = bodyStr[:n] + "..."
	}
	return &TransportError{Op: op, StatusCode: statusCode, Body: bodyStr}
}
