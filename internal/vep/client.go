// Package vep talks to the external variant-effect prediction service: one
// batch HTTP call per dispatched batch, and the parser that turns its
// response into annotation records (SPEC_FULL.md §4.4). The retriable/
// non-retriable distinction the batch processor needs is carried as a typed
// error rather than a string, mirroring how the teacher's job service
// distinguishes retriable job failures.
package vep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vareng/annotator/internal/metrics"
)

// TransientError marks a whole-batch failure the caller should retry:
// a connection-level failure, a 5xx response, or a timeout.
type TransientError struct {
	cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("vep: transient batch failure: %v", e.cause)
}

func (e *TransientError) Unwrap() error { return e.cause }

// VariantDescriptor is one member of the outbound batch request. ID carries
// the caller's canonical variant key so the response can be matched back
// without relying on positional ordering.
type VariantDescriptor struct {
	ID    string `json:"id"`
	Chrom string `json:"chrom"`
	Pos   int    `json:"pos"`
	Ref   string `json:"ref"`
	Alt   string `json:"alt"`
}

type batchRequest struct {
	Variants []VariantDescriptor `json:"variants"`
}

// Client is a shared, stateless HTTP client for the VEP batch endpoint.
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// New creates a Client bound to url, applying timeout to every batch call.
func New(url string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{},
		url:        url,
		timeout:    timeout,
		metrics:    m,
	}
}

// Annotate issues one POST carrying the entire batch and returns the raw
// response body for the parser. A connection failure, a non-2xx status of
// 500 or above, or exceeding the configured timeout are all reported as a
// *TransientError; everything else is returned unwrapped.
func (c *Client) Annotate(ctx context.Context, variants []VariantDescriptor) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(batchRequest{Variants: variants})
	if err != nil {
		return nil, fmt.Errorf("vep: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vep: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.VEPCallDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, &TransientError{cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{cause: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return nil, &TransientError{cause: fmt.Errorf("vep responded with status %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("vep: request rejected with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
