package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VCasecnikovs/duorec/internal/metrics"
	"github.com/VCasecnikovs/duorec/internal/segment"
)

// Config contains recognizer client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Language      string // empty = auto-detect
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// Client posts WAV files to a whisper-server-compatible transcription
// endpoint and maps the word-level timing in the response onto token
// timings. It implements Recognizer.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Rate limiting semaphore
	metrics    *metrics.Metrics

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// recognitionResponse is the verbose-JSON response of the ASR endpoint.
type recognitionResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Words []struct {
		Word        string  `json:"word"`
		Start       float64 `json:"start"`
		End         float64 `json:"end"`
		Probability float64 `json:"probability"`
	} `json:"words,omitempty"`
}

// ClientStats represents client statistics.
type ClientStats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	TotalRetries    uint64  `json:"total_retries"`
}

// NewClient creates a recognizer client. m may be nil to disable metrics.
func NewClient(config Config, m *metrics.Metrics) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("%w: no recognizer endpoint configured", ErrRecognitionUnavailable)
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
		metrics:    m,
	}, nil
}

// Recognize implements Recognizer.
func (c *Client) Recognize(ctx context.Context, wavPath string) (*ChannelResult, error) {
	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotal()
	if c.metrics != nil {
		c.metrics.RecordRecognitionRequest()
	}

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementRetries()
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.doRequest(ctx, wavPath)
		if err == nil {
			c.incrementSuccess()
			if c.metrics != nil {
				c.metrics.RecordRecognitionSuccess(time.Since(startTime).Seconds())
			}
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	c.incrementFailed()
	if c.metrics != nil {
		c.metrics.RecordRecognitionFailure(time.Since(startTime).Seconds())
	}
	if isConnectionError(lastErr) {
		return nil, fmt.Errorf("%w: endpoint %s unreachable: %v",
			ErrRecognitionUnavailable, c.config.Endpoint, lastErr)
	}
	return nil, fmt.Errorf("recognition failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRequest performs a single multipart upload of the WAV file.
func (c *Client) doRequest(ctx context.Context, wavPath string) (*ChannelResult, error) {
	body, contentType, err := c.createMultipartRequest(wavPath)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{status: resp.StatusCode, body: string(respBody)}
	}

	var parsed recognitionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	result := &ChannelResult{
		Text:  strings.TrimSpace(parsed.Text),
		Model: parsed.Model,
	}
	if result.Model == "" {
		result.Model = c.config.Model
	}
	for _, w := range parsed.Words {
		result.Tokens = append(result.Tokens, segment.TokenTiming{
			Token:      w.Word,
			Start:      w.Start,
			End:        w.End,
			Confidence: w.Probability,
		})
	}
	return result, nil
}

// createMultipartRequest builds the multipart/form-data body for one file.
func (c *Client) createMultipartRequest(wavPath string) (io.Reader, string, error) {
	audioData, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio file %s: %w", wavPath, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(audioData); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"request_id":      uuid.NewString(),
		"response_format": "verbose_json",
		"word_timestamps": "true",
	}
	if c.config.Model != "" {
		fields["model"] = c.config.Model
	}
	if c.config.Language != "" {
		fields["language"] = c.config.Language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests)
	}
	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
	}
}

func (c *Client) incrementTotal()   { c.mu.Lock(); c.totalRequests++; c.mu.Unlock() }
func (c *Client) incrementSuccess() { c.mu.Lock(); c.successRequests++; c.mu.Unlock() }
func (c *Client) incrementFailed()  { c.mu.Lock(); c.failedRequests++; c.mu.Unlock() }
func (c *Client) incrementRetries() { c.mu.Lock(); c.totalRetries++; c.mu.Unlock() }

// httpError carries the status code so retry classification can see it.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.status, e.body)
}

// isRetryable reports whether a request should be attempted again:
// network failures and 5xx responses are transient, 4xx are not.
func isRetryable(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.status >= 500 || he.status == http.StatusTooManyRequests
	}
	return true
}

func isConnectionError(err error) bool {
	var he *httpError
	if err == nil || errors.As(err, &he) {
		return false
	}
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host")
}
