// Package remote holds HTTP clients for the order ingestion, extraction and
// matching services.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/rs/zerolog"

	"poflow/internal"
	"poflow/internal/config"
)

// StatusError is a non-success response from a remote service.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Service, e.Status, e.Body)
}

// Options configures the shared transport behaviour of every client.
type Options struct {
	Timeout     time.Duration
	RateLimit   int
	MaxAttempts int
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

func OptionsFromConfig(cfg config.Config, log zerolog.Logger) Options {
	return Options{
		Timeout:     time.Duration(cfg.RemoteTimeoutMs) * time.Millisecond,
		RateLimit:   cfg.RemoteRateLimit,
		MaxAttempts: cfg.RemoteMaxAttempts,
		Logger:      log,
	}
}

type client struct {
	service     string
	httpClient  *http.Client
	limiter     *RateLimiter
	maxAttempts int
	backoff     func(attempt int) time.Duration
	log         zerolog.Logger
}

func newClient(service string, opts Options) *client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &client{
		service:     service,
		httpClient:  httpClient,
		limiter:     NewRateLimiter(opts.RateLimit),
		maxAttempts: maxAttempts,
		backoff:     jitteredBackoff,
		log:         opts.Logger.With().Str("service", service).Logger(),
	}
}

func jitteredBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

// request is rebuilt on every attempt because bodies are single-use.
type request struct {
	method      string
	url         string
	body        []byte
	contentType string
	// once marks requests that create state on the server. They are only
	// retried on 429, which the server answers before doing any work.
	once bool
}

// do sends req with rate limiting and retries retryable statuses and
// transport errors. The response body is returned for any 2xx status.
func (c *client) do(ctx context.Context, req request) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, bytes.NewReader(req.body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "application/json")
		if req.contentType != "" {
			httpReq.Header.Set("Content-Type", req.contentType)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.log.Debug().Err(err).Int("attempt", attempt).Str("url", req.url).Msg("request failed")
			if req.once || !c.wait(ctx, attempt) {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.log.Debug().Err(readErr).Int("attempt", attempt).Str("url", req.url).Msg("reading response failed")
			if req.once || !c.wait(ctx, attempt) {
				break
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &StatusError{Service: c.service, Status: resp.StatusCode, Body: string(body)}
			if c.shouldRetry(req, resp.StatusCode) {
				c.log.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Str("url", req.url).Msg("retryable status")
				if c.wait(ctx, attempt) {
					continue
				}
			}
			return nil, lastErr
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New(c.service + " request failed")
	}
	return nil, lastErr
}

// wait sleeps before the next attempt. It reports false when no attempt is
// left or ctx ended.
func (c *client) wait(ctx context.Context, attempt int) bool {
	if attempt >= c.maxAttempts {
		return false
	}
	t := time.NewTimer(c.backoff(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		blob, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = blob
		contentType = "application/json"
	}

	resp, err := c.do(ctx, request{method: method, url: url, body: body, contentType: contentType})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}

// postFile uploads doc as a single multipart form field.
func (c *client) postFile(ctx context.Context, url, field string, doc internal.Document, out any) error {
	return c.sendFile(ctx, request{method: http.MethodPost, url: url}, field, doc, out)
}

func (c *client) sendFile(ctx context.Context, req request, field string, doc internal.Document, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, doc.Name))
	contentType := doc.ContentType
	if contentType == "" {
		contentType = internal.MediaTypePDF
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req.body = buf.Bytes()
	req.contentType = mw.FormDataContentType()
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}

func (c *client) shouldRetry(req request, status int) bool {
	if req.once {
		return status == http.StatusTooManyRequests
	}
	return isRetryableStatus(status)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
