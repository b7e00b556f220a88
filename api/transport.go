// ABOUTME: HTTP transport for the CRM REST API with bearer auth and request ids
// ABOUTME: Retries idempotent GETs with exponential backoff; mutations are sent once
package api

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
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
)

// Request is one call against the API. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Upload *Upload
}

// Upload describes a multipart file body. Progress receives 0-100.
type Upload struct {
	Field    string
	FileName string
	Reader   io.Reader
	Size     int64
	Progress func(percent int)
}

type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// Transport performs network I/O for the resource module.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the default Transport over net/http.
type HTTPTransport struct {
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
	maxRetries uint64

	entropyMu sync.Mutex
	entropy   io.Reader
}

type Option func(*HTTPTransport)

// WithTokenSource authenticates every request with a bearer token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(t *HTTPTransport) {
		timeout := t.client.Timeout
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, t.client)
		t.client = oauth2.NewClient(ctx, ts)
		t.client.Timeout = timeout
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *HTTPTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// WithMaxRetries bounds retries of GET requests. Zero disables retrying.
func WithMaxRetries(n int) Option {
	return func(t *HTTPTransport) {
		if n >= 0 {
			t.maxRetries = uint64(n)
		}
	}
}

// NewHTTPTransport creates a transport rooted at baseURL. Options apply in
// order, so WithHTTPClient should come before WithTokenSource.
func NewHTTPTransport(baseURL string, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
		maxRetries: defaultMaxRetries,
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) requestID() string {
	t.entropyMu.Lock()
	defer t.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), t.entropy).String()
}

// Do sends req. Non-2xx responses come back as *Error.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.baseURL == "" {
		return nil, fmt.Errorf("base url not set")
	}

	requestID := t.requestID()
	logger := t.logger.With(
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("request_id", requestID),
	)

	if req.Method != http.MethodGet || t.maxRetries == 0 {
		resp, err := t.send(ctx, req, requestID)
		if err != nil {
			logger.Debug("request failed", zap.Error(err))
		}
		return resp, err
	}

	var resp *Response
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		resp, err = t.send(ctx, req, requestID)
		if err == nil {
			return nil
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return backoff.Permanent(err)
		}
		logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, t.maxRetries), ctx)); err != nil {
		logger.Debug("request failed", zap.Int("attempts", attempt), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (t *HTTPTransport) send(ctx context.Context, req *Request, requestID string) (*Response, error) {
	endpoint := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	body, contentType, err := t.body(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: transportFallback, RequestID: requestID, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{StatusCode: httpResp.StatusCode, Message: transportFallback, RequestID: requestID, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, parseError(httpResp.StatusCode, data, requestID)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: data, RequestID: requestID}, nil
}

func (t *HTTPTransport) body(req *Request) (io.Reader, string, error) {
	if req.Upload != nil {
		return multipartBody(req.Upload)
	}
	if req.Body == nil {
		return http.NoBody, "", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

// multipartBody streams the upload through a pipe so progress tracks bytes
// actually consumed by the HTTP client.
func multipartBody(u *Upload) (io.Reader, string, error) {
	field := u.Field
	if field == "" {
		field = "file"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(field, u.FileName)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: u.Reader, total: u.Size, report: u.Progress}
		if _, err := io.Copy(part, src); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := mw.Close(); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()

	return pr, mw.FormDataContentType(), nil
}

type progressReader struct {
	r      io.Reader
	read   int64
	total  int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		// Hold 100 back until the server has answered.
		if pct >= 100 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
