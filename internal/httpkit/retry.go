package httpkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBackoffUnit is the linear step between retries.
	DefaultBackoffUnit = time.Second

	// maxBackoffSteps caps the delay at three units (3s by default).
	maxBackoffSteps = 3

	// maxResponseSize caps how much of a response body is buffered.
	maxResponseSize = 10 << 20 // 10 MiB

	// MaxErrorText is the default length TrimForError cuts response bodies to.
	MaxErrorText = 500
)

// errServerStatus marks a 5xx attempt so the retry loop treats it as
// retryable while still handing the response back when retries run out.
var errServerStatus = errors.New("server error status")

// Request is a fully-formed outbound request. The body is held as bytes so
// that every attempt sends an identical payload.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a buffered HTTP response. The body has already been read in
// full (up to 10 MiB) inside the attempt that produced it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// RetryPolicy bounds a single logical call.
type RetryPolicy struct {
	// Timeout bounds each attempt, including reading the body. Zero
	// means no per-attempt limit.
	Timeout time.Duration

	// Retries is how many additional attempts may follow the first.
	Retries int

	// BackoffUnit is the linear backoff step; zero means one second.
	BackoffUnit time.Duration

	// onRetry, when set, is called before sleeping ahead of retry
	// attempt n (1-indexed).
	onRetry func(n int, delay time.Duration, err error)

	// Logger receives retry diagnostics at debug level.
	Logger *slog.Logger
}

// linearBackOff yields unit, 2*unit, 3*unit, 3*unit, ... It implements
// backoff.BackOff.
type linearBackOff struct {
	unit time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return Backoff(b.n, b.unit)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Backoff returns the delay before retry attempt n (1-indexed):
// min(n*unit, 3*unit).
func Backoff(n int, unit time.Duration) time.Duration {
	if n > maxBackoffSteps {
		n = maxBackoffSteps
	}
	return time.Duration(n) * unit
}

// Send performs req with client, retrying network failures and 5xx
// responses up to p.Retries times with capped linear backoff. Non-5xx
// responses, 4xx included, are returned without retry. When the budget is
// spent the last outcome wins: the last error if the final attempt failed,
// otherwise the final 5xx response (with a nil error).
func Send(ctx context.Context, client *http.Client, req Request, p RetryPolicy) (*Response, error) {
	if client == nil {
		client = NewClient()
	}
	unit := p.BackoffUnit
	if unit <= 0 {
		unit = DefaultBackoffUnit
	}
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}

	var b backoff.BackOff = &linearBackOff{unit: unit}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	attempt := 0
	op := func() (*Response, error) {
		attempt++
		resp, err := sendOnce(ctx, client, req, p.Timeout)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("%w: HTTP %d", errServerStatus, resp.StatusCode)
		}
		return resp, nil
	}

	notify := func(err error, delay time.Duration) {
		if p.Logger != nil {
			p.Logger.Debug("retrying request",
				"method", req.Method,
				"url", redactURL(req.URL),
				"attempt", attempt+1,
				"max_attempts", retries+1,
				"delay", delay,
				"error", err,
			)
		}
		if p.onRetry != nil {
			p.onRetry(attempt, delay, err)
		}
	}

	resp, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil && errors.Is(err, errServerStatus) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// sendOnce performs one attempt bounded by timeout. The body is read
// before the attempt's context is released so a timeout aborts the whole
// exchange, not just the header wait.
func sendOnce(ctx context.Context, client *http.Client, req Request, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create HTTP request: %w", err))
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 1<<20))
		httpResp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// TrimForError collapses whitespace runs to single spaces and cuts the
// text to max characters, appending "..." when something was dropped.
func TrimForError(text string, max int) string {
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	runes := []rune(cleaned)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return cleaned
}

// redactURL strips the query string, which may carry an API key.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i] + "?…"
	}
	return raw
}
