package guest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fluxwork/durable/internal/guest")

// HTTPRequest is the guest-visible request builder shape:
// method/url/headers/timeout/body.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    []byte
	Timeout time.Duration
}

type HTTPResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// HTTPCapability is the guest-visible fetch operation. A concrete
// transaction wraps this in an is_db=false transaction_enter/exit pair so
// the request/response round trip is itself the recorded event value.
type HTTPCapability interface {
	Fetch(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// httpClient is the default HTTPCapability, grounded on net/http directly
// (no third-party HTTP client appears in the example pack beyond
// provider-specific SDK wrappers that don't fit an arbitrary-URL fetch
// capability; see DESIGN.md).
type httpClient struct {
	maxTimeout   time.Duration
	maxBufferLen int
	client       *http.Client
}

// NewHTTPClient builds an HTTPCapability. maxBufferLen bounds the size of
// any response body it will read into memory on the guest's behalf; a
// response whose body exceeds it is reported as an error rather than
// allocated in full.
func NewHTTPClient(maxTimeout time.Duration, maxBufferLen int) HTTPCapability {
	return &httpClient{maxTimeout: maxTimeout, maxBufferLen: maxBufferLen, client: &http.Client{}}
}

func (c *httpClient) Fetch(ctx context.Context, req HTTPRequest) (*HTTPResponse, error) {
	ctx, span := tracer.Start(ctx, "guest.http.Fetch", trace.WithAttributes(
		attribute.String("durable.http.method", req.Method),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 || timeout > c.maxTimeout {
		timeout = c.maxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, int64(c.maxBufferLen)+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(body) > c.maxBufferLen {
		return nil, fmt.Errorf("response body exceeds max_returned_buffer_len (%d bytes)", c.maxBufferLen)
	}
	return &HTTPResponse{Status: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}
