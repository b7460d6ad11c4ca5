package guest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientFetchRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bar", r.Header.Get("X-Foo"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.Header().Set("X-Reply", "ok")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("response-body"))
	}))
	defer srv.Close()

	client := NewHTTPClient(5*time.Second, 1024)
	resp, err := client.Fetch(context.Background(), HTTPRequest{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string][]string{"X-Foo": {"bar"}},
		Body:    []byte("payload"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "response-body", string(resp.Body))
	assert.Equal(t, "ok", resp.Headers.Get("X-Reply"))
}

func TestHTTPClientFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	client := NewHTTPClient(5*time.Second, 4)
	_, err := client.Fetch(context.Background(), HTTPRequest{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	require.Error(t, err, "response body exceeding max_returned_buffer_len should error")
}

func TestHTTPClientFetchClampsExcessiveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(10*time.Millisecond, 1024)
	_, err := client.Fetch(context.Background(), HTTPRequest{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: time.Hour, // must be clamped down to maxTimeout
	})
	require.Error(t, err, "request should time out once clamped to the 10ms max")
}
