package trustcall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Complete(t *testing.T) {
	t.Parallel()
	var gotPath, gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithAPIKey("sk-test"))
	raw, err := c.Complete(context.Background(), []byte(`{"model":"m"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"choices":[]}`, string(raw))
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_NoAPIKeyNoHeader(t *testing.T) {
	t.Parallel()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Complete(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_HTTPErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Complete(context.Background(), []byte(`{}`))
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.Equal(t, srv.URL, terr.Endpoint)
	assert.Contains(t, err.Error(), "model not found")
}

func TestClient_ErrorBodyTruncated(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Complete(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "...(truncated)")
	assert.Less(t, len(err.Error()), 700)
}

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()
	c := NewClient("http://127.0.0.1:1", nil)
	_, err := c.Complete(context.Background(), []byte(`{}`))
	require.Error(t, err)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.Status)
}

func TestClient_ContextDeadline(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_CapabilityFromTable(t *testing.T) {
	t.Parallel()
	table := NewCapabilityTable(CapabilityToolCalling, map[string]BackendCapability{
		"http://localhost:8000/v1": CapabilityNativeStructured,
	})

	vllm := NewClient("http://localhost:8000/v1", table)
	assert.Equal(t, CapabilityNativeStructured, vllm.Capability())
	assert.Equal(t, "http://localhost:8000/v1", vllm.Endpoint())

	other := NewClient("https://api.example.com/v1", table)
	assert.Equal(t, CapabilityToolCalling, other.Capability())
}
