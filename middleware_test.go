package trustcall

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	t.Parallel()
	var order []string
	tag := func(name string) Middleware {
		return func(next Caller) Caller {
			return CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
				order = append(order, name)
				return next.Complete(ctx, body)
			})
		}
	}
	base := CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
		order = append(order, "base")
		return []byte(`{}`), nil
	})

	_, err := Chain(base, tag("outer"), tag("inner")).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestWithLogging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	base := CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
		return []byte(`{"choices":[]}`), nil
	})
	raw, err := Chain(base, WithLogging(logger)).Complete(context.Background(), []byte(`{"model":"m"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"choices":[]}`, string(raw))
	assert.Contains(t, buf.String(), "backend call start")
	assert.Contains(t, buf.String(), "backend call end")
}

func TestWithLogging_Error(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	base := CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
		return nil, errors.New("connection refused")
	})
	_, err := Chain(base, WithLogging(logger)).Complete(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "backend call failed")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestWithRecovery(t *testing.T) {
	t.Parallel()
	base := CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
		panic("transport blew up")
	})

	raw, err := Chain(base, WithRecovery()).Complete(context.Background(), nil)
	assert.Nil(t, raw)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "transport blew up")
}

func TestWithRecovery_PassthroughWithoutPanic(t *testing.T) {
	t.Parallel()
	base := CallerFunc(func(ctx context.Context, body []byte) ([]byte, error) {
		return []byte(`{}`), nil
	})
	raw, err := Chain(base, WithRecovery()).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(raw))
}
