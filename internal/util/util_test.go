package util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON(t *testing.T) {
	data, err := MarshalJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	_, err = MarshalJSON(make(chan int))
	assert.Error(t, err)
}

func TestUnmarshalJSON(t *testing.T) {
	var v map[string]int
	require.NoError(t, UnmarshalJSON([]byte(`{"a":1}`), &v))
	assert.Equal(t, 1, v["a"])

	err := UnmarshalJSON([]byte(`{invalid`), &v)
	assert.Error(t, err)
}

func TestNewTimeoutContext(t *testing.T) {
	ctx, cancel := NewTimeoutContext(50 * time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 20*time.Millisecond)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not expire")
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", TraceIDFromContext(ctx))

	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestNewContextWithTraceID_Generates(t *testing.T) {
	ctx := NewContextWithTraceID(context.Background())
	id := TraceIDFromContext(ctx)
	assert.NotEmpty(t, id)

	other := TraceIDFromContext(NewContextWithTraceID(context.Background()))
	assert.NotEqual(t, id, other)
}

func TestLogError_IncludesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogError(logger, "http", "decode payload", errors.New("boom"), "remote", "1.2.3.4")

	out := buf.String()
	assert.Contains(t, out, "Failed to decode payload")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "remote=1.2.3.4")
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo(logger, "test", func() {
		defer wg.Done()
		panic("boom")
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}

func TestSafeGo_RunsFunction(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ran := make(chan struct{})
	SafeGo(logger, "test", func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}
