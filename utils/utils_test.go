package utils

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)

	require.NoError(t, err)
	assert.Len(t, code, 12)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]+$`), code)
}

func TestGenerateCode_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(6)
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNewOrderNumber(t *testing.T) {
	number, err := NewOrderNumber()

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(number, "ORD-"))
	assert.Len(t, number, 16)
}

func TestCircuitBreaker_PassesThroughResults(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return nil })
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = cb.Execute(ctx, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func() error { return boom })
	}

	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called, "open breaker must shed the request")
}

func TestCircuitBreaker_StaysClosedBelowFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()
	boom := errors.New("boom")

	// 2 failures out of 5 requests is under the 0.6 trip ratio.
	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return nil })
	}
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return boom })
	}

	assert.Equal(t, StateClosed, cb.State())
}
