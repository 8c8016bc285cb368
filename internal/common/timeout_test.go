package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout_Completes(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestWithTimeout_Expires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryable(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(ctx, time.Second, func(opCtx context.Context) error {
		<-opCtx.Done()
		return opCtx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout_ZeroDisables(t *testing.T) {
	called := false
	err := WithTimeout(context.Background(), 0, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
