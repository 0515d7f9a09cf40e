package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_runsAllTasksSuccessfully(t *testing.T) {
	p, err := NewPool(4)
	require.NoError(t, err)
	defer p.Release()

	var count int64
	errsOut := p.Run(context.Background(), 10, func(context.Context, int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	for _, e := range errsOut {
		assert.NoError(t, e)
	}
	assert.Equal(t, int64(10), count)
}

func TestPool_returnsPerIndexErrors(t *testing.T) {
	p, err := NewPool(2)
	require.NoError(t, err)
	defer p.Release()

	errsOut := p.Run(context.Background(), 3, func(_ context.Context, i int) error {
		if i == 1 {
			return errors.New("boom")
		}
		return nil
	})

	require.Len(t, errsOut, 3)
	assert.NoError(t, errsOut[0])
	assert.Error(t, errsOut[1])
	assert.NoError(t, errsOut[2])
}

func TestNewPool_nonPositiveSizeDefaultsToOne(t *testing.T) {
	p, err := NewPool(0)
	require.NoError(t, err)
	defer p.Release()

	errsOut := p.Run(context.Background(), 1, func(context.Context, int) error { return nil })
	assert.NoError(t, errsOut[0])
}
