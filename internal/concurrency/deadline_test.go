package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadline_freshDeadlineNotExpiredWithTimeRemaining(t *testing.T) {
	d := NewDeadline(50 * time.Millisecond)
	assert.False(t, d.Expired())
	assert.Greater(t, d.Remaining(), time.Duration(0))
}

func TestDeadline_expiresAfterBudget(t *testing.T) {
	d := NewDeadline(1 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, d.Expired())
	assert.Equal(t, time.Duration(0), d.Remaining())
}

func TestWithStageBudget_cappedByRemainingTurnBudget(t *testing.T) {
	d := NewDeadline(10 * time.Millisecond)
	ctx, cancel := WithStageBudget(t.Context(), d, time.Hour)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 20*time.Millisecond)
}
