package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartTicksAndExpires(t *testing.T) {
	r := NewRegistry()
	var ticks int32
	expired := make(chan struct{})

	r.Start("room-1", 2*time.Second, func(remaining time.Duration) {
		atomic.AddInt32(&ticks, 1)
	}, func() {
		close(expired)
	})

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not expire in time")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt32(&ticks), int32(3))
	assert.False(t, r.Active("room-1"))
}

func TestCancelPreventsExpire(t *testing.T) {
	r := NewRegistry()
	expired := make(chan struct{})

	r.Start("room-2", 2*time.Second, nil, func() { close(expired) })
	r.Cancel("room-2")

	select {
	case <-expired:
		t.Fatal("cancelled timer must not expire")
	case <-time.After(3 * time.Second):
	}
	assert.False(t, r.Active("room-2"))
}

func TestStartTwiceIsIdempotentPerTick(t *testing.T) {
	r := NewRegistry()
	var firstExpired, secondExpired int32

	r.Start("room-3", time.Second, nil, func() { atomic.AddInt32(&firstExpired, 1) })
	r.Start("room-3", 3*time.Second, nil, func() { atomic.AddInt32(&secondExpired, 1) })

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&firstExpired), "superseded timer must never fire")

	r.Cancel("room-3")
	require.Eventually(t, func() bool { return !r.Active("room-3") }, time.Second, 10*time.Millisecond)
}

func TestZeroDurationExpiresImmediately(t *testing.T) {
	r := NewRegistry()
	expired := make(chan struct{})
	r.Start("room-4", 0, nil, func() { close(expired) })

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("zero-duration timer should expire on the first tick")
	}
}
