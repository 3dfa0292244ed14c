package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestQueueRunsInOrderAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(Options{Workers: 1, QueueSize: 16})
	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, q.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}
	q.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, Stats{Sent: 10}, q.Stats())
	assert.ErrorIs(t, q.Enqueue(context.Background(), "a", "b", func() error { return nil }), ErrQueueClosed)
	q.Close()
}

func TestQueueRetriesTransientErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, q.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	}))
	var permanent atomic.Int32
	require.NoError(t, q.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		permanent.Add(1)
		return errors.New("chat not found (400)")
	}))
	q.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(1), permanent.Load(), "non-network errors are not retried")
	assert.Equal(t, uint64(1), q.Stats().Failed)
}

func TestQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	q := NewQueue(Options{Workers: 1, QueueSize: 1})
	started := make(chan struct{})
	require.NoError(t, q.Enqueue(context.Background(), "a", "", func() error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, q.Enqueue(context.Background(), "b", "", func() error { return nil }))
	assert.ErrorIs(t, q.Enqueue(context.Background(), "c", "", func() error { return nil }), ErrQueueFull)
	close(block)
	q.Close()
}

func TestRedactAndClassify(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_CC/sendMessage": timeout`)
	assert.NotContains(t, Redact(err), "123456:AA-bb_CC")
	assert.Contains(t, Redact(err), "bot<redacted>")

	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "http_4xx", classifyError(errors.New("telegram: chat not found (400)")))
	assert.Equal(t, "unknown", classifyError(errors.New("weird")))
}
