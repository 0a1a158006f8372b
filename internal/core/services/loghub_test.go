package services

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkaya/expbench/internal/core/domain"
	"github.com/dkaya/expbench/internal/core/ports"
)

// tailRuntime hands out one controllable log pipe per TailLogs call and
// counts opens and closes.
type tailRuntime struct {
	mu     sync.Mutex
	opened int
	closed atomic.Int32
	writer *io.PipeWriter

	err error
}

func (f *tailRuntime) TailLogs(ctx context.Context, nameOrID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.opened++
	pr, pw := io.Pipe()
	f.writer = pw
	go func() {
		<-ctx.Done()
		pr.CloseWithError(ctx.Err())
	}()
	return &countingCloser{ReadCloser: pr, n: &f.closed}, nil
}

func (f *tailRuntime) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *tailRuntime) write(t *testing.T, s string) {
	t.Helper()
	f.mu.Lock()
	pw := f.writer
	f.mu.Unlock()
	_, err := pw.Write([]byte(s))
	require.NoError(t, err)
}

func (f *tailRuntime) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writer.Close()
}

func (f *tailRuntime) Build(context.Context, string, string, string) (io.ReadCloser, error) {
	panic("unused")
}
func (f *tailRuntime) Run(context.Context, ports.RunOptions) (string, error) { panic("unused") }
func (f *tailRuntime) StopAndRemove(context.Context, string) (string, error) { panic("unused") }
func (f *tailRuntime) Inspect(context.Context, string) (domain.ContainerState, error) {
	panic("unused")
}

type countingCloser struct {
	io.ReadCloser
	n *atomic.Int32
}

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return c.ReadCloser.Close()
}

func TestFanOutSharesOneTail(t *testing.T) {
	rt := &tailRuntime{}
	hub := NewLogHub(rt)

	const n = 3
	var chans []<-chan []byte
	var cancels []func()
	for i := 0; i < n; i++ {
		ch, cancel, err := hub.Subscribe(context.Background(), "cid")
		require.NoError(t, err)
		chans = append(chans, ch)
		cancels = append(cancels, cancel)
	}
	assert.Equal(t, 1, rt.openCount(), "N subscribers must share one tail")

	rt.write(t, "alpha")
	rt.write(t, "beta")
	rt.write(t, "gamma")
	rt.end()

	for _, ch := range chans {
		var got []string
		for chunk := range ch {
			got = append(got, string(chunk))
		}
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
	}
	for _, cancel := range cancels {
		cancel()
	}
}

func TestLastUnsubscribeClosesTail(t *testing.T) {
	rt := &tailRuntime{}
	hub := NewLogHub(rt)

	_, cancel1, err := hub.Subscribe(context.Background(), "cid")
	require.NoError(t, err)
	_, cancel2, err := hub.Subscribe(context.Background(), "cid")
	require.NoError(t, err)

	cancel1()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), rt.closed.Load(), "tail must survive a non-final unsubscribe")

	cancel2()
	require.Eventually(t, func() bool {
		return rt.closed.Load() == 1
	}, time.Second, 10*time.Millisecond, "last unsubscribe must close the tail")
}

func TestStreamEndClosesSubscribers(t *testing.T) {
	rt := &tailRuntime{}
	hub := NewLogHub(rt)

	ch, cancel, err := hub.Subscribe(context.Background(), "cid")
	require.NoError(t, err)
	defer cancel()

	rt.write(t, "final")
	rt.end()

	var got []string
	for chunk := range ch {
		got = append(got, string(chunk))
	}
	assert.Equal(t, []string{"final"}, got)

	// The stream is gone; a new subscriber opens a fresh tail.
	_, cancel2, err := hub.Subscribe(context.Background(), "cid")
	require.NoError(t, err)
	cancel2()
	assert.Equal(t, 2, rt.openCount())
}

// gatedTailRuntime stalls tail opens for the "slow" container until the gate
// is released.
type gatedTailRuntime struct {
	tailRuntime
	gate chan struct{}
}

func (f *gatedTailRuntime) TailLogs(ctx context.Context, nameOrID string) (io.ReadCloser, error) {
	if nameOrID == "slow" {
		<-f.gate
	}
	return f.tailRuntime.TailLogs(ctx, nameOrID)
}

func TestSubscribeDoesNotSerializeContainers(t *testing.T) {
	rt := &gatedTailRuntime{gate: make(chan struct{})}
	hub := NewLogHub(rt)

	// A daemon that is slow to open one container's tail must not delay
	// subscriptions to any other container.
	go func() {
		if _, cancel, err := hub.Subscribe(context.Background(), "slow"); err == nil {
			cancel()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, cancel, err := hub.Subscribe(context.Background(), "fast")
		if assert.NoError(t, err) {
			cancel()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscription blocked behind a slow tail open for another container")
	}
	close(rt.gate)
}

func TestSubscribeUnknownContainer(t *testing.T) {
	rt := &tailRuntime{err: domain.ErrNotFound}
	hub := NewLogHub(rt)

	_, _, err := hub.Subscribe(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
