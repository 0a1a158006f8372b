package services

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/dkaya/expbench/internal/core/ports"
)

// subscriberBuffer is the per-subscriber chunk backlog. A subscriber that
// falls this far behind is dropped so it cannot stall delivery to others.
const subscriberBuffer = 64

// LogHub opens at most one runtime log tail per container and fans the
// chunks out to every subscriber. N browser tabs on the same container cost
// one tail, not N.
type LogHub struct {
	runtime ports.ContainerRuntime

	mu      sync.Mutex
	streams map[string]*logStream
}

type logStream struct {
	cancel context.CancelFunc

	// ready is closed once the tail open attempt finishes; err is set
	// before the close and may only be read after it.
	ready chan struct{}
	err   error

	mu   sync.Mutex
	subs map[chan []byte]struct{}
	done bool
}

func NewLogHub(rt ports.ContainerRuntime) *LogHub {
	return &LogHub{
		runtime: rt,
		streams: make(map[string]*logStream),
	}
}

// Subscribe attaches the caller to the container's log stream. The first
// subscriber starts the tail; later ones share it. The returned cancel
// function detaches this subscriber only; when the last one leaves, the
// tail is closed. The channel is closed when the stream ends for any reason.
//
// The hub lock covers only the stream-table lookup; opening the tail is a
// network call and happens on the stream itself, so a slow daemon response
// for one container never delays subscriptions to others.
func (h *LogHub) Subscribe(ctx context.Context, containerID string) (<-chan []byte, func(), error) {
	for {
		h.mu.Lock()
		s, ok := h.streams[containerID]
		if !ok {
			tailCtx, cancel := context.WithCancel(context.Background())
			s = &logStream{
				cancel: cancel,
				ready:  make(chan struct{}),
				subs:   make(map[chan []byte]struct{}),
			}
			h.streams[containerID] = s
			h.mu.Unlock()
			go h.open(tailCtx, containerID, s)
		} else {
			h.mu.Unlock()
		}

		ch, attached := s.attach()
		if !attached {
			// Raced with stream completion; retry with a fresh tail.
			h.drop(containerID, s)
			continue
		}

		<-s.ready
		if s.err != nil {
			return nil, nil, s.err
		}
		return ch, func() { h.unsubscribe(containerID, s, ch) }, nil
	}
}

// open performs the tail open for a freshly created stream and hands off to
// the pump. On failure every waiter sees the error through ready/err and the
// stream entry is dropped.
func (h *LogHub) open(ctx context.Context, containerID string, s *logStream) {
	rc, err := h.runtime.TailLogs(ctx, containerID)
	if err != nil {
		s.err = err
		close(s.ready)
		h.drop(containerID, s)
		s.cancel()
		s.finish()
		return
	}
	close(s.ready)
	h.pump(containerID, s, rc)
}

// pump reads the tail and broadcasts each chunk in arrival order. On stream
// end it drops the stream entry and closes every subscriber channel.
func (h *LogHub) pump(containerID string, s *logStream, rc io.ReadCloser) {
	defer rc.Close()
	buf := make([]byte, 4096)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.broadcast(chunk)
		}
		if err != nil {
			break
		}
	}

	h.drop(containerID, s)
	s.finish()
	log.Printf("log stream for %s ended", shortID(containerID))
}

func (h *LogHub) drop(containerID string, s *logStream) {
	h.mu.Lock()
	if h.streams[containerID] == s {
		delete(h.streams, containerID)
	}
	h.mu.Unlock()
}

func (h *LogHub) unsubscribe(containerID string, s *logStream, ch chan []byte) {
	if last := s.detach(ch); last {
		h.drop(containerID, s)
		s.cancel()
	}
}

func (s *logStream) attach() (chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, false
	}
	ch := make(chan []byte, subscriberBuffer)
	s.subs[ch] = struct{}{}
	return ch, true
}

// detach removes one subscriber and reports whether it was the last.
func (s *logStream) detach(ch chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; !ok {
		return false
	}
	delete(s.subs, ch)
	return len(s.subs) == 0 && !s.done
}

// broadcast delivers a chunk to every subscriber in order. Only the pump
// goroutine calls this, so closing an overflowing channel here cannot race
// another send.
func (s *logStream) broadcast(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for ch := range s.subs {
		select {
		case ch <- chunk:
		default:
			delete(s.subs, ch)
			close(ch)
			dropped++
		}
	}
	if dropped > 0 && len(s.subs) == 0 {
		s.cancel()
	}
}

func (s *logStream) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan []byte]struct{})
}
