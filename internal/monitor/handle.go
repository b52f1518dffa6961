package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Source is the connection layer's probability endpoint.
type Source interface {
	// Subscribe starts delivery. The returned Subscription's channel is
	// closed when the stream ends; Err then reports why.
	Subscribe(ctx context.Context) (Subscription, error)

	// Connected reports whether the source currently has a live stream.
	Connected() bool
}

// Subscription is one live stream of samples.
type Subscription interface {
	Samples() <-chan Sample
	Err() error
	Unsubscribe()
}

// TriggerFunc receives every sample that crosses the threshold.
// It is called with the handle lock held and must not block.
type TriggerFunc func(Sample)

// LostFunc is called once when the stream ends without Unsubscribe.
// The error wraps ErrSubscriptionLost.
type LostFunc func(error)

// Handle owns one subscription and its delivery goroutine.
type Handle struct {
	m         *Monitor
	sub       Subscription
	onTrigger TriggerFunc
	onLost    LostFunc

	mu     sync.Mutex
	closed bool
	err    error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Attach subscribes to src and starts delivering triggers.
// The watch goroutine exits on Unsubscribe, on stream end, or when ctx is
// done; every exit path unsubscribes from the source.
func (m *Monitor) Attach(ctx context.Context, src Source, onTrigger TriggerFunc, onLost LostFunc) (*Handle, error) {
	sub, err := src.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	m.Reset()
	h := &Handle{
		m:         m,
		sub:       sub,
		onTrigger: onTrigger,
		onLost:    onLost,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go h.watch(ctx)
	return h, nil
}

// Offer evaluates one sample and triggers synchronously if it crosses.
// This is the same path the watch goroutine uses. Returns whether a trigger
// was delivered; always false after Unsubscribe or loss.
func (h *Handle) Offer(s Sample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	s = h.m.stamp(s)
	if !h.m.Evaluate(s) {
		return false
	}
	if h.onTrigger != nil {
		h.onTrigger(s)
	}
	return true
}

// Unsubscribe stops delivery. After it returns no trigger is delivered and
// onLost will not be called. Idempotent.
func (h *Handle) Unsubscribe() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.release()
}

// Done is closed once the watch goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the loss error, or nil if the handle is live or was
// unsubscribed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Closed reports whether delivery has ended.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handle) release() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.sub.Unsubscribe()
	})
}

// lose closes the handle because the stream ended on its own.
func (h *Handle) lose(cause error) {
	if cause == nil {
		cause = io.EOF
	}
	err := fmt.Errorf("%w: %w", ErrSubscriptionLost, cause)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.err = err
	h.mu.Unlock()

	h.release()

	slog.Warn("probability stream ended", "error", err)
	if h.onLost != nil {
		h.onLost(err)
	}
}

func (h *Handle) watch(ctx context.Context) {
	defer close(h.done)

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}
	samples := h.sub.Samples()

	for {
		select {
		case <-h.stop:
			return
		case <-ctxDone:
			h.Unsubscribe()
			return
		case s, ok := <-samples:
			if !ok {
				h.lose(h.sub.Err())
				return
			}
			h.Offer(s)
		}
	}
}
