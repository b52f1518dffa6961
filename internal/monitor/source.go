package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotSubscribed is returned by ChannelSource.Publish with no live
// subscriber.
var ErrNotSubscribed = errors.New("no active subscription")

// ErrAlreadySubscribed is returned when a single-subscriber source is
// subscribed twice.
var ErrAlreadySubscribed = errors.New("source already subscribed")

// chanSubscription is the Subscription shared by the built-in sources.
// The producer owns ch and closes it exactly once via finish.
type chanSubscription struct {
	ch chan Sample

	unsubOnce sync.Once
	gone      chan struct{} // closed by Unsubscribe

	// sendMu is held shared by senders and exclusively by finish, so ch is
	// never closed under a blocked send.
	sendMu     sync.RWMutex
	ending     chan struct{}
	finishOnce sync.Once
	mu         sync.Mutex
	err        error
}

func newChanSubscription(buffer int) *chanSubscription {
	return &chanSubscription{
		ch:     make(chan Sample, buffer),
		gone:   make(chan struct{}),
		ending: make(chan struct{}),
	}
}

func (s *chanSubscription) Samples() <-chan Sample { return s.ch }

func (s *chanSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *chanSubscription) Unsubscribe() {
	s.unsubOnce.Do(func() { close(s.gone) })
}

func (s *chanSubscription) unsubscribed() bool {
	select {
	case <-s.gone:
		return true
	default:
		return false
	}
}

// finish ends the stream with err. Producer side only.
func (s *chanSubscription) finish(err error) {
	s.finishOnce.Do(func() {
		close(s.ending)

		s.sendMu.Lock()
		defer s.sendMu.Unlock()

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}

// send delivers one sample, giving up if the consumer unsubscribes or ctx
// ends first.
func (s *chanSubscription) send(ctx context.Context, sample Sample) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	select {
	case <-s.ending:
		return ErrNotSubscribed
	default:
	}

	select {
	case s.ch <- sample:
		return nil
	case <-s.gone:
		return ErrNotSubscribed
	case <-s.ending:
		return ErrNotSubscribed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChannelSource is an in-process push source. Producers call Publish; one
// subscriber at a time receives the samples. Used by the HTTP sample
// endpoint and by tests.
type ChannelSource struct {
	buffer int

	mu  sync.Mutex
	sub *chanSubscription
}

// NewChannelSource creates a source whose subscriptions buffer up to buffer
// samples.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSource{buffer: buffer}
}

// Subscribe implements Source.
func (c *ChannelSource) Subscribe(ctx context.Context) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil && !c.sub.unsubscribed() {
		return nil, ErrAlreadySubscribed
	}
	if c.sub != nil {
		c.sub.finish(nil)
	}
	c.sub = newChanSubscription(c.buffer)
	return c.sub, nil
}

// Connected implements Source.
func (c *ChannelSource) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil && !c.sub.unsubscribed()
}

// Publish delivers a sample to the current subscriber. It blocks while the
// subscription buffer is full.
func (c *ChannelSource) Publish(ctx context.Context, s Sample) error {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()

	if sub == nil || sub.unsubscribed() {
		return ErrNotSubscribed
	}
	return sub.send(ctx, s)
}

// Close ends the current stream. The subscriber observes loss with cause
// err (io.EOF when err is nil).
func (c *ChannelSource) Close(err error) {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub == nil {
		return
	}
	if err == nil {
		err = io.EOF
	}
	sub.finish(err)
}

// ReaderSource streams newline-delimited probabilities from an io.Reader.
// Each line is either a bare number ("0.42") or a JSON object
// ({"probability": 0.42}). Blank lines and lines starting with '#' are
// skipped; malformed lines are logged and skipped.
//
// The reader is consumed by the first subscription; a second Subscribe
// returns ErrAlreadySubscribed.
type ReaderSource struct {
	r    io.Reader
	pace time.Duration
	now  func() time.Time

	mu         sync.Mutex
	subscribed bool
	live       bool
}

// ReaderOption configures a ReaderSource.
type ReaderOption func(*ReaderSource)

// WithPace waits d between samples, replaying a recording at a fixed
// cadence. Zero delivers as fast as the consumer reads.
func WithPace(d time.Duration) ReaderOption {
	return func(s *ReaderSource) { s.pace = d }
}

// WithReaderNow overrides the timestamp clock.
func WithReaderNow(now func() time.Time) ReaderOption {
	return func(s *ReaderSource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReaderSource wraps r.
func NewReaderSource(r io.Reader, opts ...ReaderOption) *ReaderSource {
	s := &ReaderSource{r: r, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe implements Source.
func (s *ReaderSource) Subscribe(ctx context.Context) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return nil, ErrAlreadySubscribed
	}
	s.subscribed = true
	s.live = true

	sub := newChanSubscription(0)
	go s.pump(ctx, sub)
	return sub, nil
}

// Connected implements Source.
func (s *ReaderSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *ReaderSource) pump(ctx context.Context, sub *chanSubscription) {
	var endErr error
	defer func() {
		s.mu.Lock()
		s.live = false
		s.mu.Unlock()
		sub.finish(endErr)
	}()

	scanner := bufio.NewScanner(s.r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		value, err := ParseProbability(text)
		if err != nil {
			slog.Warn("skipping malformed probability line", "line", line, "error", err)
			continue
		}

		if err := sub.send(ctx, Sample{Value: value, At: s.now()}); err != nil {
			endErr = err
			return
		}

		if s.pace > 0 {
			select {
			case <-time.After(s.pace):
			case <-sub.gone:
				endErr = ErrNotSubscribed
				return
			case <-ctx.Done():
				endErr = ctx.Err()
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		endErr = fmt.Errorf("read probabilities: %w", err)
		return
	}
	endErr = io.EOF
}

// ParseProbability parses a bare number or a {"probability": x} object.
func ParseProbability(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		var payload struct {
			Probability *float64 `json:"probability"`
		}
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return 0, fmt.Errorf("parse probability object: %w", err)
		}
		if payload.Probability == nil {
			return 0, fmt.Errorf("parse probability object: missing \"probability\" field")
		}
		return *payload.Probability, nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse probability %q: %w", text, err)
	}
	return v, nil
}
