package flash

import "sync"

// DefaultLogCapacity retains only the newest event: MostRecent is the only
// read the decoder performs.
const DefaultLogCapacity = 1

// Log is an append-only, bounded trailing window of flash events.
//
// Thread-safety: Append and all readers may be called concurrently. A reader
// never observes a partially-written slot, and an Append that happened-before
// a read is always visible to it.
type Log struct {
	mu    sync.RWMutex
	buf   []Event
	head  int // index of the next write
	size  int
	total int64
}

// NewLog creates a log that retains at most capacity events.
// A capacity below one is raised to one.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	return &Log{buf: make([]Event, capacity)}
}

// Append adds ev as the newest entry, evicting the oldest when full.
func (l *Log) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.head] = ev
	l.head = (l.head + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
	l.total++
}

// MostRecent returns the last appended event, or false when the log is empty.
// O(1).
func (l *Log) MostRecent() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.size == 0 {
		return Event{}, false
	}
	return l.buf[l.last()], true
}

// Recent returns up to n retained events, newest first.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > l.size {
		n = l.size
	}
	if n <= 0 {
		return []Event{}
	}

	out := make([]Event, n)
	idx := l.last()
	for i := 0; i < n; i++ {
		out[i] = l.buf[idx]
		idx = (idx - 1 + len(l.buf)) % len(l.buf)
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Cap returns the retention capacity.
func (l *Log) Cap() int {
	return len(l.buf)
}

// Total returns the number of events ever appended, including evicted ones.
func (l *Log) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// last returns the slot of the newest event. Caller holds the lock and
// size > 0.
func (l *Log) last() int {
	return (l.head - 1 + len(l.buf)) % len(l.buf)
}
