package history

import (
	"sync"
	"time"
)

const DefaultCapacity = 1024

// Message is one chat line held in scrollback.
type Message struct {
	Seq       uint64 // monotonic, assigned on append
	Sender    string
	Text      string
	Timestamp time.Time
}

// Log is a bounded scrollback ring for chat messages. When full, the
// oldest messages are evicted. Appends assign monotonic sequence numbers
// so a renderer can tell what it has already drawn.
//
// Log is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Message
	head     int // index of next write position
	count    int // number of entries stored
	capacity int
	nextSeq  uint64
}

// New creates a scrollback log holding at most capacity messages.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Message, capacity),
		capacity: capacity,
		nextSeq:  1,
	}
}

// Append stores one message and returns its assigned sequence number.
// If the ring is full the oldest message is evicted.
func (l *Log) Append(sender, text string, ts time.Time) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.nextSeq
	l.nextSeq++

	if l.count >= l.capacity {
		l.evictOldest()
	}
	l.entries[l.head] = Message{Seq: seq, Sender: sender, Text: text, Timestamp: ts}
	l.head = (l.head + 1) % l.capacity
	l.count++
	return seq
}

// tail returns the index of the oldest entry. Caller must hold l.mu and
// ensure l.count > 0.
func (l *Log) tail() int {
	return (l.head - l.count + l.capacity) % l.capacity
}

func (l *Log) evictOldest() {
	t := l.tail()
	l.entries[t] = Message{}
	l.count--
}

// Len returns the number of messages currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Last returns up to n of the most recent messages, oldest first.
// Returns nil if the log is empty or n <= 0.
func (l *Log) Last(n int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 || n <= 0 {
		return nil
	}
	if n > l.count {
		n = l.count
	}

	result := make([]Message, 0, n)
	start := (l.head - n + l.capacity) % l.capacity
	for i := 0; i < n; i++ {
		result = append(result, l.entries[(start+i)%l.capacity])
	}
	return result
}

// Since returns all messages with sequence number > afterSeq, oldest
// first. Evicted messages are gone; the result may start later than
// afterSeq+1. Returns nil if nothing qualifies.
func (l *Log) Since(afterSeq uint64) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return nil
	}

	var result []Message
	t := l.tail()
	for i := 0; i < l.count; i++ {
		e := l.entries[(t+i)%l.capacity]
		if e.Seq > afterSeq {
			result = append(result, e)
		}
	}
	return result
}

// NewestSeq returns the most recent sequence number, or 0 if empty.
func (l *Log) NewestSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return 0
	}
	return l.entries[(l.head-1+l.capacity)%l.capacity].Seq
}
