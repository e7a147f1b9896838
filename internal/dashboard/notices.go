package dashboard

import (
	"sort"
	"sync"
	"time"
)

// DefaultNoticeTTL is how long a notice stays up when no TTL is given.
const DefaultNoticeTTL = 3 * time.Second

// NoticeKind styles a notice.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message for the operator.
type Notice struct {
	ID        uint64     `json:"id"`
	Message   string     `json:"message"`
	Kind      NoticeKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// NoticeBoard keeps transient notices. Ids come from the board's own
// counter and start at 1.
type NoticeBoard struct {
	mu      sync.Mutex
	nextID  uint64
	notices map[uint64]Notice
	timers  map[uint64]*time.Timer
	ttl     time.Duration
}

// NewNoticeBoard creates a board. A non-positive defaultTTL selects DefaultNoticeTTL.
func NewNoticeBoard(defaultTTL time.Duration) *NoticeBoard {
	if defaultTTL <= 0 {
		defaultTTL = DefaultNoticeTTL
	}
	return &NoticeBoard{
		notices: make(map[uint64]Notice),
		timers:  make(map[uint64]*time.Timer),
		ttl:     defaultTTL,
	}
}

// Add posts a notice that disappears after ttl (the board default when ttl
// is not positive) and returns its id. An empty kind means NoticeInfo.
func (b *NoticeBoard) Add(message string, kind NoticeKind, ttl time.Duration) uint64 {
	if kind == "" {
		kind = NoticeInfo
	}
	if ttl <= 0 {
		ttl = b.ttl
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	now := time.Now()
	b.notices[id] = Notice{ID: id, Message: message, Kind: kind, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	b.timers[id] = time.AfterFunc(ttl, func() { b.Remove(id) })
	return id
}

// Remove takes a notice down early. It reports whether the notice was still up.
func (b *NoticeBoard) Remove(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.notices[id]; !ok {
		return false
	}
	delete(b.notices, id)
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	return true
}

// List returns the notices that are up, oldest first.
func (b *NoticeBoard) List() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notice, 0, len(b.notices))
	for _, n := range b.notices {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear removes every notice and stops their timers.
func (b *NoticeBoard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.notices = make(map[uint64]Notice)
}
