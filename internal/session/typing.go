package session

import (
	"sync"
	"time"
)

// TypingCoordinator debounces outbound typing notifications and expires the
// inbound typing indicator. Both timers are explicit handles owned here and
// stopped on Close; nothing relies on a pending closure being collected.
type TypingCoordinator struct {
	mu sync.Mutex

	debounce time.Duration
	expiry   time.Duration
	publish  func()

	notifyTimer *time.Timer
	expiryTimer *time.Timer
	current     string
	closed      bool

	// Stop() on a timer whose function already started returns false but
	// cannot unblock it; the generation counters let such a stale fire
	// recognize it has been superseded and do nothing.
	notifyGen uint64
	expiryGen uint64
}

// NewTypingCoordinator wires publish as the outbound TYPING frame sender.
func NewTypingCoordinator(debounce, expiry time.Duration, publish func()) *TypingCoordinator {
	return &TypingCoordinator{
		debounce: debounce,
		expiry:   expiry,
		publish:  publish,
	}
}

// NotifyLocalTyping collapses a burst of keystrokes into a single outbound
// TYPING frame, fired on the trailing edge: only after a full debounce window
// of silence since the last keystroke.
func (t *TypingCoordinator) NotifyLocalTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if t.notifyTimer != nil {
		t.notifyTimer.Stop()
	}
	t.notifyGen++
	gen := t.notifyGen
	t.notifyTimer = time.AfterFunc(t.debounce, func() { t.firePublish(gen) })
}

func (t *TypingCoordinator) firePublish(gen uint64) {
	t.mu.Lock()
	stale := t.closed || gen != t.notifyGen
	t.mu.Unlock()
	if !stale && t.publish != nil {
		t.publish()
	}
}

// OnRemoteTyping records sender as the current typing indicator and schedules
// its automatic clearing. Any further TYPING frame resets the timer.
func (t *TypingCoordinator) OnRemoteTyping(sender string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.current = sender
	if t.expiryTimer != nil {
		t.expiryTimer.Stop()
	}
	t.expiryGen++
	gen := t.expiryGen
	t.expiryTimer = time.AfterFunc(t.expiry, func() { t.clearIndicator(gen) })
}

func (t *TypingCoordinator) clearIndicator(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed && gen == t.expiryGen {
		t.current = ""
	}
}

// Indicator returns the peer currently typing, or empty.
func (t *TypingCoordinator) Indicator() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Close stops both timers. Idempotent.
func (t *TypingCoordinator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.current = ""
	if t.notifyTimer != nil {
		t.notifyTimer.Stop()
		t.notifyTimer = nil
	}
	if t.expiryTimer != nil {
		t.expiryTimer.Stop()
		t.expiryTimer = nil
	}
}
