package automation

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

const (
	typingLead       = 500 * time.Millisecond
	sendLead         = 1000 * time.Millisecond
	minHumanDelay    = 1000 * time.Millisecond
	humanDelaySpread = 2000 * time.Millisecond
)

// Delivery is the timed reply sequence scheduled after a triggering
// message: typing-on, then the synthesized message, then typing-off.
// Failures are logged and swallowed; a failed auto-reply never surfaces to
// the connection that triggered it.
type Delivery struct {
	// SetTyping toggles the synthetic typing indicator for the
	// automation actor.
	SetTyping func(on bool)
	// Send composes and delivers the automated message.
	Send func(ctx context.Context) error
}

// Scheduler runs delayed reply deliveries, keyed by the triggering message
// ID. A pending delivery is cancellable as a unit and survives the
// triggering connection's teardown.
type Scheduler struct {
	rng *rand.Rand

	mu      sync.Mutex
	pending map[string]*pendingDelivery
	wg      sync.WaitGroup
	closed  bool
}

type pendingDelivery struct {
	cancel context.CancelFunc
}

// NewScheduler builds a reply scheduler. rng may be nil; a time-seeded
// source is used then.
func NewScheduler(rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		rng:     rng,
		pending: make(map[string]*pendingDelivery),
	}
}

// humanDelay draws the human-like base delay, uniform in [1s, 3s).
func (s *Scheduler) humanDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return minHumanDelay + time.Duration(s.rng.Int63n(int64(humanDelaySpread)))
}

// Schedule registers a delivery for the triggering message. The typing
// indicator fires after 500ms, the message after the drawn delay plus one
// second, then the indicator clears. Scheduling for a message ID already
// pending replaces the previous delivery.
func (s *Scheduler) Schedule(messageID string, delivery Delivery) {
	delay := s.humanDelay()

	ctx, cancel := context.WithCancel(context.Background())
	entry := &pendingDelivery{cancel: cancel}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	if prior, ok := s.pending[messageID]; ok {
		prior.cancel()
	}
	s.pending[messageID] = entry
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.finish(messageID, entry)
		s.run(ctx, messageID, delay, delivery)
	}()
}

func (s *Scheduler) run(ctx context.Context, messageID string, delay time.Duration, delivery Delivery) {
	typingTimer := time.NewTimer(typingLead)
	defer typingTimer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-typingTimer.C:
	}
	delivery.SetTyping(true)

	sendTimer := time.NewTimer(delay + sendLead - typingLead)
	defer sendTimer.Stop()
	select {
	case <-ctx.Done():
		delivery.SetTyping(false)
		return
	case <-sendTimer.C:
	}

	if err := delivery.Send(ctx); err != nil {
		log.Printf("automated reply for message %s failed: %v", messageID, err)
	}
	delivery.SetTyping(false)
}

// finish releases the registration unless a newer delivery replaced it.
func (s *Scheduler) finish(messageID string, entry *pendingDelivery) {
	entry.cancel()
	s.mu.Lock()
	if s.pending[messageID] == entry {
		delete(s.pending, messageID)
	}
	s.mu.Unlock()
}

// Cancel aborts the pending delivery for a triggering message, if any.
func (s *Scheduler) Cancel(messageID string) {
	s.mu.Lock()
	entry, ok := s.pending[messageID]
	if ok {
		delete(s.pending, messageID)
	}
	s.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

// Shutdown cancels every pending delivery and waits for their goroutines.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	entries := make([]*pendingDelivery, 0, len(s.pending))
	for _, entry := range s.pending {
		entries = append(entries, entry)
	}
	s.pending = make(map[string]*pendingDelivery)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
	s.wg.Wait()
}
