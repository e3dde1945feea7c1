package events

import (
	"strings"
	"sync"
)

const (
	defaultSubscriberCapacity = 64
	defaultBacklogLimit       = 32
	defaultDedupeWindow       = 512
)

// Logger records drop/diagnostic messages. It matches logging.Printf.
type Logger interface {
	Printf(format string, args ...any)
}

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// RouterWithLogger injects a logger for drop diagnostics.
func RouterWithLogger(logger Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(capacity int) RouterOption {
	return func(r *Router) {
		if capacity > 0 {
			r.channelSize = capacity
		}
	}
}

// RouterWithBacklogLimit overrides the pre-subscription buffer size per type.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent event IDs are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Router delivers workflow events to type-keyed subscribers with buffering,
// deduplication, and bounded channel semantics.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[Type]map[*subscriber]struct{}
	backlog      map[Type][]Event
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
}

// Subscription represents an active event subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[Type]map[*subscriber]struct{}{},
		backlog:      map[Type][]Event{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Subscribe registers for events of one type. Events published before the
// first subscriber arrives are replayed from the backlog.
func (r *Router) Subscribe(kind Type) Subscription {
	kind = normalizeType(kind)
	sub := newSubscriber(r.channelSize, r.logger)
	var backlog []Event
	r.mu.Lock()
	if r.subscribers[kind] == nil {
		r.subscribers[kind] = map[*subscriber]struct{}{}
	}
	r.subscribers[kind][sub] = struct{}{}
	if existing := r.backlog[kind]; len(existing) > 0 {
		backlog = append(backlog, existing...)
		delete(r.backlog, kind)
	}
	r.mu.Unlock()
	for _, event := range backlog {
		sub.deliver(event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			r.removeSubscriber(kind, sub)
		},
	}
}

// Publish validates and routes an event. Duplicate event IDs inside the
// dedupe window are silently dropped.
func (r *Router) Publish(event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if r.isDuplicate(event.ID) {
		return nil
	}
	kind := normalizeType(event.Type)
	r.mu.RLock()
	subs := r.snapshotSubscribers(kind)
	r.mu.RUnlock()
	if len(subs) == 0 {
		r.bufferEvent(kind, event)
		return nil
	}
	for _, sub := range subs {
		sub.deliver(event)
	}
	return nil
}

func (r *Router) snapshotSubscribers(kind Type) []*subscriber {
	live := r.subscribers[kind]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(kind Type, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.subscribers[kind]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.subscribers, kind)
		}
	}
	sub.close()
}

func (r *Router) bufferEvent(kind Type, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.backlog[kind]
	if len(queue) >= r.backlogLimit {
		queue = queue[1:]
		if r.logger != nil {
			r.logger.Printf("events: backlog drop for %s (limit %d)", kind, r.backlogLimit)
		}
	}
	queue = append(queue, event)
	r.backlog[kind] = queue
}

func (r *Router) isDuplicate(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentIDs[eventID]; ok {
		return true
	}
	r.recentIDs[eventID] = struct{}{}
	r.recentOrder = append(r.recentOrder, eventID)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

func normalizeType(kind Type) Type {
	return Type(strings.TrimSpace(strings.ToLower(string(kind))))
}

type subscriber struct {
	ch      chan Event
	logger  Logger
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan Event, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan Event {
	return s.ch
}

// deliver never blocks the publisher: when the buffer is full the oldest
// event is dropped in favor of the incoming one. closeMu is held across the
// send so a concurrent close cannot slip between the closed check and the
// channel write. The send cannot block under the lock: only the consumer
// drains the channel, and the overflow branch frees a slot first.
func (s *subscriber) deliver(event Event) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
		// Buffer full. Receive non-blocking: the consumer may have drained
		// the channel since the failed send, leaving nothing to evict.
		select {
		case oldest := <-s.ch:
			if s.logger != nil {
				s.logger.Printf("events: dropped %s (queue overflow)", oldest.Type)
			}
		default:
		}
		s.ch <- event
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
