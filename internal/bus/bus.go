package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// outboundSubscriber is one registered fan-out target for a channel name.
type outboundSubscriber struct {
	id       string
	ch       chan OutboundMessage
	callback func(OutboundMessage)
}

// MessageBus is the in-process pub/sub core: two FIFO queues (inbound,
// outbound) plus per-channel subscriber fan-out for the dispatcher.
//
// Ordering: no ordering is guaranteed across channels; within a channel the
// dispatcher delivers sequentially. If a subscriber's queue is full it is
// dropped from that one broadcast (not de-registered) — this mirrors the
// queue-based bus's accepted trade-off of lossy back-pressure over
// unbounded buffering.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu          sync.RWMutex
	closed      bool
	closeOnce   sync.Once
	done        chan struct{}
	dispatchWG  sync.WaitGroup
	subscribers map[string][]*outboundSubscriber // channel name -> subscribers

	eventMu   sync.RWMutex
	eventSubs []*eventSubscriber // id-keyed Event subscribers (see events.go)

	log *slog.Logger
}

const defaultQueueSize = 256

// New constructs a MessageBus with bounded inbound/outbound queues.
func New() *MessageBus {
	return &MessageBus{
		inbound:     make(chan InboundMessage, defaultQueueSize),
		outbound:    make(chan OutboundMessage, defaultQueueSize),
		done:        make(chan struct{}),
		subscribers: make(map[string][]*outboundSubscriber),
		log:         slog.Default().With("component", "bus"),
	}
}

// NewMessageBus is kept as an alias for callers grounded on the sibling
// picoclaw bus constructor name.
func NewMessageBus() *MessageBus { return New() }

func stampEnqueuedAt(meta map[string]string) map[string]string {
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta["_enqueuedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	return meta
}

// PublishInbound enqueues an inbound message. Never blocks; drops with a
// warning if the queue is saturated.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	msg.Metadata = stampEnqueuedAt(msg.Metadata)
	select {
	case b.inbound <- msg:
	default:
		b.log.Warn("inbound queue full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

// ConsumeInbound blocks until a message is available, the bus is closed, or
// ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-b.inbound:
		if !ok {
			return InboundMessage{}, false
		}
		return msg, true
	case <-b.done:
		return InboundMessage{}, false
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues an outbound message on the single outbound queue.
// Each message goes to at most one reader: whichever SubscribeOutbound caller
// (RunDispatcher included) takes it first. Never blocks; drops with a
// warning if the queue is saturated.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	msg.Metadata = stampEnqueuedAt(msg.Metadata)
	select {
	case b.outbound <- msg:
	default:
		b.log.Warn("outbound queue full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

// SubscribeOutbound is a raw pull interface over the outbound queue (used by
// the channel manager's outbound dispatcher and other external
// collaborators). RunDispatcher reads the same queue, so a message taken
// here is not seen by the per-channel dispatcher below.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-b.outbound:
		if !ok {
			return OutboundMessage{}, false
		}
		return msg, true
	case <-b.done:
		return OutboundMessage{}, false
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// SubscribeChannel registers callback to receive every OutboundMessage whose
// Channel equals the given channel name. Returns an unsubscribe function.
// The callback runs on the per-channel dispatcher goroutine — it must not
// block indefinitely, and it must never panic past this boundary (panics
// are recovered and logged, matching the "failing callbacks are logged and
// skipped, never propagated" rule).
//
// Named distinctly from Subscribe/Broadcast (events.go), which address
// id-keyed Event subscribers rather than channel-keyed OutboundMessage fan-out.
func (b *MessageBus) SubscribeChannel(channel string, callback func(OutboundMessage)) func() {
	sub := &outboundSubscriber{
		id:       channel + "#" + time.Now().UTC().Format("150405.000000000"),
		ch:       make(chan OutboundMessage, 32),
		callback: callback,
	}

	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], sub)
	b.mu.Unlock()

	b.dispatchWG.Add(1)
	go b.runSubscriberLoop(channel, sub)

	return func() { b.unsubscribe(channel, sub) }
}

func (b *MessageBus) unsubscribe(channel string, target *outboundSubscriber) {
	b.mu.Lock()
	subs := b.subscribers[channel]
	for i, s := range subs {
		if s == target {
			b.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			close(target.ch)
			break
		}
	}
	b.mu.Unlock()
}

// runSubscriberLoop delivers messages sequentially to one subscriber's
// callback until its channel is closed or the bus shuts down.
func (b *MessageBus) runSubscriberLoop(channel string, sub *outboundSubscriber) {
	defer b.dispatchWG.Done()
	for {
		select {
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			b.invokeCallback(channel, sub, msg)
		case <-b.done:
			return
		}
	}
}

func (b *MessageBus) invokeCallback(channel string, sub *outboundSubscriber, msg OutboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("outbound subscriber callback panicked", "channel", channel, "recover", r)
		}
	}()
	sub.callback(msg)
}

// RunDispatcher consumes the outbound queue and fans each message out to
// every subscriber registered for msg.Channel. It blocks until ctx is
// cancelled or the bus is closed; run it as its own goroutine/task.
func (b *MessageBus) RunDispatcher(ctx context.Context) {
	for {
		msg, ok := b.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		b.mu.RLock()
		subs := append([]*outboundSubscriber(nil), b.subscribers[msg.Channel]...)
		b.mu.RUnlock()

		for _, sub := range subs {
			select {
			case sub.ch <- msg:
			default:
				b.log.Warn("subscriber queue full, dropping from this broadcast",
					"channel", msg.Channel, "subscriber", sub.id)
			}
		}
	}
}

// Close shuts down the bus: in-flight ConsumeInbound/SubscribeOutbound
// calls unblock, and Close waits for all subscriber loops to exit. Messages
// still queued for a subscriber may be left undelivered.
func (b *MessageBus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.done)
		b.mu.Unlock()
		b.dispatchWG.Wait()
	})
}
