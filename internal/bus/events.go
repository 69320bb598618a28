package bus

// eventSubscriber fans out server-side Events (gateway broadcasts, agent
// lifecycle notifications) to WebSocket clients. Kept independent of the
// channel-keyed outbound subscriber map: events are addressed by client id,
// not by channel name, and have no backing queue — handlers run inline on
// the calling goroutine.
type eventSubscriber struct {
	id      string
	handler EventHandler
}

// Subscribe registers handler to receive every Broadcast call on this bus,
// keyed by id so a later Unsubscribe(id) can remove it. Implements
// EventPublisher.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.eventMu.Lock()
	defer b.eventMu.Unlock()
	b.eventSubs = append(b.eventSubs, &eventSubscriber{id: id, handler: handler})
}

// Unsubscribe removes the handler registered under id, if any.
func (b *MessageBus) Unsubscribe(id string) {
	b.eventMu.Lock()
	defer b.eventMu.Unlock()
	for i, s := range b.eventSubs {
		if s.id == id {
			b.eventSubs = append(b.eventSubs[:i], b.eventSubs[i+1:]...)
			return
		}
	}
}

// Broadcast delivers event to every subscriber registered via Subscribe.
// Panicking handlers are recovered and logged, never propagated.
func (b *MessageBus) Broadcast(event Event) {
	b.eventMu.RLock()
	subs := append([]*eventSubscriber(nil), b.eventSubs...)
	b.eventMu.RUnlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event subscriber panicked", "id", s.id, "recover", r)
				}
			}()
			s.handler(event)
		}()
	}
}
