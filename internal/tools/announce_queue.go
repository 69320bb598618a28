package tools

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// AnnounceQueueItem is one subagent's completion, pending delivery to its
// parent session.
type AnnounceQueueItem struct {
	SubagentID string
	Label      string
	Status     string
	Result     string
	Runtime    time.Duration
	Iterations int
}

// AnnounceMetadata carries the routing and tracing context a batched
// announce needs once it's flushed as a system InboundMessage.
type AnnounceMetadata struct {
	OriginChannel    string
	OriginChatID     string
	OriginPeerKind   string
	OriginUserID     string
	ParentAgent      string
	OriginTraceID    string
	OriginRootSpanID string
}

type announceBatch struct {
	items []AnnounceQueueItem
	meta  AnnounceMetadata
	timer *time.Timer
}

// AnnounceQueue batches subagent completions that land on the same parent
// session within a short debounce window into a single InboundMessage, so a
// burst of subagents finishing together produces one announce instead of N
// separate interruptions of the parent's conversation.
type AnnounceQueue struct {
	mu     sync.Mutex
	delay  time.Duration
	msgBus *bus.MessageBus
	batch  map[string]*announceBatch
}

// NewAnnounceQueue builds a queue that flushes each session key's batch
// delay after its first item arrives.
func NewAnnounceQueue(msgBus *bus.MessageBus, delay time.Duration) *AnnounceQueue {
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &AnnounceQueue{delay: delay, msgBus: msgBus, batch: make(map[string]*announceBatch)}
}

// Enqueue adds item to sessionKey's pending batch, starting its debounce
// timer when the batch is new; later items do not extend it.
func (q *AnnounceQueue) Enqueue(sessionKey string, item AnnounceQueueItem, meta AnnounceMetadata) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.batch[sessionKey]
	if !ok {
		b = &announceBatch{meta: meta}
		q.batch[sessionKey] = b
		b.timer = time.AfterFunc(q.delay, func() { q.flush(sessionKey) })
	}
	b.items = append(b.items, item)
}

func (q *AnnounceQueue) flush(sessionKey string) {
	q.mu.Lock()
	b, ok := q.batch[sessionKey]
	if ok {
		delete(q.batch, sessionKey)
	}
	q.mu.Unlock()
	if !ok || len(b.items) == 0 {
		return
	}

	content := FormatBatchedAnnounce(b.items, 0)
	q.msgBus.PublishInbound(bus.InboundMessage{
		Channel:  "system",
		SenderID: fmt.Sprintf("subagent-batch:%s", sessionKey),
		ChatID:   b.meta.OriginChatID,
		Content:  content,
		UserID:   b.meta.OriginUserID,
		Metadata: map[string]string{
			"origin_channel":      b.meta.OriginChannel,
			"origin_peer_kind":    b.meta.OriginPeerKind,
			"parent_agent":        b.meta.ParentAgent,
			"origin_trace_id":     b.meta.OriginTraceID,
			"origin_root_span_id": b.meta.OriginRootSpanID,
		},
	})
}

// FormatBatchedAnnounce renders one or more subagent completions as a
// single message for the parent agent to reformulate for the user.
// remainingActive, when > 0, is appended as a reminder that more subagents
// are still running.
func FormatBatchedAnnounce(items []AnnounceQueueItem, remainingActive int) string {
	var sb strings.Builder
	if len(items) == 1 {
		it := items[0]
		sb.WriteString(fmt.Sprintf("Subagent '%s' %s in %d iterations (%.0fs).\n\nResult:\n%s",
			it.Label, it.Status, it.Iterations, it.Runtime.Seconds(), it.Result))
	} else {
		sb.WriteString(fmt.Sprintf("%d subagents finished:\n\n", len(items)))
		for _, it := range items {
			sb.WriteString(fmt.Sprintf("### %s (%s, %d iterations, %.0fs)\n%s\n\n",
				it.Label, it.Status, it.Iterations, it.Runtime.Seconds(), it.Result))
		}
	}
	if remainingActive > 0 {
		sb.WriteString(fmt.Sprintf("\n(%d more subagent(s) still running)", remainingActive))
	}
	return sb.String()
}
