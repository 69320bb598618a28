package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// MessageTool sends a message to a specific channel/chat outside the
// current conversation, e.g. for proactive notifications.
type MessageTool struct {
	msgBus *bus.MessageBus
	sendFn func(ctx context.Context, channel, chatID, content string) error
}

func NewMessageTool() *MessageTool { return &MessageTool{} }

func (t *MessageTool) SetMessageBus(b *bus.MessageBus) { t.msgBus = b }

func (t *MessageTool) SetChannelSender(fn func(ctx context.Context, channel, chatID, content string) error) {
	t.sendFn = fn
}

func (t *MessageTool) Name() string        { return "message" }
func (t *MessageTool) Description() string { return "Send a message to a channel/chat, e.g. to proactively notify a user." }

func (t *MessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"channel": map[string]interface{}{"type": "string", "description": "destination channel name, e.g. telegram"},
			"chat_id": map[string]interface{}{"type": "string", "description": "destination chat/peer id"},
			"content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"channel", "chat_id", "content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)
	content, _ := args["content"].(string)
	if channel == "" || chatID == "" || content == "" {
		return ErrorResult("channel, chat_id, and content are required")
	}

	if t.sendFn != nil {
		if err := t.sendFn(ctx, channel, chatID, content); err != nil {
			return ErrorResult(fmt.Sprintf("failed to send message: %v", err)).WithError(err)
		}
		return SilentResult(fmt.Sprintf("Message sent to %s/%s.", channel, chatID))
	}

	if t.msgBus != nil {
		t.msgBus.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content})
		return SilentResult(fmt.Sprintf("Message queued for %s/%s.", channel, chatID))
	}

	return ErrorResult("message tool is not wired to a channel sender or bus")
}
