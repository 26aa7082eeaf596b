package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/haloctl/halo/pkg/bus"
	"github.com/haloctl/halo/pkg/logger"
	"github.com/haloctl/halo/pkg/memory"
)

// rememberPrefix marks an inbound turn as a store rather than a
// recall. Anything else is treated as a query against memory.
const rememberPrefix = "remember:"

// MemoryIngest forwards chat turns arriving on the bus into a
// MemoryRuntime: a leading "remember:" stores the remainder, anything
// else is run as a recall and answered with the best candidate. It
// makes the channel layer a retrieval-source-adjacent ingress rather
// than a second center of engineering gravity.
type MemoryIngest struct {
	bus     *bus.MessageBus
	runtime *memory.MemoryRuntime
	ordinal int
}

// NewMemoryIngest builds an ingest loop over runtime, reading from bus.
func NewMemoryIngest(messageBus *bus.MessageBus, runtime *memory.MemoryRuntime) *MemoryIngest {
	return &MemoryIngest{bus: messageBus, runtime: runtime}
}

// Run consumes inbound messages until ctx is cancelled, publishing one
// outbound reply per turn.
func (ig *MemoryIngest) Run(ctx context.Context) {
	logger.InfoC("channels.ingest", "Memory ingest loop started")
	for {
		msg, ok := ig.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("channels.ingest", "Memory ingest loop stopped")
			return
		}
		reply := ig.handle(ctx, msg)
		ig.bus.PublishOutbound(reply)
	}
}

func (ig *MemoryIngest) handle(ctx context.Context, msg bus.InboundMessage) bus.OutboundMessage {
	content := strings.TrimSpace(msg.Content)
	reply := bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID}

	if rest, ok := cutPrefixFold(content, rememberPrefix); ok {
		key := fmt.Sprintf("%s:%d", msg.SessionKey, ig.nextOrdinal())
		if _, err := ig.runtime.Store(ctx, key, strings.TrimSpace(rest), memory.CategoryConversation, msg.SessionKey); err != nil {
			logger.WarnCF("channels.ingest", "store failed", logger.Fields{"error": err.Error()})
			reply.Content = "couldn't remember that, sorry"
			return reply
		}
		reply.Content = "remembered"
		return reply
	}

	candidates, err := ig.runtime.Search(ctx, content, msg.SessionKey)
	if err != nil {
		logger.WarnCF("channels.ingest", "search failed", logger.Fields{"error": err.Error()})
		reply.Content = "couldn't search memory, sorry"
		return reply
	}
	if len(candidates) == 0 {
		reply.Content = "no relevant memories found"
		return reply
	}
	reply.Content = candidates[0].Snippet
	return reply
}

// nextOrdinal gives each stored turn a distinct key suffix within a
// process lifetime. It does not need to survive a restart: keys only
// need to be unique enough to avoid overwriting the previous turn.
// The ingest loop is single-consumer, so this needs no locking.
func (ig *MemoryIngest) nextOrdinal() int {
	ig.ordinal++
	return ig.ordinal
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
