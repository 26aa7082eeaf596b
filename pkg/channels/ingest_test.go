package channels

import (
	"context"
	"testing"
	"time"

	"github.com/haloctl/halo/pkg/bus"
	"github.com/haloctl/halo/pkg/health"
	"github.com/haloctl/halo/pkg/memory"
)

func newTestRuntime(t *testing.T) *memory.MemoryRuntime {
	t.Helper()
	rt, err := memory.NewMemoryRuntime(context.Background(), memory.RuntimeConfig{
		Workspace:   t.TempDir(),
		BackendName: "markdown",
		RRFK:        60,
		TopK:        5,
	}, health.NewRegistry())
	if err != nil {
		t.Fatalf("NewMemoryRuntime: %v", err)
	}
	t.Cleanup(func() { rt.Deinit() })
	return rt
}

func TestMemoryIngestRememberStoresEntry(t *testing.T) {
	rt := newTestRuntime(t)
	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	ingest := NewMemoryIngest(msgBus, rt)
	reply := ingest.handle(context.Background(), bus.InboundMessage{
		Channel:    "discord",
		ChatID:     "123",
		SessionKey: "discord:123",
		Content:    "remember: the deploy window is Tuesdays",
	})

	if reply.Content != "remembered" {
		t.Fatalf("expected confirmation reply, got %q", reply.Content)
	}
	if reply.Channel != "discord" || reply.ChatID != "123" {
		t.Fatalf("expected reply addressed back to the source channel/chat, got %+v", reply)
	}

	count, err := rt.Backend().Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stored entry, got %d", count)
	}
}

func TestMemoryIngestRecallFindsStoredEntry(t *testing.T) {
	rt := newTestRuntime(t)
	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	ingest := NewMemoryIngest(msgBus, rt)
	ctx := context.Background()

	ingest.handle(ctx, bus.InboundMessage{SessionKey: "s1", Content: "remember: the deploy window is Tuesdays"})

	reply := ingest.handle(ctx, bus.InboundMessage{SessionKey: "s1", Content: "deploy window"})
	if reply.Content == "no relevant memories found" {
		t.Fatalf("expected a recall hit, got %q", reply.Content)
	}
}

func TestMemoryIngestRecallEmptyStoreReturnsNoResults(t *testing.T) {
	rt := newTestRuntime(t)
	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	ingest := NewMemoryIngest(msgBus, rt)
	reply := ingest.handle(context.Background(), bus.InboundMessage{SessionKey: "s1", Content: "anything"})

	if reply.Content != "no relevant memories found" {
		t.Fatalf("expected no-results reply, got %q", reply.Content)
	}
}

func TestMemoryIngestRunPublishesOneReplyPerInbound(t *testing.T) {
	rt := newTestRuntime(t)
	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	ingest := NewMemoryIngest(msgBus, rt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ingest.Run(ctx)

	msgBus.PublishInbound(bus.InboundMessage{Channel: "internal", ChatID: "x", SessionKey: "s1", Content: "remember: test note"})

	select {
	case out, ok := <-waitOutbound(msgBus, ctx):
		if !ok || out.Content != "remembered" {
			t.Fatalf("unexpected outbound reply: %+v ok=%v", out, ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ingest reply")
	}
}

func waitOutbound(b *bus.MessageBus, ctx context.Context) <-chan bus.OutboundMessage {
	ch := make(chan bus.OutboundMessage, 1)
	go func() {
		msg, ok := b.SubscribeOutbound(ctx)
		if ok {
			ch <- msg
		}
		close(ch)
	}()
	return ch
}

func TestCutPrefixFoldCaseInsensitive(t *testing.T) {
	if rest, ok := cutPrefixFold("REMEMBER: hello", "remember:"); !ok || rest != " hello" {
		t.Fatalf("expected case-insensitive match, got rest=%q ok=%v", rest, ok)
	}
	if _, ok := cutPrefixFold("hello", "remember:"); ok {
		t.Fatalf("expected no match for content without prefix")
	}
}
