package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

// fakeChatModel 记录收到的消息并返回固定回复
type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func turns(n int) []chat.Turn {
	out := make([]chat.Turn, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, chat.Turn{Query: "q", Response: "r"})
	}
	return out
}

func TestBuildHistoryMessagesKeepsTail(t *testing.T) {
	history := turns(7)
	history[6] = chat.Turn{Query: "last question", Response: "last answer"}

	messages := buildHistoryMessages(history, 10)
	if len(messages) != 10 {
		t.Fatalf("expected 10 messages, got %d", len(messages))
	}
	if messages[0].Role != schema.User {
		t.Fatalf("tail should start on a user message, got %s", messages[0].Role)
	}
	if got := messages[9].Content; got != "last answer" {
		t.Fatalf("unexpected final message %q", got)
	}

	if got := buildHistoryMessages(history, 0); got != nil {
		t.Fatalf("limit 0 should drop history, got %d messages", len(got))
	}
	if got := buildHistoryMessages(nil, 10); got != nil {
		t.Fatalf("empty history should yield nil, got %d", len(got))
	}
}

func TestReplyRunsChainWithSystemPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "  Pick Player X as captain.  "}
	svc, err := newService(context.Background(), fake, 10)
	if err != nil {
		t.Fatalf("newService err: %v", err)
	}

	reply, err := svc.Reply(context.Background(), turns(1), "who should I captain?")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if reply != "Pick Player X as captain." {
		t.Fatalf("unexpected reply %q", reply)
	}

	// system + 2 history + query
	if len(fake.input) != 4 {
		t.Fatalf("expected 4 prompt messages, got %d", len(fake.input))
	}
	if fake.input[0].Role != schema.System || fake.input[0].Content != systemPrompt {
		t.Fatalf("first message should be the system prompt, got %+v", fake.input[0])
	}
	if last := fake.input[3]; last.Role != schema.User || last.Content != "who should I captain?" {
		t.Fatalf("last message should be the query, got %+v", last)
	}
}

func TestReplyWrapsModelError(t *testing.T) {
	svc, err := newService(context.Background(), &fakeChatModel{err: errors.New("quota exceeded")}, 10)
	if err != nil {
		t.Fatalf("newService err: %v", err)
	}
	if _, err := svc.Reply(context.Background(), nil, "pitch report?"); err == nil {
		t.Fatal("expected error from failing model")
	}
}
