package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/crickgenius/internal/config"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

// Service encapsulates the cricket assistant chain
type Service struct {
	historyLimit int
	data         CricketData
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the assistant from Ark configuration
func NewService(ctx context.Context, cfg config.AIConfig, opts ...Option) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newService(ctx, chatModel, cfg.HistoryLimit, opts...)
}

func newService(ctx context.Context, chatModel model.ChatModel, historyLimit int, opts ...Option) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
		schema.MessagesPlaceholder("context", true),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	svc := &Service{historyLimit: historyLimit, chain: runnable}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Reply answers query with the tail of the conversation as context
func (s *Service) Reply(ctx context.Context, history []chat.Turn, query string) (string, error) {
	input := map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(history, s.historyLimit),
		"query":   query,
		"context": s.lookupContext(ctx, query),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	log.Printf("[ai] generated response, history=%d, length=%d", len(history), len(text))
	return text, nil
}

// buildHistoryMessages flattens turns into alternating messages and keeps the last limit
func buildHistoryMessages(turns []chat.Turn, limit int) []*schema.Message {
	if len(turns) == 0 || limit <= 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(turns)*2)
	for _, t := range turns {
		messages = append(messages,
			schema.UserMessage(t.Query),
			schema.AssistantMessage(t.Response, nil),
		)
	}

	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages
}
