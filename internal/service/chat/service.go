package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

// FallbackReply is stored when the assistant is unavailable or fails.
const FallbackReply = "Sorry, I couldn't process your query. Please try again."

var ErrQueryRequired = errors.New("query is required")

// Assistant produces a reply given the prior turns of a conversation.
type Assistant interface {
	Reply(ctx context.Context, history []chat.Turn, query string) (string, error)
}

// Service encapsulates conversation persistence and assistant exchanges.
type Service struct {
	repo      *Repo
	assistant Assistant
	now       func() time.Time
}

// NewService wires the repo with an optional assistant. A nil assistant always
// answers with FallbackReply.
func NewService(repo *Repo, assistant Assistant) *Service {
	return &Service{
		repo:      repo,
		assistant: assistant,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewConversation mints a fresh conversation id. Nothing is stored until the
// first turn is exchanged.
func (s *Service) NewConversation(_ context.Context, username string) string {
	id := uuid.NewString()
	log.Printf("[chat] new conversation user=%s id=%s", username, id)
	return id
}

// Exchange answers query inside conversationID (minting one when empty) and
// persists the turn.
func (s *Service) Exchange(ctx context.Context, username, conversationID, query string) (chat.Turn, string, error) {
	if strings.TrimSpace(query) == "" {
		return chat.Turn{}, "", ErrQueryRequired
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	records, err := s.repo.ListTurns(ctx, username, conversationID)
	if err != nil {
		return chat.Turn{}, "", fmt.Errorf("load conversation: %w", err)
	}
	history := make([]chat.Turn, 0, len(records))
	for _, r := range records {
		history = append(history, toTurn(r))
	}

	response := s.reply(ctx, history, query)
	record := &chat.TurnRecord{
		Username:       username,
		ConversationID: conversationID,
		Query:          query,
		Response:       response,
		CreatedAt:      s.now(),
	}
	if err := s.repo.InsertTurn(ctx, record); err != nil {
		return chat.Turn{}, "", fmt.Errorf("save turn: %w", err)
	}

	return toTurn(*record), conversationID, nil
}

func (s *Service) reply(ctx context.Context, history []chat.Turn, query string) string {
	if s.assistant == nil {
		return FallbackReply
	}
	text, err := s.assistant.Reply(ctx, history, query)
	if err != nil {
		log.Printf("[chat] assistant failed: %v", err)
		return FallbackReply
	}
	if strings.TrimSpace(text) == "" {
		return FallbackReply
	}
	return text
}

// History groups a user's turns into conversations, most recently active first.
// Turns inside a conversation stay oldest first.
func (s *Service) History(ctx context.Context, username string) ([]chat.Conversation, error) {
	records, err := s.repo.ListUserTurns(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	byID := make(map[string]*chat.Conversation)
	lastActive := make(map[string]time.Time)
	order := make([]string, 0)
	for _, r := range records {
		conv, ok := byID[r.ConversationID]
		if !ok {
			conv = &chat.Conversation{ID: r.ConversationID, FirstQuery: r.Query}
			byID[r.ConversationID] = conv
			order = append(order, r.ConversationID)
		}
		conv.Turns = append(conv.Turns, toTurn(r))
		lastActive[r.ConversationID] = r.CreatedAt
	}

	// records are ascending, so a stable sort keeps ties in first-seen order
	sort.SliceStable(order, func(i, j int) bool {
		return lastActive[order[i]].After(lastActive[order[j]])
	})

	conversations := make([]chat.Conversation, 0, len(order))
	for _, id := range order {
		conversations = append(conversations, *byID[id])
	}
	return conversations, nil
}

func toTurn(r chat.TurnRecord) chat.Turn {
	return chat.Turn{Query: r.Query, Response: r.Response, Timestamp: r.CreatedAt}
}
