package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/schema"
)

// CricketData supplies live facts the model cannot know.
type CricketData interface {
	PlayerStats(ctx context.Context, name string) (json.RawMessage, error)
	MatchConditions(ctx context.Context, matchID string) (json.RawMessage, error)
}

// Option configures the assistant.
type Option func(*Service)

// WithCricketData enables stats and match lookups for matching queries.
func WithCricketData(data CricketData) Option {
	return func(s *Service) { s.data = data }
}

// 句首的疑问词和常见动词不是球员名
var notNames = map[string]bool{
	"who": true, "what": true, "which": true, "when": true, "where": true, "why": true,
	"how": true, "should": true, "can": true, "could": true, "would": true, "will": true,
	"is": true, "are": true, "does": true, "did": true, "tell": true, "give": true,
	"show": true, "the": true, "and": true, "for": true, "pick": true, "player": true,
	"stats": true, "match": true, "today": true, "captain": true,
}

// extractPlayerName returns the first capitalised word that looks like a name.
func extractPlayerName(query string) string {
	for _, word := range strings.Fields(query) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		runes := []rune(word)
		if len(runes) <= 2 || !unicode.IsUpper(runes[0]) || notNames[strings.ToLower(word)] {
			continue
		}
		titled := true
		for _, r := range runes[1:] {
			if unicode.IsUpper(r) {
				titled = false
				break
			}
		}
		if titled {
			return word
		}
	}
	return ""
}

// lookupContext collects the live data a query asks about. Lookup failures are
// logged and skipped; the model still answers without them.
func (s *Service) lookupContext(ctx context.Context, query string) []*schema.Message {
	if s.data == nil {
		return nil
	}
	lower := strings.ToLower(query)
	var messages []*schema.Message

	if strings.Contains(lower, "player") || strings.Contains(lower, "stats") {
		if name := extractPlayerName(query); name != "" {
			stats, err := s.data.PlayerStats(ctx, name)
			if err != nil {
				log.Printf("[ai] player stats lookup failed: %v", err)
			} else {
				messages = append(messages, schema.SystemMessage(fmt.Sprintf("Player stats for %s: %s", name, stats)))
			}
		}
	}

	if strings.Contains(lower, "match") || strings.Contains(lower, "conditions") {
		conditions, err := s.data.MatchConditions(ctx, "")
		if err != nil {
			log.Printf("[ai] match conditions lookup failed: %v", err)
		} else {
			messages = append(messages, schema.SystemMessage(fmt.Sprintf("Current match conditions: %s", conditions)))
		}
	}
	return messages
}
