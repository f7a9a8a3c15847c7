package chat

import "time"

// Sender identifies who authored a DisplayMessage.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// labelLimit caps the sidebar label length (in runes).
const labelLimit = 30

// Turn is one query/response pair produced by the server.
type Turn struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Conversation is a server-authoritative thread of turns.
type Conversation struct {
	ID         string `json:"id"`
	FirstQuery string `json:"first_query,omitempty"`
	Turns      []Turn `json:"messages"`
}

// Label returns the short text shown in a conversation list.
func (c Conversation) Label() string {
	if c.FirstQuery == "" {
		return "New Chat"
	}
	runes := []rune(c.FirstQuery)
	if len(runes) > labelLimit {
		runes = runes[:labelLimit]
	}
	return string(runes) + "..."
}

// Clone returns a deep copy so callers can't share the turn slice.
func (c Conversation) Clone() Conversation {
	c.Turns = append([]Turn(nil), c.Turns...)
	return c
}

// DisplayMessage is the rendering projection of a turn half.
type DisplayMessage struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// Project flattens the turns of a conversation into alternating user/assistant
// messages, starting with the user.
func Project(c Conversation) []DisplayMessage {
	out := make([]DisplayMessage, 0, len(c.Turns)*2)
	for _, t := range c.Turns {
		out = append(out,
			DisplayMessage{Sender: SenderUser, Text: t.Query},
			DisplayMessage{Sender: SenderAssistant, Text: t.Response},
		)
	}
	return out
}

// Find returns the conversation with the given id from an index.
func Find(index []Conversation, id string) (Conversation, bool) {
	for _, c := range index {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}
