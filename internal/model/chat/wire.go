package chat

// Wire payloads exchanged with the remote chat service.

// Credentials is the body of /login and /register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile is returned by /login, /register and /profile.
type Profile struct {
	Username string `json:"username"`
}

// NewChatResponse is returned by /new_chat.
type NewChatResponse struct {
	ConversationID string `json:"conversation_id"`
}

// QueryRequest is the body of /chat.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is returned by /chat.
type QueryResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// HistoryResponse is returned by /chat_history.
type HistoryResponse struct {
	Conversations []Conversation `json:"conversations"`
}
