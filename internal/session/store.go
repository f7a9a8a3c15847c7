package session

import (
	"context"
	"slices"
	"sync"

	"github.com/zhouzirui/crickgenius/internal/dictation"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

// State is what the view renders.
type State struct {
	ActiveConversationID string
	Messages             []chat.DisplayMessage
	Conversations        []chat.Conversation
	PendingInput         string
	Loading              bool
	Error                string
	Dictation            dictation.State
	RedirectToLogin      bool
}

func (s State) clone() State {
	s.Messages = append([]chat.DisplayMessage(nil), s.Messages...)
	convs := make([]chat.Conversation, len(s.Conversations))
	for i, c := range s.Conversations {
		convs[i] = c.Clone()
	}
	s.Conversations = convs
	return s
}

// mutation is the write handle passed to Store.update. Changing the active id or
// the index through setActive/setIndex schedules a reprojection of Messages.
type mutation struct {
	*State
	loads     *int
	reproject bool
}

func (m *mutation) setActive(id string) {
	m.ActiveConversationID = id
	m.reproject = true
}

func (m *mutation) setIndex(index []chat.Conversation) {
	m.Conversations = index
	m.reproject = true
}

func (m *mutation) appendMessage(sender chat.Sender, text string) {
	m.Messages = append(m.Messages, chat.DisplayMessage{Sender: sender, Text: text})
}

func (m *mutation) begin() {
	*m.loads++
	m.Loading = true
}

func (m *mutation) end() {
	if *m.loads > 0 {
		*m.loads--
	}
	m.Loading = *m.loads > 0
}

// project derives the message list for the active conversation. With no active
// conversation the current list is kept.
func project(s *State) []chat.DisplayMessage {
	if s.ActiveConversationID == "" {
		return s.Messages
	}
	conv, ok := chat.Find(s.Conversations, s.ActiveConversationID)
	if !ok {
		return nil
	}
	return chat.Project(conv)
}

// Store holds one session's view state. It is created on mount and disposed on
// unmount; after dispose every write is dropped.
type Store struct {
	mu        sync.Mutex
	state     State
	loads     int
	disposed  bool
	listeners []func(State)
}

func newStore(dictationState dictation.State) *Store {
	return &Store{state: State{Dictation: dictationState}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive a snapshot after every committed write.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// update applies fn as one uninterrupted step. It reports false, applying nothing,
// when the store is disposed or ctx is done.
func (s *Store) update(ctx context.Context, fn func(*mutation)) bool {
	s.mu.Lock()
	if s.disposed || ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	m := &mutation{State: &s.state, loads: &s.loads}
	fn(m)
	if m.reproject {
		s.state.Messages = project(&s.state)
	}
	snap := s.state.clone()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, notify := range listeners {
		notify(snap)
	}
	return true
}

// release ends a loading span whose result was discarded.
func (s *Store) release() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	m := &mutation{State: &s.state, loads: &s.loads}
	m.end()
	snap := s.state.clone()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, notify := range listeners {
		notify(snap)
	}
}

func (s *Store) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.listeners = nil
}

func (s *Store) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
