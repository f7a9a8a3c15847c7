package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/crickgenius/internal/dictation"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
	"github.com/zhouzirui/crickgenius/internal/session"
)

type fakeController struct {
	state    session.State
	sent     []string
	selected string
	toggled  int
	newChats int
	sendErr  error
	logouts  int
}

func (f *fakeController) Snapshot() session.State { return f.state }
func (f *fakeController) InitializeSession(context.Context) error { return nil }
func (f *fakeController) StartNewConversation(context.Context) error { f.newChats++; return nil }
func (f *fakeController) SendMessage(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.sendErr
}
func (f *fakeController) SendPending(ctx context.Context) error {
	return f.SendMessage(ctx, f.state.PendingInput)
}
func (f *fakeController) SelectConversation(id string) { f.selected = id }
func (f *fakeController) ToggleDictation() error {
	f.toggled++
	return dictation.ErrCapabilityUnavailable
}
func (f *fakeController) Logout(context.Context) error { f.logouts++; return nil }

func index() []chat.Conversation {
	return []chat.Conversation{
		{ID: "c2", FirstQuery: "latest question", Turns: []chat.Turn{{Query: "latest question", Response: "a"}}},
		{ID: "c1", FirstQuery: "who scored most runs?", Turns: []chat.Turn{{Query: "who scored most runs?", Response: "Player X"}}},
	}
}

func TestHandleRoutesCommands(t *testing.T) {
	ctrl := &fakeController{state: session.State{Conversations: index(), PendingInput: "dictated text"}}
	var out bytes.Buffer
	v := NewView(ctrl, &out)
	ctx := context.Background()

	require.NoError(t, v.Handle(ctx, "who scored most runs?"))
	require.NoError(t, v.Handle(ctx, "/new"))
	require.NoError(t, v.Handle(ctx, "/select 2"))
	assert.Equal(t, "c1", ctrl.selected)
	require.NoError(t, v.Handle(ctx, "/select c2"))
	assert.Equal(t, "c2", ctrl.selected)
	require.NoError(t, v.Handle(ctx, "/voice"), "dictation errors surface through state")
	require.NoError(t, v.Handle(ctx, "/send"))
	require.NoError(t, v.Handle(ctx, "/logout"))

	assert.Equal(t, []string{"who scored most runs?", "dictated text"}, ctrl.sent)
	assert.Equal(t, 1, ctrl.newChats)
	assert.Equal(t, 1, ctrl.toggled)
	assert.Equal(t, 1, ctrl.logouts)
	assert.ErrorIs(t, v.Handle(ctx, "/quit"), ErrQuit)
}

func TestHandleReportsUsageErrors(t *testing.T) {
	v := NewView(&fakeController{state: session.State{Conversations: index()}}, &bytes.Buffer{})
	ctx := context.Background()

	assert.Error(t, v.Handle(ctx, "/select"))
	assert.Error(t, v.Handle(ctx, "/select 9"))
	assert.Error(t, v.Handle(ctx, "/bogus"))
}

func TestHandleHidesErrorsShownInState(t *testing.T) {
	ctx := context.Background()
	cases := []error{
		session.ErrEmptyMessage,
		session.ErrSendInFlight,
		fmt.Errorf("%w: boom", session.ErrOperationFailed),
		fmt.Errorf("%w: 401", session.ErrAuthExpired),
	}
	for _, err := range cases {
		v := NewView(&fakeController{sendErr: err}, &bytes.Buffer{})
		assert.NoError(t, v.Handle(ctx, "hello"), err.Error())
	}

	v := NewView(&fakeController{sendErr: session.ErrClosed}, &bytes.Buffer{})
	assert.True(t, errors.Is(v.Handle(ctx, "hello"), session.ErrClosed))
}

func TestRenderPrintsOnlyNewMessages(t *testing.T) {
	var out bytes.Buffer
	v := NewView(&fakeController{}, &out)

	state := session.State{
		ActiveConversationID: "c1",
		Conversations:        index(),
		Messages:             []chat.DisplayMessage{{Sender: chat.SenderUser, Text: "who scored most runs?"}},
	}
	v.Render(state)
	state.Messages = append(state.Messages, chat.DisplayMessage{Sender: chat.SenderAssistant, Text: "Player X"})
	v.Render(state)

	rendered := out.String()
	assert.Contains(t, rendered, "who scored most runs?")
	assert.Contains(t, rendered, "Player X")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("you  who scored most runs?")))
}

func TestRenderShowsErrorsOnce(t *testing.T) {
	var out bytes.Buffer
	v := NewView(&fakeController{}, &out)

	state := session.State{Error: "Failed to send message. Please try again."}
	v.Render(state)
	v.Render(state)

	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Failed to send message")))
}

func TestRenderShowsDictationPreview(t *testing.T) {
	var out bytes.Buffer
	v := NewView(&fakeController{}, &out)

	v.Render(session.State{Dictation: dictation.StateRecording})
	v.Render(session.State{Dictation: dictation.StateRecording, PendingInput: "who scored"})
	v.Render(session.State{Dictation: dictation.StateIdle, PendingInput: "who scored most runs?"})

	rendered := out.String()
	assert.Contains(t, rendered, "listening")
	assert.Contains(t, rendered, "… who scored")
	assert.Contains(t, rendered, "[dictated] who scored most runs?")
}
