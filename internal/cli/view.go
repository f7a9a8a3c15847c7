// Package cli is the terminal front end of the chat client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/crickgenius/internal/dictation"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
	"github.com/zhouzirui/crickgenius/internal/session"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Controller is the part of session.Controller the view drives.
type Controller interface {
	Snapshot() session.State
	InitializeSession(ctx context.Context) error
	StartNewConversation(ctx context.Context) error
	SendMessage(ctx context.Context, text string) error
	SendPending(ctx context.Context) error
	SelectConversation(id string)
	ToggleDictation() error
	Logout(ctx context.Context) error
}

// View renders controller state as a scrolling transcript and turns typed lines
// into controller intents.
type View struct {
	ctrl Controller
	out  io.Writer

	mu        sync.Mutex
	active    string
	shown     int
	lastError string
	dictating dictation.State
	preview   string
}

func NewView(ctrl Controller, out io.Writer) *View {
	return &View{ctrl: ctrl, out: out}
}

// Render prints whatever changed since the previous state.
func (v *View) Render(s session.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s.ActiveConversationID != v.active || len(s.Messages) < v.shown {
		v.active = s.ActiveConversationID
		v.shown = 0
		label := "New Chat"
		if conv, ok := chat.Find(s.Conversations, s.ActiveConversationID); ok {
			label = conv.Label()
		}
		fmt.Fprintln(v.out, dimStyle.Render("── "+label+" ──"))
	}
	for _, m := range s.Messages[v.shown:] {
		fmt.Fprintln(v.out, formatMessage(m))
	}
	v.shown = len(s.Messages)

	if s.Error != v.lastError {
		v.lastError = s.Error
		if s.Error != "" {
			fmt.Fprintln(v.out, errorStyle.Render("! "+s.Error))
		}
	}

	if s.Dictation != v.dictating {
		v.dictating = s.Dictation
		switch s.Dictation {
		case dictation.StateRecording:
			fmt.Fprintln(v.out, dimStyle.Render("[listening… /voice to stop]"))
		case dictation.StateIdle:
			if s.PendingInput != "" {
				fmt.Fprintln(v.out, dimStyle.Render("[dictated] "+s.PendingInput+"  (/send to send)"))
			}
		}
	}
	if s.Dictation == dictation.StateRecording && s.PendingInput != v.preview && s.PendingInput != "" {
		fmt.Fprintln(v.out, dimStyle.Render("… "+s.PendingInput))
	}
	v.preview = s.PendingInput
}

func formatMessage(m chat.DisplayMessage) string {
	if m.Sender == chat.SenderUser {
		return userStyle.Render("you") + "  " + m.Text
	}
	return assistantStyle.Render("bot") + "  " + m.Text
}

// ErrQuit is returned by Handle for /quit.
var ErrQuit = errors.New("quit")

// Handle executes one typed line. Plain text is sent as a message.
func (v *View) Handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return surfaced(v.ctrl.SendMessage(ctx, line))
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/new":
		return surfaced(v.ctrl.StartNewConversation(ctx))
	case "/list":
		v.printIndex()
		return nil
	case "/select":
		id, err := v.resolve(arg)
		if err != nil {
			return err
		}
		v.ctrl.SelectConversation(id)
		return nil
	case "/voice":
		// 录音错误已经写入状态
		_ = v.ctrl.ToggleDictation()
		return nil
	case "/send":
		return surfaced(v.ctrl.SendPending(ctx))
	case "/logout":
		return surfaced(v.ctrl.Logout(ctx))
	case "/help":
		v.printHelp()
		return nil
	case "/quit", "/exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
}

func (v *View) printIndex() {
	s := v.ctrl.Snapshot()
	if len(s.Conversations) == 0 {
		fmt.Fprintln(v.out, dimStyle.Render("no conversations yet"))
		return
	}
	for i, conv := range s.Conversations {
		marker := " "
		if conv.ID == s.ActiveConversationID {
			marker = "*"
		}
		fmt.Fprintf(v.out, "%s %d. %s\n", marker, i+1, conv.Label())
	}
}

// resolve accepts a 1-based position from /list or a conversation id.
func (v *View) resolve(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("usage: /select <number|id>")
	}
	index := v.ctrl.Snapshot().Conversations
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(index) {
			return "", fmt.Errorf("no conversation %d", n)
		}
		return index[n-1].ID, nil
	}
	return arg, nil
}

func (v *View) printHelp() {
	fmt.Fprintln(v.out, dimStyle.Render(strings.Join([]string{
		"/new            start a new conversation",
		"/list           list conversations",
		"/select <n|id>  open a conversation",
		"/voice          start or stop dictation",
		"/send           send the dictated text",
		"/logout         log out",
		"/quit           exit",
	}, "\n")))
}

// surfaced drops errors the controller has already reported through state.
func surfaced(err error) error {
	switch {
	case err == nil, session.IsLocalNoOp(err):
		return nil
	case errors.Is(err, session.ErrAuthExpired), errors.Is(err, session.ErrOperationFailed):
		return nil
	default:
		return err
	}
}
