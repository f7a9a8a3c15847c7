// Package session keeps the client-side chat session in step with the remote chat
// service: it owns the view state, reconciles optimistic input with server
// history, drives dictation and decides when the user must log in again.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zhouzirui/crickgenius/internal/dictation"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
	"github.com/zhouzirui/crickgenius/internal/service/remote"
)

// ChatService is the remote chat backend as seen by the controller.
type ChatService interface {
	NewChat(ctx context.Context) (string, error)
	Send(ctx context.Context, query string) (remote.Reply, error)
	History(ctx context.Context) ([]chat.Conversation, error)
	Logout(ctx context.Context) error
}

// Controller orchestrates one mounted chat view.
type Controller struct {
	svc       ChatService
	store     *Store
	dictation *dictation.Adapter

	sending atomic.Bool

	lifetime  context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	redirect     chan struct{}
	redirectOnce sync.Once
}

// NewController mounts a controller over svc. capability may be nil when the
// runtime has no speech recognition.
func NewController(svc ChatService, capability dictation.Capability) *Controller {
	lifetime, cancel := context.WithCancel(context.Background())
	c := &Controller{
		svc:      svc,
		lifetime: lifetime,
		cancel:   cancel,
		redirect: make(chan struct{}),
	}
	c.dictation = dictation.New(capability, dictation.Callbacks{
		OnTranscript:  c.onTranscript,
		OnError:       c.onDictationError,
		OnStateChange: c.onDictationState,
	})
	c.store = newStore(c.dictation.State())
	return c
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() State { return c.store.Snapshot() }

// Subscribe registers fn to receive every committed state.
func (c *Controller) Subscribe(fn func(State)) { c.store.Subscribe(fn) }

// Redirect is closed once the view must return to the login screen.
func (c *Controller) Redirect() <-chan struct{} { return c.redirect }

// Close tears the controller down. Responses that resolve afterwards never touch
// the state, and no redirect is signalled.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.store.dispose()
		c.cancel()
		c.dictation.Close()
	})
}

// InitializeSession opens the first conversation of this mount.
func (c *Controller) InitializeSession(ctx context.Context) error {
	return c.openConversation(ctx, "initialize")
}

// StartNewConversation switches to a fresh server conversation.
func (c *Controller) StartNewConversation(ctx context.Context) error {
	return c.openConversation(ctx, "new conversation")
}

func (c *Controller) openConversation(ctx context.Context, op string) error {
	ctx, done := c.scope(ctx)
	defer done()

	if !c.store.update(ctx, func(m *mutation) {
		m.begin()
		m.Error = ""
	}) {
		return c.detached(ctx)
	}

	id, err := c.svc.NewChat(ctx)
	if err != nil {
		return c.fail(ctx, op, err, newChatFailedMessage, nil)
	}

	index, err := c.svc.History(ctx)
	if err != nil {
		return c.fail(ctx, op, err, newChatFailedMessage, func(m *mutation) {
			m.Messages = nil
			m.setActive(id)
		})
	}

	c.commit(ctx, func(m *mutation) {
		m.Messages = nil
		m.setActive(id)
		m.setIndex(index)
	})
	log.Printf("[controller] %s: conversation=%s index=%d", op, id, len(index))
	return nil
}

// SendPending sends the current pending input.
func (c *Controller) SendPending(ctx context.Context) error {
	return c.SendMessage(ctx, c.store.Snapshot().PendingInput)
}

// SendMessage sends text to the assistant. Blank text and a second send while one
// is outstanding are dropped without touching state. The user's message is shown
// immediately and stays visible even if the exchange fails.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if !c.sending.CompareAndSwap(false, true) {
		return ErrSendInFlight
	}
	defer c.sending.Store(false)

	ctx, done := c.scope(ctx)
	defer done()

	if !c.store.update(ctx, func(m *mutation) {
		m.begin()
		m.Error = ""
		m.appendMessage(chat.SenderUser, text)
		m.PendingInput = ""
	}) {
		return c.detached(ctx)
	}

	reply, err := c.svc.Send(ctx, text)
	if err != nil {
		return c.fail(ctx, "send", err, sendFailedMessage, nil)
	}

	index, err := c.svc.History(ctx)
	if err != nil {
		// 索引没刷新时保留当前会话 id，否则回复会被旧索引的投影清掉
		return c.fail(ctx, "send", err, sendFailedMessage, func(m *mutation) {
			m.appendMessage(chat.SenderAssistant, reply.Response)
		})
	}

	c.commit(ctx, func(m *mutation) {
		m.appendMessage(chat.SenderAssistant, reply.Response)
		m.setIndex(index)
		if reply.ConversationID != "" {
			m.setActive(reply.ConversationID)
		}
	})
	return nil
}

// SetPendingInput replaces the pending input buffer.
func (c *Controller) SetPendingInput(text string) {
	c.store.update(c.lifetime, func(m *mutation) {
		m.PendingInput = text
	})
}

// SelectConversation shows an already loaded conversation. An id missing from the
// index leaves an empty transcript.
func (c *Controller) SelectConversation(id string) {
	c.store.update(c.lifetime, func(m *mutation) {
		m.Error = ""
		m.setActive(id)
		if id == "" {
			m.Messages = nil
		}
	})
}

// Logout ends the server session on a best-effort basis and always redirects.
func (c *Controller) Logout(ctx context.Context) error {
	ctx, done := c.scope(ctx)
	defer done()

	if !c.store.update(ctx, func(m *mutation) {
		m.begin()
		m.Error = ""
	}) {
		return c.detached(ctx)
	}
	_ = c.dictation.Stop()

	err := c.svc.Logout(ctx)
	if err != nil {
		log.Printf("[controller] logout: %v", err)
		err = classify(err)
	}

	c.commit(ctx, func(m *mutation) {
		m.ActiveConversationID = ""
		m.Messages = nil
		m.Conversations = nil
		m.PendingInput = ""
		if err != nil {
			m.Error = logoutFailedMessage
		}
		m.RedirectToLogin = true
		c.signalRedirect()
	})
	return err
}

// StartDictation begins recording into the pending input.
func (c *Controller) StartDictation() error {
	return c.dictation.Start(c.lifetime)
}

// StopDictation ends a recording; idle is a no-op.
func (c *Controller) StopDictation() error {
	return c.dictation.Stop()
}

// ToggleDictation starts or stops recording.
func (c *Controller) ToggleDictation() error {
	return c.dictation.Toggle(c.lifetime)
}

func (c *Controller) onTranscript(text string) {
	c.store.update(c.lifetime, func(m *mutation) {
		m.PendingInput = text
	})
}

func (c *Controller) onDictationError(err error) {
	msg := err.Error()
	var recognition *dictation.RecognitionError
	switch {
	case errors.Is(err, dictation.ErrCapabilityUnavailable):
		msg = unsupportedMessage
	case errors.As(err, &recognition):
		msg = fmt.Sprintf(recognitionFailedFormat, recognition.Err)
	}
	c.store.update(c.lifetime, func(m *mutation) {
		m.Error = msg
	})
}

func (c *Controller) onDictationState(s dictation.State) {
	c.store.update(c.lifetime, func(m *mutation) {
		m.Dictation = s
	})
}

// fail commits a failed operation. Auth failures redirect and change nothing else;
// other failures apply partial (when given) and show message.
func (c *Controller) fail(ctx context.Context, op string, err error, message string, partial func(*mutation)) error {
	classified := classify(err)
	expired := errors.Is(classified, ErrAuthExpired)
	log.Printf("[controller] %s failed: %v", op, err)

	c.commit(ctx, func(m *mutation) {
		if expired {
			m.Error = authExpiredMessage
			m.RedirectToLogin = true
			c.signalRedirect()
			return
		}
		if partial != nil {
			partial(m)
		}
		m.Error = message
	})
	return classified
}

// commit ends the loading span opened by the operation and applies fn. When the
// result is discarded it still releases the loading span, unless torn down.
func (c *Controller) commit(ctx context.Context, fn func(*mutation)) bool {
	if c.store.update(ctx, func(m *mutation) {
		m.end()
		fn(m)
	}) {
		return true
	}
	c.store.release()
	return false
}

// scope derives an operation context that is also cancelled by Close.
func (c *Controller) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) detached(ctx context.Context) error {
	if c.store.isDisposed() {
		return ErrClosed
	}
	return ctx.Err()
}

// signalRedirect runs inside a committed mutation so it can't race teardown.
func (c *Controller) signalRedirect() {
	c.redirectOnce.Do(func() { close(c.redirect) })
}
