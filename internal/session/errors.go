package session

import (
	"errors"
	"fmt"

	"github.com/zhouzirui/crickgenius/internal/dictation"
	"github.com/zhouzirui/crickgenius/internal/service/remote"
)

var (
	// ErrAuthExpired classifies failures where the server rejected the session.
	ErrAuthExpired = errors.New("session expired")
	// ErrOperationFailed classifies every other network or server failure.
	ErrOperationFailed = errors.New("operation failed")

	// ErrEmptyMessage and ErrSendInFlight are silent guard rejections.
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrClosed is returned when an operation starts after teardown.
	ErrClosed = errors.New("controller closed")

	// ErrCapabilityUnavailable is returned by dictation intents without a capability.
	ErrCapabilityUnavailable = dictation.ErrCapabilityUnavailable
)

// User-visible messages written to the error slot.
const (
	authExpiredMessage   = "Your session has expired. Please log in again."
	newChatFailedMessage = "Failed to start a new chat. Please try again."
	sendFailedMessage    = "Failed to send message. Please try again."
	logoutFailedMessage  = "Failed to log out. Please try again."
	unsupportedMessage   = "Speech recognition is not supported in this environment."

	// recognitionFailedFormat wraps the cause reported by the recognizer.
	recognitionFailedFormat = "Speech recognition error: %v"
)

// classify wraps err as ErrAuthExpired or ErrOperationFailed.
func classify(err error) error {
	if errors.Is(err, remote.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrAuthExpired, err)
	}
	return fmt.Errorf("%w: %w", ErrOperationFailed, err)
}

// IsLocalNoOp reports whether err is a guard rejection that should not be shown.
func IsLocalNoOp(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrSendInFlight)
}
