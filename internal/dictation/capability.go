package dictation

import "context"

// Event is one push from a speech-to-text capability. Exactly one of the fields is
// meaningful: a cumulative transcript, a recognition error, or the end marker.
type Event struct {
	Transcript string
	Err        error
	End        bool
}

// Capability is the runtime speech-to-text primitive the adapter drives.
//
// Start begins a single-utterance recognition and returns the event stream; the
// capability closes the channel once the recognition is over. Stop asks the
// capability to finish early; any final transcript is still delivered before the
// channel closes.
type Capability interface {
	Start(ctx context.Context) (<-chan Event, error)
	Stop() error
}
