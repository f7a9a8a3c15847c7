package dictation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapability struct {
	mu       sync.Mutex
	streams  []chan Event
	starts   int
	stops    int
	startErr error
}

func (f *fakeCapability) Start(context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan Event, 8)
	f.streams = append(f.streams, ch)
	return ch, nil
}

func (f *fakeCapability) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeCapability) stream(i int) chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

type recorder struct {
	mu          sync.Mutex
	transcripts []string
	errs        []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnTranscript: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transcripts = append(r.transcripts, text)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) snapshot() ([]string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transcripts...), append([]error(nil), r.errs...)
}

func TestStartWithoutCapabilityReportsOnce(t *testing.T) {
	rec := &recorder{}
	a := New(nil, rec.callbacks())

	require.Equal(t, StateUnavailable, a.State())
	require.ErrorIs(t, a.Start(context.Background()), ErrCapabilityUnavailable)
	require.ErrorIs(t, a.Start(context.Background()), ErrCapabilityUnavailable)

	_, errs := rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCapabilityUnavailable)
	assert.Equal(t, StateUnavailable, a.State())
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	capability := &fakeCapability{}
	a := New(capability, Callbacks{})

	require.NoError(t, a.Stop())
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, 0, capability.stops)
}

func TestTranscriptsReplaceAndEndReturnsToIdle(t *testing.T) {
	capability := &fakeCapability{}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	require.NoError(t, a.Start(context.Background()))
	require.Equal(t, StateRecording, a.State())

	ch := capability.stream(0)
	ch <- Event{Transcript: "who"}
	ch <- Event{Transcript: "who scored"}
	ch <- Event{Transcript: "who scored most runs"}
	ch <- Event{End: true}
	close(ch)

	require.Eventually(t, func() bool { return a.State() == StateIdle }, time.Second, 5*time.Millisecond)
	transcripts, errs := rec.snapshot()
	assert.Equal(t, []string{"who", "who scored", "who scored most runs"}, transcripts)
	assert.Empty(t, errs)
}

func TestStartWhileRecordingIsNoOp(t *testing.T) {
	capability := &fakeCapability{}
	a := New(capability, Callbacks{})

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, 1, capability.starts)
}

func TestErrorEventReturnsToIdle(t *testing.T) {
	capability := &fakeCapability{}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	require.NoError(t, a.Start(context.Background()))
	ch := capability.stream(0)
	ch <- Event{Err: errors.New("no-speech")}
	close(ch)

	require.Eventually(t, func() bool {
		_, errs := rec.snapshot()
		return len(errs) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateIdle, a.State())
	_, errs := rec.snapshot()
	assert.Contains(t, errs[0].Error(), "no-speech")
}

func TestStopThenStaleEventsIgnoredAfterRestart(t *testing.T) {
	capability := &fakeCapability{}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Stop())
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, 1, capability.stops)

	require.NoError(t, a.Start(context.Background()))
	old := capability.stream(0)
	old <- Event{Transcript: "stale"}
	close(old)

	fresh := capability.stream(1)
	fresh <- Event{Transcript: "fresh"}

	require.Eventually(t, func() bool {
		transcripts, _ := rec.snapshot()
		return len(transcripts) == 1
	}, time.Second, 5*time.Millisecond)
	transcripts, _ := rec.snapshot()
	assert.Equal(t, []string{"fresh"}, transcripts)
	assert.Equal(t, StateRecording, a.State())
}

func TestCapabilityStartFailureStaysIdle(t *testing.T) {
	capability := &fakeCapability{startErr: errors.New("mic busy")}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	require.Error(t, a.Start(context.Background()))
	assert.Equal(t, StateIdle, a.State())
	_, errs := rec.snapshot()
	require.Len(t, errs, 1)
}

func TestCloseSilencesCallbacks(t *testing.T) {
	capability := &fakeCapability{}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	require.NoError(t, a.Start(context.Background()))
	a.Close()

	ch := capability.stream(0)
	ch <- Event{Transcript: "late"}
	close(ch)

	time.Sleep(20 * time.Millisecond)
	transcripts, _ := rec.snapshot()
	assert.Empty(t, transcripts)
	assert.NoError(t, a.Start(context.Background()))
	assert.Equal(t, 1, capability.starts)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateRecording))
	assert.True(t, CanTransition(StateRecording, StateIdle))
	assert.False(t, CanTransition(StateIdle, StateIdle))
	assert.False(t, CanTransition(StateUnavailable, StateRecording))
}

// blockingCapability holds Start until its context is cancelled.
type blockingCapability struct {
	entered chan struct{}
	stops   int
}

func (b *blockingCapability) Start(ctx context.Context) (<-chan Event, error) {
	close(b.entered)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingCapability) Stop() error {
	b.stops++
	return nil
}

func TestCloseDuringSlowStartReturns(t *testing.T) {
	capability := &blockingCapability{entered: make(chan struct{})}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	started := make(chan error, 1)
	go func() { started <- a.Start(context.Background()) }()
	<-capability.entered

	closed := make(chan struct{})
	go func() {
		a.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a capability start")
	}
	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Close")
	}

	_, errs := rec.snapshot()
	assert.Empty(t, errs)
	assert.Equal(t, StateIdle, a.State())
}

func TestStopAbandonsSlowStart(t *testing.T) {
	capability := &blockingCapability{entered: make(chan struct{})}
	rec := &recorder{}
	a := New(capability, rec.callbacks())

	started := make(chan error, 1)
	go func() { started <- a.Start(context.Background()) }()
	<-capability.entered

	// 启动中的第二次 Start 不会再调用 capability
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Toggle(context.Background()))

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	_, errs := rec.snapshot()
	assert.Empty(t, errs)
	assert.Equal(t, StateIdle, a.State())
}

func TestRecognitionErrorsKeepCause(t *testing.T) {
	cause := errors.New("mic busy")
	a := New(&fakeCapability{startErr: cause}, Callbacks{})

	err := a.Start(context.Background())
	var recognition *RecognitionError
	require.True(t, errors.As(err, &recognition))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "speech recognition error: mic busy", err.Error())
}
