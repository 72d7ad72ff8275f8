package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	name    string
	data    string
	comment bool
}

type recordingSink struct {
	mu       sync.Mutex
	records  []record
	flushes  int
	failOn   int
	onWrite  func()
	writeErr error
}

func (s *recordingSink) WriteEvent(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn > 0 && len(s.events())+1 >= s.failOn {
		return s.writeErr
	}
	if s.onWrite != nil {
		s.onWrite()
	}
	s.records = append(s.records, record{name: name, data: data})
	return nil
}

func (s *recordingSink) WriteComment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record{data: text, comment: true})
	return nil
}

func (s *recordingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// events must be called with mu held.
func (s *recordingSink) events() []record {
	var out []record
	for _, r := range s.records {
		if !r.comment {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingSink) snapshot() (events, comments []record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.comment {
			comments = append(comments, r)
		} else {
			events = append(events, r)
		}
	}
	return events, comments
}

// sliceSource yields events in order, then an optional error.
type sliceSource struct {
	err    error
	events []entities.Event
	pulls  atomic.Int32
	pos    int
	done   bool
}

func (s *sliceSource) Next(context.Context) (entities.Event, bool, error) {
	s.pulls.Add(1)
	if s.done {
		return entities.Event{}, false, nil
	}
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		if ev.Kind.Terminal() {
			s.done = true
		}
		return ev, true, nil
	}
	s.done = true
	if s.err != nil {
		return entities.Event{}, false, s.err
	}
	return entities.Event{}, false, nil
}

// blockingSource blocks every pull until ctx is done.
type blockingSource struct {
	returned chan struct{}
}

func (s *blockingSource) Next(ctx context.Context) (entities.Event, bool, error) {
	<-ctx.Done()
	close(s.returned)
	return entities.Event{}, false, &domainerrors.ClientDisconnected{Err: ctx.Err()}
}

type recordingObserver struct {
	mu         sync.Mutex
	sent       []entities.EventKind
	keepAlives int
	closedErr  error
	closed     int
}

func (o *recordingObserver) EventSent(ev entities.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, ev.Kind)
}

func (o *recordingObserver) KeepAliveSent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keepAlives++
}

func (o *recordingObserver) StreamClosed(err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	o.closedErr = err
}

func frames(n int) []entities.Event {
	events := make([]entities.Event, 0, n+1)
	for i := 0; i < n; i++ {
		var f entities.Frame
		f[0] = byte(i)
		events = append(events, entities.ScreenUpdate(entities.FrameIndex(i), f))
	}
	return append(events, entities.End())
}

func TestAdapter_WritesEventsInOrder(t *testing.T) {
	src := &sliceSource{events: frames(3)}
	sink := &recordingSink{}

	err := NewAdapter(WithKeepAlive(0, "")).Run(context.Background(), src, sink)
	require.NoError(t, err)

	events, comments := sink.snapshot()
	assert.Empty(t, comments)
	require.Len(t, events, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, entities.EventNameScreenUpdate, events[i].name)
		f, err := entities.DecodeFrame(events[i].data)
		require.NoError(t, err)
		assert.Equal(t, byte(i), f[0])
	}
	assert.Equal(t, entities.EventNameEnd, events[3].name)
	assert.Empty(t, events[3].data)
	assert.Equal(t, 4, sink.flushes)
}

func TestAdapter_EndOnly(t *testing.T) {
	src := &sliceSource{events: frames(0)}
	sink := &recordingSink{}

	require.NoError(t, NewAdapter().Run(context.Background(), src, sink))

	events, _ := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, entities.EventNameEnd, events[0].name)
}

func TestAdapter_PullsOnlyAfterWrite(t *testing.T) {
	src := &sliceSource{events: frames(5)}
	written := int32(0)
	sink := &recordingSink{}
	sink.onWrite = func() {
		// The event being written was pulled; nothing past it was.
		assert.LessOrEqual(t, src.pulls.Load(), written+1)
		written++
	}

	require.NoError(t, NewAdapter(WithKeepAlive(0, "")).Run(context.Background(), src, sink))
	assert.Equal(t, int32(6), written)
	assert.Equal(t, int32(6), src.pulls.Load())
}

func TestAdapter_GuestFaultBecomesErrorEvent(t *testing.T) {
	trap := &domainerrors.GuestTrap{Call: "next_frame", Index: 2, Err: errors.New("unreachable")}
	src := &sliceSource{events: frames(2)[:2], err: trap}
	sink := &recordingSink{}
	obs := &recordingObserver{}

	err := NewAdapter(WithObserver(obs)).Run(context.Background(), src, sink)

	var got *domainerrors.GuestTrap
	require.ErrorAs(t, err, &got)

	events, _ := sink.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, entities.EventNameError, events[2].name)
	testutil.AssertJSONEqual(t,
		`{"type":"guest_trap","code":"next_frame","message":"guest trapped in next_frame(2): unreachable","details":{"frame_index":2}}`,
		events[2].data)
	for _, ev := range events {
		assert.NotEqual(t, entities.EventNameEnd, ev.name)
	}

	assert.Equal(t, 1, obs.closed)
	assert.ErrorIs(t, obs.closedErr, trap)
	assert.Equal(t, []entities.EventKind{
		entities.EventScreenUpdate, entities.EventScreenUpdate, entities.EventError,
	}, obs.sent)
}

func TestAdapter_KeepAliveWhileIdle(t *testing.T) {
	src := &blockingSource{returned: make(chan struct{})}
	sink := &recordingSink{}
	obs := &recordingObserver{}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := NewAdapter(WithKeepAlive(20*time.Millisecond, "ping"), WithObserver(obs)).Run(ctx, src, sink)
	assert.True(t, domainerrors.IsDisconnect(err))

	// The guest call has returned before Run did.
	select {
	case <-src.returned:
	default:
		t.Fatal("Run returned while the source was still running")
	}

	events, comments := sink.snapshot()
	assert.Empty(t, events)
	require.NotEmpty(t, comments)
	for _, c := range comments {
		assert.Equal(t, "ping", c.data)
	}
	assert.Equal(t, len(comments), obs.keepAlives)
}

func TestAdapter_SinkFailureIsDisconnect(t *testing.T) {
	src := &sliceSource{events: frames(10)}
	sink := &recordingSink{failOn: 3, writeErr: errors.New("broken pipe")}

	err := NewAdapter().Run(context.Background(), src, sink)

	var disc *domainerrors.ClientDisconnected
	require.ErrorAs(t, err, &disc)
	assert.Contains(t, err.Error(), "broken pipe")

	events, _ := sink.snapshot()
	assert.Len(t, events, 2)
	assert.LessOrEqual(t, src.pulls.Load(), int32(3))
}

func TestAdapter_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &blockingSource{returned: make(chan struct{})}
	err := NewAdapter().Run(ctx, src, &recordingSink{})
	assert.True(t, domainerrors.IsDisconnect(err))
}

func TestSSEFraming(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  string
		want  string
	}{
		{"frame", "screen_update", "AAAA", "event: screen_update\ndata: AAAA\n\n"},
		{"empty", "end", "", "event: end\ndata: \n\n"},
		{"multiline", "error", "a\nb", "event: error\ndata: a\ndata: b\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			require.NoError(t, writeEvent(&sb, tt.event, tt.data))
			assert.Equal(t, tt.want, sb.String())
		})
	}
}

func TestDecoder_RoundTripsAdapterOutput(t *testing.T) {
	var sb strings.Builder
	for i, ev := range frames(2) {
		if i == 1 {
			sb.WriteString(": keep-alive\n\n")
		}
		require.NoError(t, writeEvent(&sb, ev.Name(), ev.Data()))
	}

	dec := NewDecoder(strings.NewReader(sb.String()))
	var names []string
	for {
		msg, err := dec.Next()
		if err != nil {
			break
		}
		names = append(names, msg.Event)
		if msg.Event == entities.EventNameScreenUpdate {
			_, derr := entities.DecodeFrame(msg.Data)
			require.NoError(t, derr)
		}
	}
	assert.Equal(t, []string{"screen_update", "screen_update", "end"}, names)
}

func TestDecoder_TruncatedEvent(t *testing.T) {
	dec := NewDecoder(strings.NewReader("event: screen_update\ndata: AA"))
	_, err := dec.Next()
	assert.Error(t, err)
	assert.NotEqual(t, "EOF", fmt.Sprint(err))
}
