package room

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatkit/chatroom/internal/event"
	"github.com/chatkit/chatroom/internal/history"
)

func newTestRoom(window time.Duration) *Room {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(window, history.NewLog(100), logger)
}

func recvEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed without delivering an event")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return event.Event{}
}

func requireClosedWithoutEvent(t *testing.T, ch <-chan event.Event) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected channel to close without an event")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func requireNoEvent(t *testing.T, ch <-chan event.Event, wait time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event delivered: %+v", ev)
		}
		t.Fatal("unexpected channel close")
	case <-time.After(wait):
	}
}

func TestRegister_AssignsMonotonicIDs(t *testing.T) {
	r := newTestRoom(time.Minute)

	id1, err := r.Register("alice")
	require.NoError(t, err)
	assert.Equal(t, "id1", id1)

	id2, err := r.Register("bob")
	require.NoError(t, err)
	assert.Equal(t, "id2", id2)

	// Identifiers are never reused, even after the earlier session is gone.
	r.Terminate(id1)
	id3, err := r.Register("carol")
	require.NoError(t, err)
	assert.Equal(t, "id3", id3)
}

func TestRegister_RejectsNameOverLimit(t *testing.T) {
	r := newTestRoom(time.Minute)

	_, err := r.Register(strings.Repeat("x", 31))
	assert.ErrorIs(t, err, ErrNameTooLong)

	// The limit counts runes, not bytes.
	id, err := r.Register(strings.Repeat("é", 30))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r := newTestRoom(time.Minute)

	_, err := r.Register("alice")
	require.NoError(t, err)

	_, err = r.Register("alice")
	assert.ErrorIs(t, err, ErrNameInUse)

	// The failed attempt must leave the registry untouched.
	assert.Len(t, r.DisplayNames(), 1)

	// Uniqueness is exact and case-sensitive.
	_, err = r.Register("Alice")
	assert.NoError(t, err)
}

func TestRegister_NameFreeAfterDestroy(t *testing.T) {
	r := newTestRoom(time.Minute)

	id, err := r.Register("alice")
	require.NoError(t, err)
	r.Terminate(id)

	_, err = r.Register("alice")
	assert.NoError(t, err)
}

func TestRegister_AnnouncesToAttachedPeers(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	ch, err := r.Attach(idA)
	require.NoError(t, err)

	_, err = r.Register("bob")
	require.NoError(t, err)

	ev := recvEvent(t, ch)
	assert.True(t, ev.Success)
	assert.Equal(t, event.TypeUserOnline, ev.Type)
	info, ok := ev.Data.(event.UserInfo)
	require.True(t, ok)
	assert.Equal(t, "bob", info.Username)
}

func TestLookup(t *testing.T) {
	r := newTestRoom(time.Minute)

	id, err := r.Register("alice")
	require.NoError(t, err)

	info, err := r.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "alice", info.Name)
	assert.Equal(t, StatusInactive, info.Status)

	_, err = r.Lookup("id999")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAttach_TransitionsToActive(t *testing.T) {
	r := newTestRoom(time.Minute)

	id, err := r.Register("alice")
	require.NoError(t, err)

	ch, err := r.Attach(id)
	require.NoError(t, err)
	require.NotNil(t, ch)

	info, err := r.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, info.Status)
}

func TestAttach_RejectsSecondPoll(t *testing.T) {
	r := newTestRoom(time.Minute)

	id, err := r.Register("alice")
	require.NoError(t, err)

	first, err := r.Attach(id)
	require.NoError(t, err)

	_, err = r.Attach(id)
	assert.ErrorIs(t, err, ErrAlreadyAttached)

	// The original poll must be untouched by the rejected attempt.
	requireNoEvent(t, first, 50*time.Millisecond)
}

func TestAttach_UnknownSession(t *testing.T) {
	r := newTestRoom(time.Minute)

	_, err := r.Attach("id42")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostMessage_DeliversToAttachedPeerOnly(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	idB, err := r.Register("bob")
	require.NoError(t, err)

	chA, err := r.Attach(idA)
	require.NoError(t, err)
	chB, err := r.Attach(idB)
	require.NoError(t, err)

	msg, err := r.PostMessage(idA, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Author)
	assert.Equal(t, "hello there", msg.Text)
	assert.False(t, msg.Timestamp.IsZero())

	ev := recvEvent(t, chB)
	assert.Equal(t, event.TypeIncomingMessage, ev.Type)
	got, ok := ev.Data.(event.Message)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, "hello there", got.Text)

	// The originator's own poll stays parked.
	requireNoEvent(t, chA, 50*time.Millisecond)
}

func TestPostMessage_AppendsToHistory(t *testing.T) {
	log := history.NewLog(100)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(time.Minute, log, logger)

	id, err := r.Register("alice")
	require.NoError(t, err)

	_, err = r.PostMessage(id, "first")
	require.NoError(t, err)
	_, err = r.PostMessage(id, "second")
	require.NoError(t, err)

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "first", snap[0].Text)
	assert.Equal(t, "second", snap[1].Text)
}

func TestPostMessage_UnknownSession(t *testing.T) {
	r := newTestRoom(time.Minute)

	_, err := r.PostMessage("id42", "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostMessage_DroppedForInactivePeers(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	idB, err := r.Register("bob")
	require.NoError(t, err)

	// Bob has no parked poll, so the event is dropped, not queued.
	_, err = r.PostMessage(idA, "missed")
	require.NoError(t, err)

	chB, err := r.Attach(idB)
	require.NoError(t, err)
	requireNoEvent(t, chB, 50*time.Millisecond)
}

func TestDeliver_ReturnsSessionToInactive(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	idB, err := r.Register("bob")
	require.NoError(t, err)

	chB, err := r.Attach(idB)
	require.NoError(t, err)

	_, err = r.PostMessage(idA, "hi")
	require.NoError(t, err)
	recvEvent(t, chB)

	info, err := r.Lookup(idB)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, info.Status)

	// A fresh poll can attach again after delivery.
	_, err = r.Attach(idB)
	assert.NoError(t, err)
}

func TestDetach_ReturnsToInactiveWithoutEvent(t *testing.T) {
	r := newTestRoom(time.Minute)

	id, err := r.Register("alice")
	require.NoError(t, err)

	ch, err := r.Attach(id)
	require.NoError(t, err)

	r.Detach(id)
	requireClosedWithoutEvent(t, ch)

	info, err := r.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, info.Status)

	// Detaching again, or detaching an unknown session, is a no-op.
	r.Detach(id)
	r.Detach("id999")
}

func TestTerminate_DestroysAndAnnouncesDeparture(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	idB, err := r.Register("bob")
	require.NoError(t, err)

	chB, err := r.Attach(idB)
	require.NoError(t, err)

	r.Terminate(idA)

	_, err = r.Lookup(idA)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	ev := recvEvent(t, chB)
	assert.Equal(t, event.TypeUserOffline, ev.Type)
	info, ok := ev.Data.(event.UserInfo)
	require.True(t, ok)
	assert.Equal(t, "alice", info.Username)

	// Terminating twice is a no-op.
	r.Terminate(idA)
}

func TestTerminate_ResolvesParkedPollWithoutEvent(t *testing.T) {
	r := newTestRoom(time.Minute)

	id, err := r.Register("alice")
	require.NoError(t, err)
	ch, err := r.Attach(id)
	require.NoError(t, err)

	r.Terminate(id)
	requireClosedWithoutEvent(t, ch)
}

func TestExpiry_DestroysIdleSession(t *testing.T) {
	r := newTestRoom(100 * time.Millisecond)

	id, err := r.Register("alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, lookupErr := r.Lookup(id)
		return lookupErr != nil
	}, time.Second, 10*time.Millisecond, "idle session should expire")

	assert.Empty(t, r.DisplayNames())
}

func TestExpiry_SuspendedWhilePollParked(t *testing.T) {
	r := newTestRoom(150 * time.Millisecond)

	id, err := r.Register("alice")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, err = r.Attach(id)
	require.NoError(t, err)

	// Well past the original deadline; the parked poll keeps it alive.
	time.Sleep(300 * time.Millisecond)

	info, err := r.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, info.Status)
}

func TestExpiry_WindowMeasuredFromDelivery(t *testing.T) {
	r := newTestRoom(400 * time.Millisecond)

	idB, err := r.Register("bob")
	require.NoError(t, err)
	chB, err := r.Attach(idB)
	require.NoError(t, err)

	// Resolve bob's poll partway through what would have been his
	// original window. The fresh window starts at delivery.
	time.Sleep(200 * time.Millisecond)
	_, err = r.Register("alice")
	require.NoError(t, err)
	recvEvent(t, chB)

	// 500ms after registration but only 300ms after delivery: alive.
	time.Sleep(300 * time.Millisecond)
	_, err = r.Lookup(idB)
	assert.NoError(t, err)

	// Past the post-delivery deadline: destroyed.
	require.Eventually(t, func() bool {
		_, lookupErr := r.Lookup(idB)
		return lookupErr != nil
	}, time.Second, 20*time.Millisecond)
}

func TestExpiry_AnnouncesDepartureOnce(t *testing.T) {
	r := newTestRoom(150 * time.Millisecond)

	_, err := r.Register("alice")
	require.NoError(t, err)
	idB, err := r.Register("bob")
	require.NoError(t, err)

	chB, err := r.Attach(idB)
	require.NoError(t, err)

	ev := recvEvent(t, chB)
	assert.Equal(t, event.TypeUserOffline, ev.Type)
	info, ok := ev.Data.(event.UserInfo)
	require.True(t, ok)
	assert.Equal(t, "alice", info.Username)

	// No second departure for the same session.
	chB, err = r.Attach(idB)
	require.NoError(t, err)
	requireNoEvent(t, chB, 300*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	_, err = r.Register("bob")
	require.NoError(t, err)

	ch, err := r.Attach(idA)
	require.NoError(t, err)

	r.Shutdown()

	// Parked polls resolve without a payload.
	requireClosedWithoutEvent(t, ch)
	assert.Empty(t, r.DisplayNames())

	_, err = r.Register("carol")
	assert.ErrorIs(t, err, ErrRoomClosed)
	_, err = r.Attach(idA)
	assert.ErrorIs(t, err, ErrRoomClosed)

	// Idempotent.
	r.Shutdown()
}

func TestStats(t *testing.T) {
	r := newTestRoom(time.Minute)

	idA, err := r.Register("alice")
	require.NoError(t, err)
	_, err = r.Register("bob")
	require.NoError(t, err)

	st := r.Stats()
	assert.Equal(t, 2, st.Users)
	assert.Equal(t, 0, st.OpenPolls)

	_, err = r.Attach(idA)
	require.NoError(t, err)

	st = r.Stats()
	assert.Equal(t, 2, st.Users)
	assert.Equal(t, 1, st.OpenPolls)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "inactive", StatusInactive.String())
	assert.Equal(t, "active", StatusActive.String())
	assert.Equal(t, "destroyed", StatusDestroyed.String())
	assert.Equal(t, "unknown", Status(99).String())
}
