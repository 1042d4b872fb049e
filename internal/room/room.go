// Package room implements the presence-and-delivery coordinator: the
// registry of connected users, the active/inactive session state
// machine, and the best-effort fan-out of chat and presence events to
// parked long-polls.
//
// All registry and history mutation runs under a single mutex, so
// registrations, message posts, poll attaches, transport closes, and
// timer expirations are strictly serialized relative to one another.
// This is what upholds the two core invariants: display names are
// unique among live sessions, and a session holds at most one pending
// long-poll at a time.
package room

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chatkit/chatroom/internal/constants"
	"github.com/chatkit/chatroom/internal/event"
	"github.com/chatkit/chatroom/internal/history"
	"github.com/chatkit/chatroom/internal/metrics"
)

var (
	// ErrNameTooLong is returned when a display name exceeds the limit.
	ErrNameTooLong = errors.New("display name exceeds maximum length")
	// ErrNameInUse is returned when a display name is already taken by a live session.
	ErrNameInUse = errors.New("display name already in use")
	// ErrSessionNotFound is returned when a session id is not in the registry.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyAttached is returned when a session already holds a parked long-poll.
	ErrAlreadyAttached = errors.New("session already has an attached long-poll")
	// ErrRoomClosed is returned after Shutdown.
	ErrRoomClosed = errors.New("room is shut down")
)

// SessionInfo is a point-in-time view of one session for callers
// outside the serialization domain.
type SessionInfo struct {
	ID     string
	Name   string
	Status Status
}

// Stats summarizes room occupancy for readiness reporting.
type Stats struct {
	Users     int `json:"users"`
	OpenPolls int `json:"open_polls"`
}

// Room owns the session registry and the message history, and fans out
// events to parked long-polls. Sessions are created by Register and
// destroyed either by inactivity expiry or by Terminate; both paths
// converge on the same idempotent destroy.
type Room struct {
	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
	log      *history.Log
	window   time.Duration
	logger   *slog.Logger
	closed   bool
}

// New creates a room. window is the inactivity window after which a
// session with no parked long-poll is destroyed.
func New(window time.Duration, log *history.Log, logger *slog.Logger) *Room {
	if window <= 0 {
		window = constants.DefaultInactivityWindow
	}
	return &Room{
		sessions: make(map[string]*Session),
		log:      log,
		window:   window,
		logger:   logger.With("component", "room"),
	}
}

// Register creates a session for displayName and announces it to every
// other session. The new session starts Inactive with an armed
// inactivity timer: the client is expected to attach a long-poll
// promptly. Identifiers are assigned monotonically and never reused
// within the process lifetime.
func (r *Room) Register(displayName string) (string, error) {
	if utf8.RuneCountInString(displayName) > constants.MaxDisplayNameLength {
		return "", ErrNameTooLong
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomClosed
	}

	// Serialized uniqueness check: exact, case-sensitive match.
	for _, s := range r.sessions {
		if s.name == displayName {
			return "", fmt.Errorf("%w: %s", ErrNameInUse, displayName)
		}
	}

	r.nextID++
	id := fmt.Sprintf("id%d", r.nextID)

	s := &Session{
		id:     id,
		name:   displayName,
		status: StatusInactive,
	}
	s.armTimerLocked(r)
	r.sessions[id] = s

	metrics.ConnectedUsers.Inc()
	metrics.SessionsCreated.Inc()
	r.logger.Info("User registered", "session_id", id, "username", displayName)

	r.broadcastLocked(event.NewOnlineEvent(displayName), id)

	return id, nil
}

// Lookup returns a snapshot of the session, or ErrSessionNotFound.
func (r *Room) Lookup(sessionID string) (SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return SessionInfo{ID: s.id, Name: s.name, Status: s.status}, nil
}

// Attach parks a long-poll for the session. Only legal while the
// session is Inactive; a session that already holds a poll is rejected
// rather than having its live poll replaced (no multi-tab support).
// The returned channel yields at most one event and is closed when the
// poll resolves for any reason.
func (r *Room) Attach(sessionID string) (<-chan event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomClosed
	}

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.status == StatusActive {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAttached, sessionID)
	}

	ch := s.attachLocked()
	r.logger.Debug("Long-poll attached", "session_id", s.id, "username", s.name)
	return ch, nil
}

// Detach handles the transport of a parked poll closing without an
// event having been delivered: the session returns to Inactive with a
// fresh inactivity window. No-op if the session is unknown or has no
// parked poll, so the request-closed and response-closed signals for
// the same poll collapse into one transition.
func (r *Room) Detach(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if s.status == StatusActive {
		r.logger.Debug("Long-poll closed by peer", "session_id", s.id, "username", s.name)
	}
	s.closeLocked(r)
}

// Terminate destroys the session immediately and broadcasts its
// departure. Idempotent: terminating an unknown or already-destroyed
// session is a no-op.
func (r *Room) Terminate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	r.destroyLocked(s)
}

// PostMessage appends a message authored by the session to the history
// and fans it out to every other session. The append happens strictly
// before the broadcast, within the same serialization turn, so a
// history fetch racing the broadcast always sees the new message.
func (r *Room) PostMessage(sessionID, text string) (event.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return event.Message{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	msg := event.Message{
		Author:    s.name,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	r.log.Append(msg)
	metrics.MessagesPosted.Inc()

	r.broadcastLocked(event.NewMessageEvent(msg), sessionID)

	return msg, nil
}

// DisplayNames returns a snapshot of the display names of all live
// sessions. Order is not guaranteed.
func (r *Room) DisplayNames() []event.UserInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]event.UserInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		names = append(names, event.UserInfo{Username: s.name})
	}
	return names
}

// Stats returns current occupancy counts.
func (r *Room) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{Users: len(r.sessions)}
	for _, s := range r.sessions {
		if s.status == StatusActive {
			st.OpenPolls++
		}
	}
	return st
}

// Shutdown destroys every session and resolves all parked polls. After
// Shutdown, Register and Attach fail with ErrRoomClosed. Departure
// broadcasts are skipped: there is nobody left to receive them.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for id, s := range r.sessions {
		delete(r.sessions, id)
		s.releaseLocked()
		metrics.ConnectedUsers.Dec()
		metrics.SessionsEnded.Inc()
	}
	r.logger.Info("Room shut down")
}

// expire is the inactivity timer callback. The generation check drops
// callbacks that lost the race against a re-attach or an earlier
// destroy: time.Timer.Stop cannot retract a callback that has already
// fired and is waiting on the mutex.
func (r *Room) expire(sessionID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if s.timerGen != gen || s.status != StatusInactive {
		return
	}

	r.logger.Info("Session expired", "session_id", s.id, "username", s.name)
	r.destroyLocked(s)
}

// destroyLocked removes the session from the registry, releases its
// resources, and broadcasts the departure. Removal happens before any
// side effect so a concurrent destroy attempt observes the session as
// already gone. Requires r.mu held.
func (r *Room) destroyLocked(s *Session) {
	if _, ok := r.sessions[s.id]; !ok {
		return
	}
	delete(r.sessions, s.id)
	name := s.name
	s.releaseLocked()

	metrics.ConnectedUsers.Dec()
	metrics.SessionsEnded.Inc()
	r.logger.Info("Session destroyed", "session_id", s.id, "username", name)

	r.broadcastLocked(event.NewOfflineEvent(name), s.id)
}

// broadcastLocked fans the event out to every session except the
// originator. Inactive sessions are a normal branch, not an error: the
// event is simply dropped for them — no per-session outbox, only the
// in-flight long-poll receives live events. Requires r.mu held.
func (r *Room) broadcastLocked(ev event.Event, excludeID string) {
	for id, s := range r.sessions {
		if id == excludeID {
			continue
		}
		if s.status != StatusActive {
			metrics.EventsDropped.Inc()
			continue
		}
		s.deliverLocked(r, ev)
	}
}
