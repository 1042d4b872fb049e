package room

import (
	"time"

	"github.com/chatkit/chatroom/internal/event"
	"github.com/chatkit/chatroom/internal/metrics"
)

// Status represents the connection state of a session.
type Status int

const (
	// StatusInactive means no long-poll is held open; the inactivity
	// timer is running and the session will be destroyed if no poll
	// re-attaches before it fires.
	StatusInactive Status = iota
	// StatusActive means exactly one long-poll is parked for this
	// session, waiting for an event.
	StatusActive
	// StatusDestroyed is terminal: the session has been removed from
	// the room and all resources released.
	StatusDestroyed
)

// String returns a human-readable status name for logs.
func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Session is the per-user state record: identity, active/inactive
// status, the pending long-poll delivery channel, and the inactivity
// timer. All fields are guarded by the owning Room's mutex; none of the
// methods below may be called without it held.
type Session struct {
	id   string
	name string

	status Status

	// pending is non-nil only while Active. It is buffered with
	// capacity 1 so a deliver never blocks the serialization turn;
	// at most one event is ever sent before the channel is replaced
	// on the next attach.
	pending chan event.Event

	// timer fires expiry while Inactive. timerGen invalidates stale
	// AfterFunc callbacks that lost the race against a re-attach or
	// an earlier destroy.
	timer    *time.Timer
	timerGen uint64
	deadline time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the immutable display name.
func (s *Session) Name() string { return s.name }

// attachLocked transitions Inactive -> Active: disarms the inactivity
// timer and creates the pending delivery channel. Only legal from
// Inactive; callers must have rejected other states already.
func (s *Session) attachLocked() <-chan event.Event {
	s.disarmTimerLocked()
	s.pending = make(chan event.Event, 1)
	s.status = StatusActive
	metrics.OpenLongPolls.Inc()
	return s.pending
}

// deliverLocked completes the pending long-poll with the event and
// transitions Active -> Inactive, re-arming the inactivity timer.
// Only legal from Active.
func (s *Session) deliverLocked(r *Room, ev event.Event) {
	s.pending <- ev
	close(s.pending)
	s.pending = nil
	s.status = StatusInactive
	s.armTimerLocked(r)
	metrics.OpenLongPolls.Dec()
	metrics.EventsDelivered.Inc()
}

// closeLocked handles the remote peer disconnecting a parked poll:
// clears the pending channel without delivering a payload and
// transitions Active -> Inactive with a fresh inactivity window.
// Idempotent no-op if not Active.
func (s *Session) closeLocked(r *Room) {
	if s.status != StatusActive {
		return
	}
	close(s.pending)
	s.pending = nil
	s.status = StatusInactive
	s.armTimerLocked(r)
	metrics.OpenLongPolls.Dec()
}

// releaseLocked frees all session resources on destroy. The session
// must already be removed from the registry by the caller.
func (s *Session) releaseLocked() {
	s.disarmTimerLocked()
	if s.pending != nil {
		close(s.pending)
		s.pending = nil
		metrics.OpenLongPolls.Dec()
	}
	s.status = StatusDestroyed
}

// armTimerLocked starts a fresh inactivity countdown. Any previously
// scheduled expiry is invalidated via the generation counter even if
// its AfterFunc already fired and is waiting on the room mutex.
func (s *Session) armTimerLocked(r *Room) {
	s.timerGen++
	gen := s.timerGen
	id := s.id
	s.deadline = time.Now().Add(r.window)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(r.window, func() {
		r.expire(id, gen)
	})
}

// disarmTimerLocked cancels the inactivity countdown.
func (s *Session) disarmTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
