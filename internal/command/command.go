// Package command exposes the five chat commands to the routing veneer:
// login, post-message, get-history, get-online-users, and attach-long-poll.
// Each command validates its payload, consults the room and history, and
// produces a JSON-serializable result with a mandatory success flag and,
// on failure, a reason code the client acts on.
package command

import (
	"errors"
	"log/slog"

	"github.com/chatkit/chatroom/internal/constants"
	"github.com/chatkit/chatroom/internal/event"
	"github.com/chatkit/chatroom/internal/history"
	"github.com/chatkit/chatroom/internal/room"
	"github.com/chatkit/chatroom/internal/util"
)

// Command names as exposed to the routing veneer (verb:resource).
const (
	CmdLogin      = "POST:login"
	CmdNewMessage = "POST:newmessage"
	CmdHistory    = "GET:history"
	CmdUsers      = "GET:usersonline"
	CmdPolling    = "POST:polling"
)

// Result is the JSON-serializable outcome of a command. Reason is set
// only on failure and is one of the fixed reason codes; Data carries
// command-specific payloads (history entries, user listings).
type Result struct {
	Success   bool        `json:"success"`
	SessionID string      `json:"sessionId,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func ok() Result                  { return Result{Success: true} }
func fail(reason string) Result   { return Result{Success: false, Reason: reason} }
func okData(d interface{}) Result { return Result{Success: true, Data: d} }

// Router executes decoded commands against the room and history.
// Payload shape errors are returned as *event.ValidationError so the
// veneer can tear down the misbehaving connection; business failures
// (name taken, no such session) are ordinary results.
type Router struct {
	room   *room.Room
	log    *history.Log
	logger *slog.Logger
}

// NewRouter creates a command router.
func NewRouter(rm *room.Room, log *history.Log, logger *slog.Logger) *Router {
	return &Router{
		room:   rm,
		log:    log,
		logger: logger.With("component", "command"),
	}
}

// Login registers a display name and returns the assigned session id.
// Failure reasons: LOGIN_USERNAME_TOO_LONG, LOGIN_ALREADY_IN_USE.
func (rt *Router) Login(p event.LoginPayload) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	id, err := rt.room.Register(p.Username)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrNameTooLong):
			return fail(constants.ReasonNameTooLong), nil
		case errors.Is(err, room.ErrNameInUse):
			rt.logger.Info("Login rejected, name in use", "username", p.Username)
			return fail(constants.ReasonNameInUse), nil
		default:
			// Room closed or another state error: tell the client to
			// restart its session.
			util.LogError(rt.logger, "command", "register user", err, "username", p.Username)
			return fail(constants.ReasonNoSession), nil
		}
	}

	return Result{Success: true, SessionID: id}, nil
}

// PostMessage appends a message to history and fans it out to every
// other session. Failure reason: NO_USER_LOGGED when the session does
// not exist.
func (rt *Router) PostMessage(p event.PostMessagePayload) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	if _, err := rt.room.PostMessage(p.SessionID, p.Text); err != nil {
		rt.logger.Info("Message rejected, no session", "session_id", p.SessionID)
		return fail(constants.ReasonNoSession), nil
	}

	return ok(), nil
}

// GetHistory returns the retained message history, oldest first.
func (rt *Router) GetHistory() Result {
	return okData(rt.log.Snapshot())
}

// GetOnlineUsers returns a snapshot of the display names of all live
// sessions.
func (rt *Router) GetOnlineUsers() Result {
	return okData(rt.room.DisplayNames())
}

// AttachLongPoll parks a long-poll for the session. On success the
// returned channel yields at most one event and is closed when the
// poll resolves; the veneer writes whatever arrives. On business
// failure the channel is nil and the result carries NO_USER_LOGGED —
// deliberately the same code for an unknown session and for a session
// that already holds a live poll (no multi-tab support).
func (rt *Router) AttachLongPoll(p event.AttachPayload) (<-chan event.Event, Result, error) {
	if err := p.Validate(); err != nil {
		return nil, Result{}, err
	}

	ch, err := rt.room.Attach(p.SessionID)
	if err != nil {
		rt.logger.Info("Long-poll attach rejected", "session_id", p.SessionID, "error", err)
		return nil, fail(constants.ReasonNoSession), nil
	}

	return ch, ok(), nil
}

// Detach reports that the transport of a parked poll closed before any
// event was delivered.
func (rt *Router) Detach(sessionID string) {
	rt.room.Detach(sessionID)
}
