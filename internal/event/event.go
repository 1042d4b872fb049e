// Package event defines the wire-level payloads exchanged with chat clients:
// chat messages, presence notices, and the envelopes that resolve long-polls.
package event

import "time"

// Type identifies what kind of event resolved a long-poll.
type Type string

const (
	// TypeIncomingMessage carries a chat message from another user.
	TypeIncomingMessage Type = "incomingmessage"
	// TypeUserOnline announces that a user joined the room.
	TypeUserOnline Type = "useronline"
	// TypeUserOffline announces that a user left the room.
	TypeUserOffline Type = "useroffline"
)

// Message is a single chat message record as stored in history and
// delivered to polling clients.
type Message struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// UserInfo carries a display name in presence notices and the
// users-online listing.
type UserInfo struct {
	Username string `json:"username"`
}

// Event is the envelope written to a client when its long-poll resolves.
// Data is either a Message (incomingmessage) or a UserInfo (useronline,
// useroffline).
type Event struct {
	Success bool        `json:"success"`
	Type    Type        `json:"type"`
	Data    interface{} `json:"data"`
}

// NewMessageEvent wraps a chat message for delivery.
func NewMessageEvent(msg Message) Event {
	return Event{Success: true, Type: TypeIncomingMessage, Data: msg}
}

// NewOnlineEvent wraps a user-online presence notice.
func NewOnlineEvent(username string) Event {
	return Event{Success: true, Type: TypeUserOnline, Data: UserInfo{Username: username}}
}

// NewOfflineEvent wraps a user-offline presence notice.
func NewOfflineEvent(username string) Event {
	return Event{Success: true, Type: TypeUserOffline, Data: UserInfo{Username: username}}
}
