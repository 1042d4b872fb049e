package event

import (
	"fmt"
	"unicode/utf8"
)

// MaxTextLength is the maximum message text length in characters.
const MaxTextLength = 10000

// ValidationError represents a validation error on a command payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// LoginPayload is the decoded body of a login command.
type LoginPayload struct {
	Username string `json:"username"`
}

// Validate checks the login payload shape. Name-length and uniqueness
// rejections are business outcomes reported in the command result, not
// validation errors; here we only reject payloads with no usable name.
func (p *LoginPayload) Validate() error {
	if p.Username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if !utf8.ValidString(p.Username) {
		return &ValidationError{Field: "username", Message: "username must be valid UTF-8"}
	}
	return nil
}

// PostMessagePayload is the decoded body of a new-message command.
type PostMessagePayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// Validate checks the post-message payload shape.
func (p *PostMessagePayload) Validate() error {
	if p.SessionID == "" {
		return &ValidationError{Field: "sessionId", Message: "sessionId is required"}
	}
	if p.Text == "" {
		return &ValidationError{Field: "text", Message: "text is required"}
	}
	if utf8.RuneCountInString(p.Text) > MaxTextLength {
		return &ValidationError{Field: "text", Message: fmt.Sprintf("text exceeds maximum length of %d characters", MaxTextLength)}
	}
	if !utf8.ValidString(p.Text) {
		return &ValidationError{Field: "text", Message: "text must be valid UTF-8"}
	}
	return nil
}

// AttachPayload is the decoded body of a long-poll attach command.
type AttachPayload struct {
	SessionID string `json:"sessionId"`
}

// Validate checks the attach payload shape.
func (p *AttachPayload) Validate() error {
	if p.SessionID == "" {
		return &ValidationError{Field: "sessionId", Message: "sessionId is required"}
	}
	return nil
}
