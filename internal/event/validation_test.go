package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginPayload_Validate(t *testing.T) {
	tests := []struct {
		name      string
		payload   LoginPayload
		wantField string
	}{
		{"valid", LoginPayload{Username: "alice"}, ""},
		{"missing username", LoginPayload{}, "username"},
		{"invalid utf8", LoginPayload{Username: string([]byte{0xff, 0xfe})}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestPostMessagePayload_Validate(t *testing.T) {
	tests := []struct {
		name      string
		payload   PostMessagePayload
		wantField string
	}{
		{"valid", PostMessagePayload{SessionID: "id1", Text: "hi"}, ""},
		{"missing session id", PostMessagePayload{Text: "hi"}, "sessionId"},
		{"missing text", PostMessagePayload{SessionID: "id1"}, "text"},
		{"text at limit", PostMessagePayload{SessionID: "id1", Text: strings.Repeat("a", MaxTextLength)}, ""},
		{"text over limit", PostMessagePayload{SessionID: "id1", Text: strings.Repeat("a", MaxTextLength+1)}, "text"},
		{"invalid utf8", PostMessagePayload{SessionID: "id1", Text: string([]byte{0xff})}, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestAttachPayload_Validate(t *testing.T) {
	assert.NoError(t, (&AttachPayload{SessionID: "id1"}).Validate())

	err := (&AttachPayload{}).Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sessionId", verr.Field)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "text", Message: "text is required"}
	assert.Equal(t, "validation error on field 'text': text is required", err.Error())
}
