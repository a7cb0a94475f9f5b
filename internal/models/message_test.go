package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPhoneNumber() *PhoneNumber {
	return &PhoneNumber{ID: 1, PhoneNumber: "40111111111", APIType: APITypeOfficial}
}

func testContact() *Contact {
	return &Contact{ID: 2, PhoneNumber: "40777777777"}
}

func TestTempMessageID(t *testing.T) {
	id := TempMessageID()
	assert.True(t, strings.HasPrefix(id, "temp_"))
	assert.NotEqual(t, id, TempMessageID())
}

func TestNewOutgoingMessageText(t *testing.T) {
	msg, err := NewOutgoingMessage(OutgoingParams{
		PhoneNumber: testPhoneNumber(),
		Contact:     testContact(),
		Text:        "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, DirectionOutgoing, msg.Direction)
	assert.Equal(t, StatusPending, msg.Status)
	assert.Equal(t, TypeText, msg.MessageType)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "40111111111", msg.FromNumber)
	assert.Equal(t, "40777777777", msg.ToNumber)
	assert.True(t, strings.HasPrefix(msg.MessageID, "temp_"))
}

func TestNewOutgoingMessageTemplate(t *testing.T) {
	tpl := &Template{ID: 7, Name: "order_update", Language: "en"}
	msg, err := NewOutgoingMessage(OutgoingParams{
		PhoneNumber:       testPhoneNumber(),
		Contact:           testContact(),
		Template:          tpl,
		TemplateVariables: map[string]string{"client_name": "Ana"},
	})
	require.NoError(t, err)

	assert.Equal(t, TypeTemplate, msg.MessageType)
	require.NotNil(t, msg.TemplateID)
	assert.Equal(t, uint(7), *msg.TemplateID)
	assert.Equal(t, map[string]string{"client_name": "Ana"}, msg.TemplateVariablesMap())
}

func TestNewOutgoingMessageMedia(t *testing.T) {
	msg, err := NewOutgoingMessage(OutgoingParams{
		PhoneNumber: testPhoneNumber(),
		Contact:     testContact(),
		MediaURL:    "https://example.com/photo.jpg",
		MediaType:   TypeImage,
		Text:        "caption",
	})
	require.NoError(t, err)

	assert.Equal(t, TypeImage, msg.MessageType)
	assert.Equal(t, "https://example.com/photo.jpg", msg.MediaURL)
	assert.Equal(t, "caption", msg.Content)
}

func TestNewOutgoingMessageRejectsEmpty(t *testing.T) {
	_, err := NewOutgoingMessage(OutgoingParams{
		PhoneNumber: testPhoneNumber(),
		Contact:     testContact(),
	})
	assert.Error(t, err)

	_, err = NewOutgoingMessage(OutgoingParams{Contact: testContact(), Text: "x"})
	assert.Error(t, err)

	_, err = NewOutgoingMessage(OutgoingParams{PhoneNumber: testPhoneNumber(), Text: "x"})
	assert.Error(t, err)

	_, err = NewOutgoingMessage(OutgoingParams{
		PhoneNumber: testPhoneNumber(),
		Contact:     testContact(),
		MediaURL:    "https://example.com/file",
		MediaType:   "sticker",
	})
	assert.Error(t, err)
}

func TestCanTransitionTo(t *testing.T) {
	msg := &Message{Status: StatusPending}
	assert.True(t, msg.CanTransitionTo(StatusSent))
	assert.True(t, msg.CanTransitionTo(StatusDelivered))
	assert.True(t, msg.CanTransitionTo(StatusFailed))

	msg.Status = StatusSent
	assert.True(t, msg.CanTransitionTo(StatusDelivered))
	assert.True(t, msg.CanTransitionTo(StatusRead))
	assert.False(t, msg.CanTransitionTo(StatusPending))
	assert.False(t, msg.CanTransitionTo(StatusSent))

	msg.Status = StatusRead
	assert.False(t, msg.CanTransitionTo(StatusDelivered))
	assert.True(t, msg.CanTransitionTo(StatusFailed))

	msg.Status = StatusReceived
	assert.False(t, msg.CanTransitionTo(StatusSent))
	assert.False(t, msg.CanTransitionTo(StatusFailed))

	msg.Status = StatusFailed
	assert.False(t, msg.CanTransitionTo(StatusFailed))
}

func TestMergeMetadata(t *testing.T) {
	msg := &Message{}
	msg.MergeMetadata(map[string]any{"a": "1"})
	msg.MergeMetadata(map[string]any{"b": "2"})

	meta := msg.MetadataMap()
	assert.Equal(t, "1", meta["a"])
	assert.Equal(t, "2", meta["b"])

	// Re-applying the same update leaves the blob unchanged.
	before := msg.Metadata
	msg.MergeMetadata(map[string]any{"b": "2"})
	assert.JSONEq(t, before, msg.Metadata)
}
