package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

const (
	StatusPending   = "pending"
	StatusReceived  = "received"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

const (
	TypeText        = "text"
	TypeImage       = "image"
	TypeAudio       = "audio"
	TypeVideo       = "video"
	TypeDocument    = "document"
	TypeLocation    = "location"
	TypeTemplate    = "template"
	TypeButton      = "button"
	TypeInteractive = "interactive"
)

// statusRank orders the forward-only delivery state machine:
// pending -> sent -> delivered -> read, with failed reachable from any
// non-terminal state. received is the terminal initial state of inbound
// messages and never transitions.
var statusRank = map[string]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Message is one WhatsApp message, inbound or outbound.
type Message struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	PhoneNumberID uint         `gorm:"index;not null" json:"phone_number_id"`
	PhoneNumber   *PhoneNumber `gorm:"foreignKey:PhoneNumberID" json:"-"`
	ContactID     *uint        `gorm:"index" json:"contact_id"`
	Contact       *Contact     `gorm:"foreignKey:ContactID" json:"-"`
	TemplateID    *uint        `gorm:"index" json:"template_id"`
	Template      *Template    `gorm:"foreignKey:TemplateID" json:"-"`

	// TemplateVariables is a JSON object of the variables used when
	// composing a template message.
	TemplateVariables string `gorm:"type:text" json:"template_variables"`

	// MessageID is the provider message id and the idempotency key for
	// status updates; outgoing messages carry a temp_<uuid> placeholder
	// until the backend returns a real id.
	MessageID      string `gorm:"type:varchar(255);uniqueIndex;not null" json:"message_id"`
	ConversationID string `gorm:"type:varchar(255)" json:"conversation_id"`
	FromNumber     string `gorm:"type:varchar(50)" json:"from_number"`
	ToNumber       string `gorm:"type:varchar(50)" json:"to_number"`
	Direction      string `gorm:"type:varchar(10)" json:"direction"`
	MessageType    string `gorm:"type:varchar(20)" json:"message_type"`
	Content        string `gorm:"type:text" json:"content"`
	MediaFile      string `gorm:"type:varchar(255)" json:"media_file"`
	MediaID        string `gorm:"type:varchar(255)" json:"media_id"`
	MediaMimeType  string `gorm:"type:varchar(50)" json:"media_mime_type"`
	MediaURL       string `gorm:"type:text" json:"media_url"`
	Metadata       string `gorm:"type:text" json:"metadata"`
	RawMessage     string `gorm:"type:text" json:"raw_message"`

	Status       string     `gorm:"type:varchar(10);default:received" json:"status"`
	Timestamp    time.Time  `json:"timestamp"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	ReadAt       *time.Time `json:"read_at"`
	ErrorCode    string     `gorm:"type:varchar(50)" json:"error_code"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// TempMessageID generates the placeholder provider id assigned to an
// outgoing message before the backend returns a real one.
func TempMessageID() string {
	return "temp_" + uuid.NewString()
}

// OutgoingParams describes the composition of a new outgoing message.
type OutgoingParams struct {
	PhoneNumber       *PhoneNumber
	Contact           *Contact
	Text              string
	Template          *Template
	TemplateVariables map[string]string
	MediaURL          string
	MediaType         string
}

// NewOutgoingMessage builds an outgoing message in the pending state. The
// to-number is always derived from the contact; dispatch happens as an
// explicit step after persistence.
func NewOutgoingMessage(p OutgoingParams) (*Message, error) {
	if p.PhoneNumber == nil {
		return nil, errors.New("phone number is required for outgoing messages")
	}
	if p.Contact == nil {
		return nil, errors.New("contact is required for outgoing messages")
	}

	msg := &Message{
		PhoneNumberID: p.PhoneNumber.ID,
		ContactID:     &p.Contact.ID,
		MessageID:     TempMessageID(),
		FromNumber:    p.PhoneNumber.PhoneNumber,
		ToNumber:      p.Contact.PhoneNumber,
		Direction:     DirectionOutgoing,
		Status:        StatusPending,
		Timestamp:     time.Now(),
	}

	switch {
	case p.Text != "":
		msg.MessageType = TypeText
		msg.Content = p.Text
	case p.Template != nil:
		msg.MessageType = TypeTemplate
		msg.TemplateID = &p.Template.ID
		content, err := json.Marshal(map[string]any{
			"name":   p.Template.Name,
			"params": p.TemplateVariables,
		})
		if err != nil {
			return nil, err
		}
		msg.Content = string(content)
		if len(p.TemplateVariables) > 0 {
			vars, err := json.Marshal(p.TemplateVariables)
			if err != nil {
				return nil, err
			}
			msg.TemplateVariables = string(vars)
		}
	case p.MediaURL != "" && p.MediaType != "":
		switch p.MediaType {
		case TypeImage, TypeAudio, TypeVideo, TypeDocument:
		default:
			return nil, errors.New("unsupported media type: " + p.MediaType)
		}
		msg.MessageType = p.MediaType
		msg.MediaURL = p.MediaURL
		msg.Content = p.Text
	default:
		return nil, errors.New("either text, template, or media must be provided")
	}

	return msg, nil
}

// CanTransitionTo reports whether moving to the given status is a forward
// step of the state machine. Webhook status ingestion copies provider
// statuses verbatim and does not consult this; see the regression note in
// DESIGN.md.
func (m *Message) CanTransitionTo(status string) bool {
	if status == StatusFailed {
		return m.Status != StatusReceived && m.Status != StatusFailed
	}
	cur, ok := statusRank[m.Status]
	if !ok {
		return false
	}
	next, ok := statusRank[status]
	if !ok {
		return false
	}
	return next > cur
}

// MetadataMap decodes the metadata JSON blob; an empty blob yields an
// empty map.
func (m *Message) MetadataMap() map[string]any {
	out := map[string]any{}
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &out)
	}
	return out
}

// MergeMetadata unions the given keys into the metadata blob, preserving
// keys that are not part of the update.
func (m *Message) MergeMetadata(update map[string]any) {
	if len(update) == 0 {
		return
	}
	meta := m.MetadataMap()
	for k, v := range update {
		meta[k] = v
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	m.Metadata = string(data)
}

// TemplateVariablesMap decodes the stored template variables.
func (m *Message) TemplateVariablesMap() map[string]string {
	out := map[string]string{}
	if m.TemplateVariables != "" {
		_ = json.Unmarshal([]byte(m.TemplateVariables), &out)
	}
	return out
}
