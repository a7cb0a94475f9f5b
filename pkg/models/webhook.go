package models

// WebhookPayload represents the incoming JSON payload from the WhatsApp
// Business Cloud API. Structure follows the payload examples documented at
// https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks/payload-examples
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         ValueMetadata     `json:"metadata"`
	Contacts         []ContactData     `json:"contacts,omitempty"`
	Messages         []IncomingMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate    `json:"statuses,omitempty"`
}

type ValueMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type ContactData struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// IncomingMessage is one value.messages[] item. Exactly one of the typed
// bodies is populated depending on Type; unmapped types still parse and are
// handled as unsupported downstream.
type IncomingMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`

	Text        *TextMessage        `json:"text,omitempty"`
	Image       *MediaMessage       `json:"image,omitempty"`
	Video       *MediaMessage       `json:"video,omitempty"`
	Audio       *MediaMessage       `json:"audio,omitempty"`
	Document    *MediaMessage       `json:"document,omitempty"`
	Sticker     *MediaMessage       `json:"sticker,omitempty"`
	Location    *LocationMessage    `json:"location,omitempty"`
	Interactive *InteractiveMessage `json:"interactive,omitempty"`
	Button      *ButtonMessage      `json:"button,omitempty"`
	Reaction    *ReactionMessage    `json:"reaction,omitempty"`
	System      *SystemMessage      `json:"system,omitempty"`
	Contacts    []map[string]any    `json:"contacts,omitempty"`
	Order       *OrderMessage       `json:"order,omitempty"`
	Context     *MessageContext     `json:"context,omitempty"`
	Referral    map[string]any      `json:"referral,omitempty"`
	Errors      []WebhookError      `json:"errors,omitempty"`
}

type TextMessage struct {
	Body string `json:"body"`
}

// MediaMessage represents a media attachment in a WhatsApp message
type MediaMessage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type LocationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// InteractiveMessage represents an interactive message response
type InteractiveMessage struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *ListReply   `json:"list_reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ButtonMessage struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type ReactionMessage struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type SystemMessage struct {
	Body    string `json:"body"`
	Type    string `json:"type"`
	NewWaID string `json:"new_wa_id,omitempty"`
}

type OrderMessage struct {
	CatalogID    string           `json:"catalog_id"`
	Text         string           `json:"text,omitempty"`
	ProductItems []map[string]any `json:"product_items,omitempty"`
}

type MessageContext struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id"`
}

// StatusUpdate is one value.statuses[] item reporting delivery progress of
// an outbound message.
type StatusUpdate struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	RecipientID  string            `json:"recipient_id"`
	Conversation *ConversationInfo `json:"conversation,omitempty"`
	Pricing      map[string]any    `json:"pricing,omitempty"`
	Errors       []WebhookError    `json:"errors,omitempty"`
}

type ConversationInfo struct {
	ID                  string `json:"id"`
	ExpirationTimestamp string `json:"expiration_timestamp,omitempty"`
	Origin              struct {
		Type string `json:"type"`
	} `json:"origin,omitempty"`
}

type WebhookError struct {
	Code    int            `json:"code"`
	Title   string         `json:"title"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"error_data,omitempty"`
}
