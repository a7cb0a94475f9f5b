package models

// WahaEvent is the envelope WAHA posts to the webhook. Only the "message"
// event is processed; other event types are acknowledged and skipped.
type WahaEvent struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Session   string          `json:"session"`
	Engine    string          `json:"engine,omitempty"`
	Event     string          `json:"event"`
	Payload   WahaMessageData `json:"payload"`
	Me        *WahaMe         `json:"me,omitempty"`
}

type WahaMe struct {
	ID       string `json:"id"`
	PushName string `json:"pushName,omitempty"`
}

type WahaMessageData struct {
	ID        string        `json:"id"`
	Timestamp int64         `json:"timestamp"`
	From      string        `json:"from"`
	FromMe    bool          `json:"fromMe"`
	Source    string        `json:"source,omitempty"`
	To        string        `json:"to"`
	Author    string        `json:"author,omitempty"`
	Body      string        `json:"body"`
	HasMedia  bool          `json:"hasMedia"`
	Media     *WahaMedia    `json:"media,omitempty"`
	Ack       int           `json:"ack,omitempty"`
	AckName   string        `json:"ackName,omitempty"`
	Location  *WahaLocation `json:"location,omitempty"`
	VCards    []string      `json:"vCards,omitempty"`
	ReplyTo   *WahaReplyTo  `json:"replyTo,omitempty"`
}

type WahaMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

type WahaLocation struct {
	Description string `json:"description,omitempty"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

type WahaReplyTo struct {
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
	Body        string `json:"body,omitempty"`
}
