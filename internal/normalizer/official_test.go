package normalizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/whatsapp"
	wire "whatsapp-hub/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.PhoneNumber{},
		&models.Contact{},
		&models.Template{},
		&models.Message{},
	))
	return store.New(db)
}

func newOfficialNormalizer(t *testing.T, st *store.Store, graphURL string) (*Official, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		GraphAPIBaseURL: graphURL,
		MediaDir:        t.TempDir(),
		HTTPTimeout:     5 * time.Second,
	}
	log := zap.NewNop()
	return NewOfficial(st, whatsapp.NewClient(cfg, log), cfg, log), cfg
}

func seedOfficialNumber(t *testing.T, st *store.Store) *models.PhoneNumber {
	t.Helper()
	pn := &models.PhoneNumber{
		DisplayName:   "Main",
		PhoneNumber:   "40111111111",
		APIType:       models.APITypeOfficial,
		PhoneNumberID: "123",
		AccessToken:   "tok",
		IsActive:      true,
	}
	require.NoError(t, st.CreatePhoneNumber(pn))
	return pn
}

func payloadFromJSON(t *testing.T, raw string) *wire.WebhookPayload {
	t.Helper()
	var payload wire.WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return &payload
}

func messagesPayload(t *testing.T, value string) *wire.WebhookPayload {
	t.Helper()
	return payloadFromJSON(t, `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "ENTRY", "changes": [{"field": "messages", "value": `+value+`}]}]
	}`)
}

func TestProcessTextMessage(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"messaging_product": "whatsapp",
		"metadata": {"display_phone_number": "40111111111", "phone_number_id": "123"},
		"contacts": [{"wa_id": "40777777777", "profile": {"name": "Ana"}}],
		"messages": [{"from": "40777777777", "id": "wamid.IN1", "timestamp": "1700000000",
			"type": "text", "text": {"body": "hello there"}}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)

	msg, err := st.MessageByProviderID("wamid.IN1")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionIncoming, msg.Direction)
	assert.Equal(t, models.StatusReceived, msg.Status)
	assert.Equal(t, models.TypeText, msg.MessageType)
	assert.Equal(t, "hello there", msg.Content)
	assert.Equal(t, "40777777777", msg.FromNumber)
	assert.Equal(t, "40111111111", msg.ToNumber)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.Timestamp)

	contact, err := st.ContactByPhone("40777777777")
	require.NoError(t, err)
	assert.Equal(t, "Ana", contact.Name)
	require.NotNil(t, msg.ContactID)
	assert.Equal(t, contact.ID, *msg.ContactID)
}

func TestDuplicateMessageUpdatesInPlace(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"contacts": [{"wa_id": "40777777777", "profile": {"name": "Ana"}}],
		"messages": [{"from": "40777777777", "id": "wamid.DUP", "timestamp": "1700000000",
			"type": "text", "text": {"body": "first"}}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)
	first, err := st.MessageByProviderID("wamid.DUP")
	require.NoError(t, err)

	n.ProcessPayload(context.Background(), pn, payload)
	second, err := st.MessageByProviderID("wamid.DUP")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	messages, err := st.RecentMessages(10)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestProcessLocationMessage(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"messages": [{"from": "40777777777", "id": "wamid.LOC", "timestamp": "1700000000",
			"type": "location", "location": {"latitude": 44.43, "longitude": 26.1, "name": "Office"}}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)

	msg, err := st.MessageByProviderID("wamid.LOC")
	require.NoError(t, err)
	assert.Equal(t, models.TypeLocation, msg.MessageType)
	meta := msg.MetadataMap()
	loc := meta["location"].(map[string]any)
	assert.Equal(t, 44.43, loc["latitude"])
	assert.Equal(t, "Office", loc["name"])
}

func TestProcessInteractiveReply(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"messages": [{"from": "40777777777", "id": "wamid.BTN", "timestamp": "1700000000",
			"type": "interactive",
			"interactive": {"type": "button_reply", "button_reply": {"id": "opt-1", "title": "Confirm"}}}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)

	msg, err := st.MessageByProviderID("wamid.BTN")
	require.NoError(t, err)
	assert.Equal(t, models.TypeInteractive, msg.MessageType)
	assert.Equal(t, "Confirm", msg.Content)
	assert.Equal(t, "opt-1", msg.MetadataMap()["reply_id"])
}

func TestProcessUnsupportedType(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"messages": [{"from": "40777777777", "id": "wamid.UNK", "timestamp": "1700000000",
			"type": "unsupported",
			"errors": [{"code": 131051, "title": "Message type unknown"}]}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)

	msg, err := st.MessageByProviderID("wamid.UNK")
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "Unsupported message type")
	assert.Equal(t, "unsupported", msg.MetadataMap()["unsupported_type"])
	assert.NotNil(t, msg.MetadataMap()["errors"])
}

func TestProcessImageDownloadsMedia(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media-9":
			w.Write([]byte(`{"url": "` + server.URL + `/files/media-9", "mime_type": "image/jpeg"}`))
		case "/files/media-9":
			w.Write([]byte("jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	st := newTestStore(t)
	n, cfg := newOfficialNormalizer(t, st, server.URL)
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"messages": [{"from": "40777777777", "id": "wamid.IMG", "timestamp": "1700000000",
			"type": "image", "image": {"id": "media-9", "mime_type": "image/jpeg", "caption": "sunset"}}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)

	msg, err := st.MessageByProviderID("wamid.IMG")
	require.NoError(t, err)
	assert.Equal(t, models.TypeImage, msg.MessageType)
	assert.Equal(t, "media-9", msg.MediaID)
	assert.Equal(t, "sunset", msg.Content)
	require.NotEmpty(t, msg.MediaFile)

	data, err := os.ReadFile(msg.MediaFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Contains(t, msg.MediaFile, cfg.MediaDir)
}

func TestProcessSystemUserChangedNumber(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	payload := messagesPayload(t, `{
		"messages": [{"from": "40777777777", "id": "wamid.SYS", "timestamp": "1700000000",
			"type": "system",
			"system": {"body": "User changed number", "type": "user_changed_number", "new_wa_id": "40888888888"}}]
	}`)
	n.ProcessPayload(context.Background(), pn, payload)

	_, err := st.ContactByPhone("40888888888")
	assert.NoError(t, err)
	_, err = st.ContactByPhone("40777777777")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatusUpdateDeliveredAndRead(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	msg := &models.Message{
		PhoneNumberID: pn.ID,
		MessageID:     "wamid.OUT1",
		Direction:     models.DirectionOutgoing,
		Status:        models.StatusSent,
		MessageType:   models.TypeText,
	}
	require.NoError(t, st.CreateMessage(msg))

	n.ProcessPayload(context.Background(), pn, messagesPayload(t, `{
		"statuses": [{"id": "wamid.OUT1", "status": "delivered", "timestamp": "1700000100",
			"recipient_id": "40777777777",
			"conversation": {"id": "conv-1", "origin": {"type": "utility"}},
			"pricing": {"billable": true, "category": "utility"}}]
	}`))

	updated, err := st.MessageByProviderID("wamid.OUT1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)
	assert.Equal(t, time.Unix(1700000100, 0).UTC(), *updated.DeliveredAt)
	assert.Equal(t, "conv-1", updated.ConversationID)
	assert.NotNil(t, updated.MetadataMap()["pricing"])

	n.ProcessPayload(context.Background(), pn, messagesPayload(t, `{
		"statuses": [{"id": "wamid.OUT1", "status": "read", "timestamp": "1700000200",
			"recipient_id": "40777777777"}]
	}`))

	updated, err = st.MessageByProviderID("wamid.OUT1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, updated.Status)
	require.NotNil(t, updated.ReadAt)
	// The delivered timestamp and conversation metadata survive the
	// second update.
	require.NotNil(t, updated.DeliveredAt)
	assert.NotNil(t, updated.MetadataMap()["pricing"])
}

func TestStatusUpdateIdempotent(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	msg := &models.Message{
		PhoneNumberID: pn.ID,
		MessageID:     "wamid.OUT5",
		Direction:     models.DirectionOutgoing,
		Status:        models.StatusSent,
		MessageType:   models.TypeText,
	}
	require.NoError(t, st.CreateMessage(msg))

	status := `{
		"statuses": [{"id": "wamid.OUT5", "status": "delivered", "timestamp": "1700000100",
			"recipient_id": "40777777777",
			"conversation": {"id": "conv-5", "origin": {"type": "utility"}},
			"pricing": {"billable": true, "category": "utility"}}]
	}`

	n.ProcessPayload(context.Background(), pn, messagesPayload(t, status))
	first, err := st.MessageByProviderID("wamid.OUT5")
	require.NoError(t, err)

	// Redelivery of the same status payload leaves the row unchanged.
	n.ProcessPayload(context.Background(), pn, messagesPayload(t, status))
	second, err := st.MessageByProviderID("wamid.OUT5")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	require.NotNil(t, second.DeliveredAt)
	assert.Equal(t, *first.DeliveredAt, *second.DeliveredAt)
	assert.Nil(t, second.ReadAt)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.JSONEq(t, first.Metadata, second.Metadata)
}

func TestStatusUpdateUnparseableTimestamp(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	msg := &models.Message{
		PhoneNumberID: pn.ID,
		MessageID:     "wamid.OUT6",
		Direction:     models.DirectionOutgoing,
		Status:        models.StatusSent,
		MessageType:   models.TypeText,
	}
	require.NoError(t, st.CreateMessage(msg))

	n.ProcessPayload(context.Background(), pn, messagesPayload(t, `{
		"statuses": [{"id": "wamid.OUT6", "status": "delivered", "timestamp": "not-a-time",
			"recipient_id": "40777777777"}]
	}`))

	updated, err := st.MessageByProviderID("wamid.OUT6")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)
	assert.Nil(t, updated.DeliveredAt)
}

func TestStatusUpdateCopiedVerbatim(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	msg := &models.Message{
		PhoneNumberID: pn.ID,
		MessageID:     "wamid.OUT2",
		Direction:     models.DirectionOutgoing,
		Status:        models.StatusRead,
		MessageType:   models.TypeText,
	}
	require.NoError(t, st.CreateMessage(msg))

	// A late delivered report after read is applied as reported.
	n.ProcessPayload(context.Background(), pn, messagesPayload(t, `{
		"statuses": [{"id": "wamid.OUT2", "status": "delivered", "timestamp": "1700000300",
			"recipient_id": "40777777777"}]
	}`))

	updated, err := st.MessageByProviderID("wamid.OUT2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, updated.Status)
}

func TestStatusUpdateFailed(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	msg := &models.Message{
		PhoneNumberID: pn.ID,
		MessageID:     "wamid.OUT3",
		Direction:     models.DirectionOutgoing,
		Status:        models.StatusSent,
		MessageType:   models.TypeText,
	}
	require.NoError(t, st.CreateMessage(msg))

	n.ProcessPayload(context.Background(), pn, messagesPayload(t, `{
		"statuses": [{"id": "wamid.OUT3", "status": "failed", "timestamp": "1700000400",
			"recipient_id": "40777777777",
			"errors": [{"code": 131026, "title": "Receiver incapable"}]}]
	}`))

	updated, err := st.MessageByProviderID("wamid.OUT3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)
	assert.Equal(t, "131026", updated.ErrorCode)
	assert.Equal(t, "Receiver incapable", updated.ErrorMessage)
}

func TestStatusUpdateUnknownMessageIsNoop(t *testing.T) {
	st := newTestStore(t)
	n, _ := newOfficialNormalizer(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	n.ProcessPayload(context.Background(), pn, messagesPayload(t, `{
		"statuses": [{"id": "wamid.GHOST", "status": "delivered", "timestamp": "1700000500",
			"recipient_id": "40777777777"}]
	}`))

	messages, err := st.RecentMessages(10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
