package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/dispatch"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/templates"
	"whatsapp-hub/internal/whatsapp"

	"github.com/gin-gonic/gin"
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

func newAPIRouter(t *testing.T, st *store.Store, graphURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		GraphAPIBaseURL:     graphURL,
		DefaultLanguageCode: "en",
		PublicBaseURL:       "http://hub.example.com",
		HTTPTimeout:         5 * time.Second,
	}
	log := zap.NewNop()
	client := whatsapp.NewClient(cfg, log)
	syncer := templates.NewSyncer(st, client, log)

	messageAPI := NewMessageHandler(st, dispatch.NewRouter(st, client, cfg, log), log)
	templateAPI := NewTemplateHandler(st, syncer, log)
	contactAPI := NewContactHandler(st, log)
	phoneNumberAPI := NewPhoneNumberHandler(st, syncer, cfg, log)

	r := gin.New()
	r.POST("/api/messages", messageAPI.Send)
	r.GET("/api/messages", messageAPI.List)
	r.POST("/api/messages/:id/retry", messageAPI.Retry)
	r.GET("/api/templates", templateAPI.List)
	r.POST("/api/phone-numbers/:id/templates/sync", templateAPI.Sync)
	r.GET("/api/contacts", contactAPI.List)
	r.POST("/api/contacts", contactAPI.Create)
	r.GET("/api/phone-numbers", phoneNumberAPI.List)
	r.POST("/api/phone-numbers", phoneNumberAPI.Create)
	return r
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

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSendTextMessage(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages": [{"id": "wamid.API1"}]}`))
	}))
	defer graph.Close()

	st := newTestStore(t)
	r := newAPIRouter(t, st, graph.URL)
	pn := seedOfficialNumber(t, st)

	w := doJSON(r, http.MethodPost, "/api/messages", `{
		"phone_number_id": `+jsonID(pn.ID)+`,
		"to": "+40 777 777 777",
		"contact_name": "Ana",
		"text": "hello"
	}`)
	require.Equal(t, 201, w.Code, w.Body.String())

	var resp struct {
		Dispatched bool           `json:"dispatched"`
		Message    models.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Dispatched)
	assert.Equal(t, models.StatusSent, resp.Message.Status)
	assert.Equal(t, "wamid.API1", resp.Message.MessageID)
	assert.Equal(t, "40777777777", resp.Message.ToNumber)

	contact, err := st.ContactByPhone("40777777777")
	require.NoError(t, err)
	assert.Equal(t, "Ana", contact.Name)
}

func TestSendMessageUnknownPhoneNumber(t *testing.T) {
	st := newTestStore(t)
	r := newAPIRouter(t, st, "http://graph.invalid")

	w := doJSON(r, http.MethodPost, "/api/messages", `{"phone_number_id": 999, "to": "40777777777", "text": "x"}`)
	assert.Equal(t, 404, w.Code)
}

func TestSendMessageFailureStillPersists(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Recipient blocked"}}`))
	}))
	defer graph.Close()

	st := newTestStore(t)
	r := newAPIRouter(t, st, graph.URL)
	pn := seedOfficialNumber(t, st)

	w := doJSON(r, http.MethodPost, "/api/messages", `{
		"phone_number_id": `+jsonID(pn.ID)+`, "to": "40777777777", "text": "hello"}`)
	require.Equal(t, 201, w.Code)

	var resp struct {
		Dispatched bool           `json:"dispatched"`
		Message    models.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Dispatched)
	assert.Equal(t, models.StatusFailed, resp.Message.Status)
	assert.Contains(t, resp.Message.ErrorMessage, "Recipient blocked")
}

func TestRetryEndpoint(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages": [{"id": "wamid.API2"}]}`))
	}))
	defer graph.Close()

	st := newTestStore(t)
	r := newAPIRouter(t, st, graph.URL)
	pn := seedOfficialNumber(t, st)

	contact, _, err := st.GetOrCreateContact("40777777777", "")
	require.NoError(t, err)
	msg, err := models.NewOutgoingMessage(models.OutgoingParams{
		PhoneNumber: pn, Contact: contact, Text: "again",
	})
	require.NoError(t, err)
	msg.Status = models.StatusFailed
	require.NoError(t, st.CreateMessage(msg))

	w := doJSON(r, http.MethodPost, "/api/messages/"+jsonID(msg.ID)+"/retry", "")
	require.Equal(t, 200, w.Code, w.Body.String())

	updated, err := st.MessageByID(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, updated.Status)
	assert.Equal(t, "wamid.API2", updated.MessageID)
}

func TestRetryRejectsIncoming(t *testing.T) {
	st := newTestStore(t)
	r := newAPIRouter(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	msg := &models.Message{
		PhoneNumberID: pn.ID,
		MessageID:     "wamid.IN",
		Direction:     models.DirectionIncoming,
		Status:        models.StatusReceived,
		MessageType:   models.TypeText,
	}
	require.NoError(t, st.CreateMessage(msg))

	w := doJSON(r, http.MethodPost, "/api/messages/"+jsonID(msg.ID)+"/retry", "")
	assert.Equal(t, 400, w.Code)
}

func TestListMessages(t *testing.T) {
	st := newTestStore(t)
	r := newAPIRouter(t, st, "http://graph.invalid")
	pn := seedOfficialNumber(t, st)

	for _, id := range []string{"wamid.L1", "wamid.L2"} {
		require.NoError(t, st.CreateMessage(&models.Message{
			PhoneNumberID: pn.ID,
			MessageID:     id,
			Direction:     models.DirectionIncoming,
			Status:        models.StatusReceived,
			MessageType:   models.TypeText,
		}))
	}

	w := doJSON(r, http.MethodGet, "/api/messages?limit=1", "")
	require.Equal(t, 200, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}
