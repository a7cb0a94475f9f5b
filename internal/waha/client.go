package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client wraps a single WAHA (WhatsApp HTTP API) instance. All calls use
// Basic auth; transport failures and non-2xx responses surface as plain
// errors, never panics.
type Client struct {
	endpoint string
	username string
	password string
	session  string
	http     *http.Client
	log      *zap.Logger
}

func NewClient(endpoint, username, password, session string, timeout time.Duration, log *zap.Logger) *Client {
	if session == "" {
		session = "default"
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		username: username,
		password: password,
		session:  session,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (c *Client) Session() string {
	return c.session
}

// NormalizeChatID turns a bare phone number into WAHA's chat-id format by
// stripping '+' and spaces and appending @c.us. Already-qualified chat ids
// pass through unchanged.
func NormalizeChatID(chatID string) string {
	if chatID == "" || strings.Contains(chatID, "@") {
		return chatID
	}
	cleaned := strings.NewReplacer("+", "", " ", "").Replace(chatID)
	return cleaned + "@c.us"
}

// SendResponse carries the provider id of an accepted send.
type SendResponse struct {
	ID string
}

type rawSendResponse struct {
	ID json.RawMessage `json:"id"`
}

// extractID tolerates both id shapes WAHA engines produce: a plain string
// and an object carrying _serialized.
func extractID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Serialized string `json:"_serialized"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Serialized
	}
	return ""
}

func (c *Client) makeRequest(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	url := fmt.Sprintf("%s/api/%s", c.endpoint, path)
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return respBody, fmt.Errorf("WAHA API error: HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *Client) send(ctx context.Context, path string, data map[string]interface{}) (*SendResponse, error) {
	data["session"] = c.session
	respBody, err := c.makeRequest(ctx, http.MethodPost, path, data)
	if err != nil {
		return nil, err
	}
	var raw rawSendResponse
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return &SendResponse{}, nil
	}
	return &SendResponse{ID: extractID(raw.ID)}, nil
}

func (c *Client) SendText(ctx context.Context, chatID, text string) (*SendResponse, error) {
	return c.send(ctx, "sendText", map[string]interface{}{
		"chatId":      NormalizeChatID(chatID),
		"text":        text,
		"linkPreview": true,
	})
}

func (c *Client) SendImage(ctx context.Context, chatID, imageURL, caption string) (*SendResponse, error) {
	return c.send(ctx, "sendImage", map[string]interface{}{
		"chatId":  NormalizeChatID(chatID),
		"image":   imageURL,
		"caption": caption,
	})
}

func (c *Client) SendDocument(ctx context.Context, chatID, documentURL, filename string) (*SendResponse, error) {
	if filename == "" {
		filename = "document"
	}
	return c.send(ctx, "sendDocument", map[string]interface{}{
		"chatId":   NormalizeChatID(chatID),
		"document": documentURL,
		"filename": filename,
	})
}

func (c *Client) SendVideo(ctx context.Context, chatID, videoURL, caption string) (*SendResponse, error) {
	return c.send(ctx, "sendVideo", map[string]interface{}{
		"chatId":  NormalizeChatID(chatID),
		"video":   videoURL,
		"caption": caption,
	})
}

func (c *Client) SendAudio(ctx context.Context, chatID, audioURL string) (*SendResponse, error) {
	return c.send(ctx, "sendAudio", map[string]interface{}{
		"chatId": NormalizeChatID(chatID),
		"audio":  audioURL,
	})
}

// ConfigureWebhooks PUTs a session-config update subscribing the given
// webhook URL to the named events.
func (c *Client) ConfigureWebhooks(ctx context.Context, webhookURL string, events []string) error {
	if len(events) == 0 {
		events = []string{"message"}
	}
	data := map[string]interface{}{
		"config": map[string]interface{}{
			"webhooks": []map[string]interface{}{
				{"url": webhookURL, "events": events},
			},
		},
	}
	_, err := c.makeRequest(ctx, http.MethodPut, "sessions/"+c.session, data)
	return err
}

// DownloadFile fetches a media file served by this WAHA instance using the
// client's credentials. The URL must point at the instance's /api/files/
// endpoint.
func (c *Client) DownloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	idx := strings.Index(fileURL, "/api/files/")
	if idx < 0 {
		return nil, fmt.Errorf("not a WAHA files URL: %s", fileURL)
	}
	url := c.endpoint + fileURL[idx:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download media file: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// SessionStatus returns the raw session status document.
func (c *Client) SessionStatus(ctx context.Context) (map[string]interface{}, error) {
	respBody, err := c.makeRequest(ctx, http.MethodGet, fmt.Sprintf("sessions/%s/status", c.session), nil)
	if err != nil {
		return nil, err
	}
	var status map[string]interface{}
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) StartSession(ctx context.Context) error {
	_, err := c.makeRequest(ctx, http.MethodPost, fmt.Sprintf("sessions/%s/start", c.session), nil)
	return err
}

func (c *Client) StopSession(ctx context.Context) error {
	_, err := c.makeRequest(ctx, http.MethodPost, fmt.Sprintf("sessions/%s/stop", c.session), nil)
	return err
}
