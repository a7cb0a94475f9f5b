package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"whatsapp-hub/internal/config"
	wire "whatsapp-hub/pkg/models"

	"go.uber.org/zap"
)

// Credentials are the per-account secrets for the Cloud API. They are
// passed per call since one client serves every official phone number.
type Credentials struct {
	PhoneNumberID     string
	BusinessAccountID string
	AccessToken       string
}

// Client is a stateless wrapper around the WhatsApp Business Cloud API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.GraphAPIBaseURL,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
	}
}

// --- Message structures ---

type GenericMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *TextObj     `json:"text,omitempty"`
	Image            *MediaObj    `json:"image,omitempty"`
	Video            *MediaObj    `json:"video,omitempty"`
	Audio            *MediaObj    `json:"audio,omitempty"`
	Document         *MediaObj    `json:"document,omitempty"`
	Location         *LocationObj `json:"location,omitempty"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"` // For documents
}

type LocationObj struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type TemplateObj struct {
	Name       string                 `json:"name"`
	Language   LanguageObj            `json:"language"`
	Components []wire.ComponentParams `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

// SendResult carries the provider message id of an accepted send.
type SendResult struct {
	MessageID string
}

// MediaMeta is the first step of the two-step media retrieval: the
// returned URL is signed and valid for roughly five minutes, so it must
// be downloaded immediately.
type MediaMeta struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// --- Helper functions ---

func (c *Client) sendRequest(ctx context.Context, method, url, token string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
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

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return respBody, fmt.Errorf("API error: %s", apiErr.Error.Message)
		}
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

// --- Messaging ---

// SendMessage POSTs a typed message envelope to the account's message
// endpoint and returns the provider message id.
func (c *Client) SendMessage(ctx context.Context, creds Credentials, msg GenericMessage) (*SendResult, error) {
	msg.MessagingProduct = "whatsapp"
	if msg.RecipientType == "" {
		msg.RecipientType = "individual"
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, creds.PhoneNumberID)
	respBody, err := c.sendRequest(ctx, http.MethodPost, url, creds.AccessToken, msg)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	result := &SendResult{}
	if len(resp.Messages) > 0 {
		result.MessageID = resp.Messages[0].ID
	}
	return result, nil
}

// --- Templates ---

// FetchTemplates GETs the business account's template list. Both the
// {data:[...]} and the raw-list response shapes are accepted.
func (c *Client) FetchTemplates(ctx context.Context, creds Credentials) ([]wire.TemplateData, error) {
	url := fmt.Sprintf("%s/%s/message_templates", c.baseURL, creds.BusinessAccountID)
	respBody, err := c.sendRequest(ctx, http.MethodGet, url, creds.AccessToken, nil)
	if err != nil {
		c.log.Error("failed to fetch templates", zap.Error(err))
		return nil, err
	}

	var wrapped struct {
		Data []wire.TemplateData `json:"data"`
	}
	if err := json.Unmarshal(respBody, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var list []wire.TemplateData
	if err := json.Unmarshal(respBody, &list); err == nil {
		return list, nil
	}

	return nil, fmt.Errorf("unexpected template list response: %s", string(respBody))
}

// --- Media ---

// FetchMediaMeta resolves a media id into a short-lived signed URL plus
// mime type and size.
func (c *Client) FetchMediaMeta(ctx context.Context, creds Credentials, mediaID string) (*MediaMeta, error) {
	url := fmt.Sprintf("%s/%s?phone_number_id=%s", c.baseURL, mediaID, creds.PhoneNumberID)
	respBody, err := c.sendRequest(ctx, http.MethodGet, url, creds.AccessToken, nil)
	if err != nil {
		return nil, err
	}

	var meta MediaMeta
	if err := json.Unmarshal(respBody, &meta); err != nil {
		return nil, err
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("no media URL in response for media %s", mediaID)
	}
	return &meta, nil
}

// DownloadMedia fetches the bytes behind a signed media URL. Must be
// called promptly after FetchMediaMeta.
func (c *Client) DownloadMedia(ctx context.Context, creds Credentials, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("media download failed: %s - %s", resp.Status, string(body))
	}
	return io.ReadAll(resp.Body)
}
