package dispatch

import (
	"context"
	"errors"
	"strings"

	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/waha"
	"whatsapp-hub/internal/whatsapp"
)

// Backend is the capability set the router needs from a messaging
// provider. Two concrete variants exist, one per api_type; the router
// never branches on the api_type string itself.
type Backend interface {
	SupportsTemplates() bool
	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to, mediaType, mediaURL, caption string) (string, error)
	SendTemplate(ctx context.Context, to string, tpl *models.Template, variables map[string]string) (string, error)
}

// --- Official Cloud API variant ---

type officialBackend struct {
	client      *whatsapp.Client
	creds       whatsapp.Credentials
	defaultLang string
}

func (b *officialBackend) SupportsTemplates() bool {
	return true
}

func (b *officialBackend) SendText(ctx context.Context, to, body string) (string, error) {
	result, err := b.client.SendMessage(ctx, b.creds, whatsapp.GenericMessage{
		To:   to,
		Type: models.TypeText,
		Text: &whatsapp.TextObj{Body: body},
	})
	if err != nil {
		return "", err
	}
	return result.MessageID, nil
}

func (b *officialBackend) SendMedia(ctx context.Context, to, mediaType, mediaURL, caption string) (string, error) {
	media := &whatsapp.MediaObj{Link: mediaURL}
	msg := whatsapp.GenericMessage{To: to, Type: mediaType}

	switch mediaType {
	case models.TypeImage:
		media.Caption = caption
		msg.Image = media
	case models.TypeVideo:
		media.Caption = caption
		msg.Video = media
	case models.TypeAudio:
		msg.Audio = media
	case models.TypeDocument:
		media.Caption = caption
		if i := strings.LastIndex(mediaURL, "/"); i >= 0 && i < len(mediaURL)-1 {
			media.Filename = mediaURL[i+1:]
		}
		msg.Document = media
	default:
		return "", errors.New("unsupported media type: " + mediaType)
	}

	result, err := b.client.SendMessage(ctx, b.creds, msg)
	if err != nil {
		return "", err
	}
	return result.MessageID, nil
}

func (b *officialBackend) SendTemplate(ctx context.Context, to string, tpl *models.Template, variables map[string]string) (string, error) {
	components, err := tpl.BuildComponents(variables)
	if err != nil {
		return "", err
	}
	lang := tpl.Language
	if lang == "" {
		lang = b.defaultLang
	}
	result, err := b.client.SendMessage(ctx, b.creds, whatsapp.GenericMessage{
		To:   to,
		Type: models.TypeTemplate,
		Template: &whatsapp.TemplateObj{
			Name:       tpl.Name,
			Language:   whatsapp.LanguageObj{Code: lang},
			Components: components,
		},
	})
	if err != nil {
		return "", err
	}
	return result.MessageID, nil
}

// --- WAHA variant ---

type wahaBackend struct {
	client *waha.Client
}

func (b *wahaBackend) SupportsTemplates() bool {
	return false
}

func (b *wahaBackend) SendText(ctx context.Context, to, body string) (string, error) {
	result, err := b.client.SendText(ctx, to, body)
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

func (b *wahaBackend) SendMedia(ctx context.Context, to, mediaType, mediaURL, caption string) (string, error) {
	var result *waha.SendResponse
	var err error
	switch mediaType {
	case models.TypeImage:
		result, err = b.client.SendImage(ctx, to, mediaURL, caption)
	case models.TypeVideo:
		result, err = b.client.SendVideo(ctx, to, mediaURL, caption)
	case models.TypeAudio:
		result, err = b.client.SendAudio(ctx, to, mediaURL)
	case models.TypeDocument:
		filename := ""
		if i := strings.LastIndex(mediaURL, "/"); i >= 0 && i < len(mediaURL)-1 {
			filename = mediaURL[i+1:]
		}
		result, err = b.client.SendDocument(ctx, to, mediaURL, filename)
	default:
		return "", errors.New("unsupported media type for WAHA: " + mediaType)
	}
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

func (b *wahaBackend) SendTemplate(ctx context.Context, to string, tpl *models.Template, variables map[string]string) (string, error) {
	return "", errors.New("WAHA does not support template messages")
}
