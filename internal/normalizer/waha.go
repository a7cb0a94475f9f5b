package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/waha"
	wire "whatsapp-hub/pkg/models"

	"go.uber.org/zap"
)

// ErrUnsupportedEvent marks WAHA event types other than "message".
var ErrUnsupportedEvent = errors.New("unsupported waha event")

// Waha normalizes WAHA bridge webhook events into stored messages.
type Waha struct {
	store *store.Store
	cfg   *config.Config
	log   *zap.Logger
}

func NewWaha(st *store.Store, cfg *config.Config, log *zap.Logger) *Waha {
	return &Waha{store: st, cfg: cfg, log: log}
}

// ProcessEvent handles one WAHA event for the given session's phone
// number and returns the stored message. fromMe events become outgoing
// rows with from/to swapped relative to the chat ids in the payload.
func (n *Waha) ProcessEvent(ctx context.Context, pn *models.PhoneNumber, event *wire.WahaEvent) (*models.Message, error) {
	if event.Event != "message" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Event)
	}

	data := event.Payload
	if data.ID == "" {
		return nil, errors.New("waha message has no id")
	}

	from := models.StripChatIDSuffix(data.From)
	to := models.StripChatIDSuffix(data.To)
	if to == "" && event.Me != nil {
		to = models.StripChatIDSuffix(event.Me.ID)
	}

	msg, err := n.store.MessageByProviderID(data.ID)
	switch {
	case err == nil:
		// Duplicate delivery: re-apply onto the existing row.
	case errors.Is(err, store.ErrNotFound):
		msg = &models.Message{MessageID: data.ID}
	default:
		return nil, err
	}

	msg.PhoneNumberID = pn.ID
	if data.Timestamp > 0 {
		msg.Timestamp = time.Unix(data.Timestamp, 0).UTC()
	} else {
		msg.Timestamp = time.Now().UTC()
	}
	if raw, err := json.Marshal(event); err == nil {
		msg.RawMessage = string(raw)
	}

	if data.FromMe {
		msg.Direction = models.DirectionOutgoing
		msg.Status = models.StatusSent
		// The bridge reports its own number as "from" on messages it
		// sent itself, so the stored pair is the raw pair swapped.
		msg.FromNumber = to
		msg.ToNumber = from

		// Outgoing echoes never create a contact, but an existing one
		// is still attached.
		if contact, err := n.store.ContactByPhone(msg.FromNumber); err == nil {
			msg.ContactID = &contact.ID
		}
	} else {
		msg.Direction = models.DirectionIncoming
		msg.Status = models.StatusReceived
		msg.FromNumber = from
		msg.ToNumber = pn.PhoneNumber

		name := ""
		if data.Author != "" {
			name = data.Author
		}
		contact, _, err := n.store.GetOrCreateContact(from, name)
		if err != nil {
			return nil, err
		}
		if contact.WhatsappChatID != data.From && strings.HasSuffix(data.From, "@c.us") {
			contact.WhatsappChatID = data.From
			if err := n.store.SaveContact(contact); err != nil {
				n.log.Warn("failed to update contact chat id", zap.String("phone", from), zap.Error(err))
			}
		}
		msg.ContactID = &contact.ID
	}

	n.applyBody(ctx, pn, msg, data)

	if data.ReplyTo != nil {
		msg.MergeMetadata(map[string]any{
			"reply_to": map[string]any{
				"id":          data.ReplyTo.ID,
				"participant": data.ReplyTo.Participant,
				"body":        data.ReplyTo.Body,
			},
		})
	}

	if err := n.store.SaveMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// applyBody maps the payload body onto content and media fields. Media is
// downloaded eagerly because WAHA file URLs require the bridge's auth and
// may not outlive the session.
func (n *Waha) applyBody(ctx context.Context, pn *models.PhoneNumber, msg *models.Message, data wire.WahaMessageData) {
	msg.MessageType = models.TypeText
	msg.Content = data.Body

	switch {
	case data.Location != nil:
		msg.MessageType = models.TypeLocation
		loc := data.Location
		if msg.Content == "" {
			msg.Content = fmt.Sprintf("Location: %s, %s", loc.Latitude, loc.Longitude)
		}
		msg.MergeMetadata(map[string]any{
			"location": map[string]any{
				"latitude":    loc.Latitude,
				"longitude":   loc.Longitude,
				"description": loc.Description,
			},
		})

	case len(data.VCards) > 0:
		if msg.Content == "" {
			msg.Content = strings.Join(data.VCards, "\n")
		}
		msg.MergeMetadata(map[string]any{"vcards": data.VCards})

	case data.HasMedia && data.Media != nil:
		media := data.Media
		msg.MessageType = mediaMessageType(media.MimeType, media.Filename)
		msg.MediaURL = media.URL
		msg.MediaMimeType = media.MimeType
		if media.Error != "" {
			msg.MergeMetadata(map[string]any{"media_error": media.Error})
			return
		}
		n.downloadMedia(ctx, pn, msg, media)
	}
}

func (n *Waha) downloadMedia(ctx context.Context, pn *models.PhoneNumber, msg *models.Message, media *wire.WahaMedia) {
	if media.URL == "" {
		return
	}
	client := waha.NewClient(pn.WahaEndpoint, pn.WahaUsername, pn.WahaPassword, pn.WahaSession, n.cfg.HTTPTimeout, n.log)
	data, err := client.DownloadFile(ctx, media.URL)
	if err != nil {
		n.log.Warn("waha media download failed", zap.String("url", media.URL), zap.Error(err))
		return
	}

	name := media.Filename
	if name == "" {
		name = filepath.Base(media.URL)
		if name == "." || name == "/" || name == "" {
			name = msg.MessageID + mimeExtension(media.MimeType)
		}
	}
	path, err := saveMedia(n.cfg.MediaDir, name, data)
	if err != nil {
		n.log.Warn("failed to store waha media file", zap.String("url", media.URL), zap.Error(err))
		return
	}
	msg.MediaFile = path
}

// mediaMessageType derives the message type from the MIME major type,
// falling back to document for application payloads and anything carrying
// a filename.
func mediaMessageType(mimeType, filename string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.TypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.TypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return models.TypeAudio
	case strings.HasPrefix(mimeType, "application/"), filename != "":
		return models.TypeDocument
	default:
		return models.TypeDocument
	}
}
