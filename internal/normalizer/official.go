package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/whatsapp"
	wire "whatsapp-hub/pkg/models"

	"go.uber.org/zap"
)

// Official normalizes WhatsApp Business Cloud API webhook payloads into
// stored messages and contacts.
type Official struct {
	store  *store.Store
	client *whatsapp.Client
	cfg    *config.Config
	log    *zap.Logger
}

func NewOfficial(st *store.Store, client *whatsapp.Client, cfg *config.Config, log *zap.Logger) *Official {
	return &Official{store: st, client: client, cfg: cfg, log: log}
}

// ProcessPayload walks every entry and change of the payload. Items are
// processed independently: a malformed message or status never blocks its
// siblings.
func (n *Official) ProcessPayload(ctx context.Context, pn *models.PhoneNumber, payload *wire.WebhookPayload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				n.log.Debug("skipping webhook change", zap.String("field", change.Field))
				continue
			}

			names := contactNames(change.Value.Contacts)
			for _, incoming := range change.Value.Messages {
				if err := n.processMessage(ctx, pn, incoming, names); err != nil {
					n.log.Error("failed to process incoming message",
						zap.String("provider_message_id", incoming.ID),
						zap.Error(err))
				}
			}
			for _, status := range change.Value.Statuses {
				if err := n.processStatus(status); err != nil {
					n.log.Error("failed to process status update",
						zap.String("provider_message_id", status.ID),
						zap.Error(err))
				}
			}
		}
	}
}

func contactNames(contacts []wire.ContactData) map[string]string {
	names := map[string]string{}
	for _, c := range contacts {
		if c.Profile.Name != "" {
			names[models.NormalizePhone(c.WaID)] = c.Profile.Name
		}
	}
	return names
}

func (n *Official) processMessage(ctx context.Context, pn *models.PhoneNumber, incoming wire.IncomingMessage, names map[string]string) error {
	if incoming.ID == "" {
		return errors.New("incoming message has no id")
	}

	from := models.NormalizePhone(incoming.From)
	contact, created, err := n.store.GetOrCreateContact(from, names[from])
	if err != nil {
		return err
	}
	if !created && names[from] != "" && (contact.Name == "" || contact.Name == contact.PhoneNumber) {
		contact.Name = names[from]
		if err := n.store.SaveContact(contact); err != nil {
			n.log.Warn("failed to update contact name", zap.String("phone", from), zap.Error(err))
		}
	}

	msg, err := n.store.MessageByProviderID(incoming.ID)
	switch {
	case err == nil:
		// Duplicate delivery: re-apply onto the existing row.
	case errors.Is(err, store.ErrNotFound):
		msg = &models.Message{
			MessageID: incoming.ID,
			Direction: models.DirectionIncoming,
			Status:    models.StatusReceived,
		}
	default:
		return err
	}

	msg.PhoneNumberID = pn.ID
	msg.ContactID = &contact.ID
	msg.FromNumber = from
	msg.ToNumber = pn.PhoneNumber
	if ts, ok := parseUnix(incoming.Timestamp); ok {
		msg.Timestamp = ts
	} else {
		msg.Timestamp = time.Now().UTC()
	}

	if raw, err := json.Marshal(incoming); err == nil {
		msg.RawMessage = string(raw)
	}
	if incoming.Context != nil {
		msg.MergeMetadata(map[string]any{
			"context": map[string]any{"id": incoming.Context.ID, "from": incoming.Context.From},
		})
	}
	if incoming.Referral != nil {
		msg.MergeMetadata(map[string]any{"referral": incoming.Referral})
	}

	n.applyBody(ctx, pn, contact, msg, incoming)

	return n.store.SaveMessage(msg)
}

// applyBody maps the typed message body onto content, media fields, and
// metadata. Unknown types still produce a stored row.
func (n *Official) applyBody(ctx context.Context, pn *models.PhoneNumber, contact *models.Contact, msg *models.Message, incoming wire.IncomingMessage) {
	switch incoming.Type {
	case "text":
		msg.MessageType = models.TypeText
		if incoming.Text != nil {
			msg.Content = incoming.Text.Body
		}

	case "image":
		n.applyMedia(ctx, pn, msg, models.TypeImage, incoming.Image)
	case "video":
		n.applyMedia(ctx, pn, msg, models.TypeVideo, incoming.Video)
	case "audio":
		n.applyMedia(ctx, pn, msg, models.TypeAudio, incoming.Audio)
	case "document":
		n.applyMedia(ctx, pn, msg, models.TypeDocument, incoming.Document)
	case "sticker":
		n.applyMedia(ctx, pn, msg, models.TypeImage, incoming.Sticker)

	case "location":
		msg.MessageType = models.TypeLocation
		if loc := incoming.Location; loc != nil {
			msg.Content = fmt.Sprintf("Location: %f, %f", loc.Latitude, loc.Longitude)
			msg.MergeMetadata(map[string]any{
				"location": map[string]any{
					"latitude":  loc.Latitude,
					"longitude": loc.Longitude,
					"name":      loc.Name,
					"address":   loc.Address,
				},
			})
		}

	case "interactive":
		msg.MessageType = models.TypeInteractive
		if inter := incoming.Interactive; inter != nil {
			switch {
			case inter.ButtonReply != nil:
				msg.Content = inter.ButtonReply.Title
				msg.MergeMetadata(map[string]any{
					"interactive_type": "button_reply",
					"reply_id":         inter.ButtonReply.ID,
				})
			case inter.ListReply != nil:
				msg.Content = inter.ListReply.Title
				msg.MergeMetadata(map[string]any{
					"interactive_type": "list_reply",
					"reply_id":         inter.ListReply.ID,
				})
			}
		}

	case "button":
		msg.MessageType = models.TypeButton
		if incoming.Button != nil {
			msg.Content = incoming.Button.Text
			msg.MergeMetadata(map[string]any{"button_payload": incoming.Button.Payload})
		}

	case "reaction":
		msg.MessageType = models.TypeText
		if incoming.Reaction != nil {
			msg.Content = incoming.Reaction.Emoji
			msg.MergeMetadata(map[string]any{"reaction_to": incoming.Reaction.MessageID})
		}

	case "contacts":
		msg.MessageType = models.TypeText
		if data, err := json.Marshal(incoming.Contacts); err == nil {
			msg.Content = string(data)
		}
		msg.MergeMetadata(map[string]any{"shared_contacts": incoming.Contacts})

	case "order":
		msg.MessageType = models.TypeText
		if order := incoming.Order; order != nil {
			msg.Content = "Order from catalog " + order.CatalogID
			msg.MergeMetadata(map[string]any{
				"catalog_id":    order.CatalogID,
				"order_text":    order.Text,
				"product_items": order.ProductItems,
			})
		}

	case "system":
		msg.MessageType = models.TypeText
		if sys := incoming.System; sys != nil {
			msg.Content = sys.Body
			msg.MergeMetadata(map[string]any{"system_type": sys.Type})
			if sys.Type == "user_changed_number" && sys.NewWaID != "" {
				n.renumberContact(contact, sys.NewWaID)
			}
		}

	default:
		msg.MessageType = models.TypeText
		msg.Content = "Unsupported message type: " + incoming.Type
		meta := map[string]any{"unsupported_type": incoming.Type}
		if len(incoming.Errors) > 0 {
			meta["errors"] = incoming.Errors
		}
		msg.MergeMetadata(meta)
	}
}

// applyMedia records the attachment and eagerly downloads it through the
// two-step Graph API flow (metadata lookup, then authenticated fetch).
// Download failures keep the message with the media id only.
func (n *Official) applyMedia(ctx context.Context, pn *models.PhoneNumber, msg *models.Message, messageType string, media *wire.MediaMessage) {
	msg.MessageType = messageType
	if media == nil {
		return
	}

	msg.MediaID = media.ID
	msg.MediaMimeType = media.MimeType
	msg.Content = media.Caption
	if media.Filename != "" && msg.Content == "" {
		msg.Content = media.Filename
	}

	creds := whatsapp.Credentials{
		PhoneNumberID: pn.PhoneNumberID,
		AccessToken:   pn.AccessToken,
	}
	meta, err := n.client.FetchMediaMeta(ctx, creds, media.ID)
	if err != nil {
		n.log.Warn("media metadata lookup failed", zap.String("media_id", media.ID), zap.Error(err))
		return
	}
	data, err := n.client.DownloadMedia(ctx, creds, meta.URL)
	if err != nil {
		n.log.Warn("media download failed", zap.String("media_id", media.ID), zap.Error(err))
		return
	}

	name := media.Filename
	if name == "" {
		name = media.ID + mimeExtension(media.MimeType)
	}
	path, err := saveMedia(n.cfg.MediaDir, name, data)
	if err != nil {
		n.log.Warn("failed to store media file", zap.String("media_id", media.ID), zap.Error(err))
		return
	}
	msg.MediaFile = path
}

func saveMedia(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// renumberContact follows a user_changed_number system event. If a
// contact already exists under the new number the old record is left
// alone to avoid a unique-constraint clash.
func (n *Official) renumberContact(contact *models.Contact, newWaID string) {
	newPhone := models.NormalizePhone(newWaID)
	if _, err := n.store.ContactByPhone(newPhone); err == nil {
		n.log.Warn("contact renumber target already exists",
			zap.String("old", contact.PhoneNumber),
			zap.String("new", newPhone))
		return
	}
	contact.PhoneNumber = newPhone
	if err := n.store.SaveContact(contact); err != nil {
		n.log.Error("failed to renumber contact", zap.String("new", newPhone), zap.Error(err))
	}
}

// processStatus applies one delivery status update to the message it
// references. Statuses are copied as the provider reports them; an id we
// have never seen is logged and dropped.
func (n *Official) processStatus(status wire.StatusUpdate) error {
	msg, err := n.store.MessageByProviderID(status.ID)
	if errors.Is(err, store.ErrNotFound) {
		n.log.Warn("status update for unknown message", zap.String("provider_message_id", status.ID))
		return nil
	}
	if err != nil {
		return err
	}

	msg.Status = status.Status
	if ts, ok := parseUnix(status.Timestamp); ok {
		switch status.Status {
		case models.StatusDelivered:
			msg.DeliveredAt = &ts
		case models.StatusRead:
			msg.ReadAt = &ts
		}
	} else {
		n.log.Warn("status update with unparseable timestamp",
			zap.String("provider_message_id", status.ID),
			zap.String("timestamp", status.Timestamp))
	}

	meta := map[string]any{}
	if status.Conversation != nil {
		msg.ConversationID = status.Conversation.ID
		meta["conversation"] = status.Conversation
	}
	if status.Pricing != nil {
		meta["pricing"] = status.Pricing
	}
	if len(status.Errors) > 0 {
		meta["errors"] = status.Errors
		msg.ErrorCode = strconv.Itoa(status.Errors[0].Code)
		msg.ErrorMessage = status.Errors[0].Title
	}
	msg.MergeMetadata(meta)

	return n.store.SaveMessage(msg)
}

func parseUnix(ts string) (time.Time, bool) {
	if sec, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), true
	}
	return time.Time{}, false
}

// mimeExtension maps the common WhatsApp media types to a file extension.
func mimeExtension(mimeType string) string {
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/3gpp":
		return ".3gp"
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/aac":
		return ".m4a"
	case "audio/amr":
		return ".amr"
	case "application/pdf":
		return ".pdf"
	default:
		if i := strings.LastIndex(base, "/"); i >= 0 && i < len(base)-1 {
			return "." + base[i+1:]
		}
		return ".bin"
	}
}
