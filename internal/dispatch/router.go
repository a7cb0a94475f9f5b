package dispatch

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/waha"
	"whatsapp-hub/internal/whatsapp"

	"go.uber.org/zap"
)

// Router sends outgoing messages through the backend their phone number
// is configured for and records the resulting status transition.
type Router struct {
	store    *store.Store
	official *whatsapp.Client
	cfg      *config.Config
	log      *zap.Logger
}

func NewRouter(st *store.Store, official *whatsapp.Client, cfg *config.Config, log *zap.Logger) *Router {
	return &Router{store: st, official: official, cfg: cfg, log: log}
}

// Dispatch sends one pending outgoing message. It is total: for every
// (api_type, message_type) combination it returns a boolean and never
// panics; failures mark the message failed and are logged, not
// propagated.
func (r *Router) Dispatch(ctx context.Context, msg *models.Message) bool {
	if err := r.send(ctx, msg); err != nil {
		r.log.Error("dispatch failed",
			zap.Uint("message_id", msg.ID),
			zap.String("provider_message_id", msg.MessageID),
			zap.Error(err))
		return false
	}
	return true
}

// Retry re-dispatches an outgoing message: status is reset to pending,
// persisted, and the send re-run. Unlike Dispatch, the underlying send
// error is returned so an interactive caller can report it. Bulk retries
// are N independent calls; one failure never aborts the batch.
func (r *Router) Retry(ctx context.Context, msg *models.Message) (bool, error) {
	if msg.Direction != models.DirectionOutgoing {
		r.log.Warn("cannot retry non-outgoing message", zap.Uint("message_id", msg.ID))
		return false, nil
	}

	msg.Status = models.StatusPending
	if err := r.store.SaveMessage(msg); err != nil {
		return false, err
	}

	if err := r.send(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

// send runs the full dispatch sequence and leaves the message in the
// sent or failed state. Configuration problems fail before any network
// call is attempted.
func (r *Router) send(ctx context.Context, msg *models.Message) error {
	pn := msg.PhoneNumber
	if pn == nil {
		var err error
		pn, err = r.store.PhoneNumberByID(msg.PhoneNumberID)
		if err != nil {
			return r.fail(msg, fmt.Errorf("phone number %d not found: %w", msg.PhoneNumberID, err))
		}
	}

	if !pn.IsActive {
		return r.fail(msg, fmt.Errorf("phone number %s is not active", pn.PhoneNumber))
	}

	backend, err := r.backendFor(pn)
	if err != nil {
		return r.fail(msg, err)
	}

	to := r.resolveRecipient(pn, msg)

	var providerID string
	switch msg.MessageType {
	case models.TypeText:
		providerID, err = backend.SendText(ctx, to, msg.Content)

	case models.TypeTemplate:
		if !backend.SupportsTemplates() {
			return r.fail(msg, errors.New("backend does not support template messages"))
		}
		if msg.TemplateID == nil {
			return r.fail(msg, errors.New("template message without a template"))
		}
		tpl, tplErr := r.store.TemplateByID(*msg.TemplateID)
		if tplErr != nil {
			return r.fail(msg, fmt.Errorf("template %d not found: %w", *msg.TemplateID, tplErr))
		}
		providerID, err = backend.SendTemplate(ctx, to, tpl, msg.TemplateVariablesMap())

	case models.TypeImage, models.TypeAudio, models.TypeVideo, models.TypeDocument:
		if msg.MediaURL == "" {
			return r.fail(msg, errors.New("media message without a media URL"))
		}
		providerID, err = backend.SendMedia(ctx, to, msg.MessageType, msg.MediaURL, msg.Content)

	default:
		return r.fail(msg, errors.New("unsupported message type: "+msg.MessageType))
	}

	if err != nil {
		return r.fail(msg, err)
	}

	if providerID != "" {
		msg.MessageID = providerID
	}
	msg.Status = models.StatusSent
	if saveErr := r.store.SaveMessage(msg); saveErr != nil {
		return saveErr
	}
	return nil
}

// backendFor selects the concrete backend variant, rejecting records with
// incomplete credentials for their api_type.
func (r *Router) backendFor(pn *models.PhoneNumber) (Backend, error) {
	switch pn.APIType {
	case models.APITypeOfficial:
		if !pn.HasOfficialCredentials() {
			return nil, fmt.Errorf("phone number %s is missing official API credentials", pn.PhoneNumber)
		}
		return &officialBackend{
			client: r.official,
			creds: whatsapp.Credentials{
				PhoneNumberID:     pn.PhoneNumberID,
				BusinessAccountID: pn.BusinessAccountID,
				AccessToken:       pn.AccessToken,
			},
			defaultLang: r.cfg.DefaultLanguageCode,
		}, nil
	case models.APITypeWaha:
		if !pn.HasWahaCredentials() {
			return nil, fmt.Errorf("phone number %s is missing WAHA credentials", pn.PhoneNumber)
		}
		client := waha.NewClient(pn.WahaEndpoint, pn.WahaUsername, pn.WahaPassword, pn.WahaSession, r.cfg.HTTPTimeout, r.log)
		return &wahaBackend{client: client}, nil
	}
	return nil, errors.New("unsupported API type: " + pn.APIType)
}

// resolveRecipient prefers the contact's WAHA chat id over the bare
// number when sending through the bridge.
func (r *Router) resolveRecipient(pn *models.PhoneNumber, msg *models.Message) string {
	if pn.IsWahaAPI() && msg.ContactID != nil {
		if contact, err := r.store.ContactByPhone(msg.ToNumber); err == nil && contact.WhatsappChatID != "" {
			return contact.WhatsappChatID
		}
	}
	return msg.ToNumber
}

// fail marks the message failed, persists it, and hands the cause back.
func (r *Router) fail(msg *models.Message, cause error) error {
	msg.Status = models.StatusFailed
	msg.ErrorMessage = cause.Error()
	if err := r.store.SaveMessage(msg); err != nil {
		r.log.Error("failed to persist failed status", zap.Uint("message_id", msg.ID), zap.Error(err))
	}
	return cause
}
