package templates

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/whatsapp"

	"go.uber.org/zap"
)

// ErrMissingCredentials is returned when the phone number cannot make
// template management calls.
var ErrMissingCredentials = errors.New("phone number lacks template credentials")

// Syncer imports the official API's template list into the store.
type Syncer struct {
	store  *store.Store
	client *whatsapp.Client
	log    *zap.Logger
}

func NewSyncer(st *store.Store, client *whatsapp.Client, log *zap.Logger) *Syncer {
	return &Syncer{store: st, client: client, log: log}
}

// SyncPhoneNumber fetches the provider's template list and upserts each
// item keyed on (phone_number, name, language). Returns the number of
// templates imported.
func (s *Syncer) SyncPhoneNumber(ctx context.Context, pn *models.PhoneNumber) (int, error) {
	if !pn.IsOfficialAPI() || !pn.HasTemplateCredentials() {
		return 0, ErrMissingCredentials
	}

	creds := whatsapp.Credentials{
		PhoneNumberID:     pn.PhoneNumberID,
		BusinessAccountID: pn.BusinessAccountID,
		AccessToken:       pn.AccessToken,
	}

	list, err := s.client.FetchTemplates(ctx, creds)
	if err != nil {
		return 0, fmt.Errorf("fetch templates: %w", err)
	}

	count := 0
	for _, data := range list {
		tpl := &models.Template{PhoneNumberID: pn.ID}
		if err := tpl.ApplyAPIResponse(data); err != nil {
			s.log.Warn("skipping malformed template",
				zap.String("template", data.Name),
				zap.Error(err))
			continue
		}
		if err := s.store.UpsertTemplate(tpl); err != nil {
			s.log.Error("failed to upsert template",
				zap.String("template", tpl.Name),
				zap.String("language", tpl.Language),
				zap.Error(err))
			continue
		}
		count++
	}

	s.log.Info("template sync finished",
		zap.String("phone_number", pn.PhoneNumber),
		zap.Int("imported", count))
	return count, nil
}
