package store

import (
	"errors"

	"whatsapp-hub/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store is the persistence layer for phone numbers, contacts, templates
// and messages.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func wrapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Phone numbers ---

func (s *Store) CreatePhoneNumber(pn *models.PhoneNumber) error {
	return s.db.Create(pn).Error
}

func (s *Store) SavePhoneNumber(pn *models.PhoneNumber) error {
	return s.db.Save(pn).Error
}

func (s *Store) PhoneNumberByID(id uint) (*models.PhoneNumber, error) {
	var pn models.PhoneNumber
	if err := s.db.First(&pn, id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &pn, nil
}

// PhoneNumberByWebhookToken routes an official-API webhook call to the
// record owning the token.
func (s *Store) PhoneNumberByWebhookToken(token string) (*models.PhoneNumber, error) {
	var pn models.PhoneNumber
	err := s.db.Where("webhook_token = ? AND api_type = ?", token, models.APITypeOfficial).First(&pn).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &pn, nil
}

func (s *Store) PhoneNumberByWahaSession(session string) (*models.PhoneNumber, error) {
	var pn models.PhoneNumber
	err := s.db.Where("waha_session = ? AND api_type = ?", session, models.APITypeWaha).First(&pn).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &pn, nil
}

func (s *Store) ListPhoneNumbers() ([]models.PhoneNumber, error) {
	var numbers []models.PhoneNumber
	if err := s.db.Order("created_at DESC").Find(&numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

// --- Contacts ---

func (s *Store) ContactByPhone(phone string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.Where("phone_number = ?", models.NormalizePhone(phone)).First(&contact).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &contact, nil
}

// GetOrCreateContact looks a contact up by normalized phone number,
// creating it with the given name (the number itself when empty) if absent.
// The second return reports whether a record was created.
func (s *Store) GetOrCreateContact(phone, name string) (*models.Contact, bool, error) {
	normalized := models.NormalizePhone(phone)
	contact, err := s.ContactByPhone(normalized)
	if err == nil {
		return contact, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if name == "" {
		name = normalized
	}
	contact = &models.Contact{PhoneNumber: normalized, Name: name}
	if err := s.db.Create(contact).Error; err != nil {
		return nil, false, err
	}
	return contact, true, nil
}

func (s *Store) SaveContact(contact *models.Contact) error {
	return s.db.Save(contact).Error
}

func (s *Store) ListContacts() ([]models.Contact, error) {
	var contacts []models.Contact
	if err := s.db.Order("name").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

// --- Messages ---

func (s *Store) CreateMessage(msg *models.Message) error {
	return s.db.Create(msg).Error
}

func (s *Store) SaveMessage(msg *models.Message) error {
	return s.db.Save(msg).Error
}

func (s *Store) MessageByID(id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &msg, nil
}

// MessageByProviderID looks a message up by its provider message id, the
// idempotency key for webhook status updates and inbound dedup.
func (s *Store) MessageByProviderID(messageID string) (*models.Message, error) {
	var msg models.Message
	if err := s.db.Where("message_id = ?", messageID).First(&msg).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &msg, nil
}

func (s *Store) RecentMessages(limit int) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.Order("timestamp DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// --- Templates ---

func (s *Store) TemplateByID(id uint) (*models.Template, error) {
	var tpl models.Template
	if err := s.db.First(&tpl, id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &tpl, nil
}

// UpsertTemplate stores a template keyed on (phone_number, name, language),
// updating the existing record in place when one exists.
func (s *Store) UpsertTemplate(tpl *models.Template) error {
	var existing models.Template
	err := s.db.Where(
		"phone_number_id = ? AND name = ? AND language = ?",
		tpl.PhoneNumberID, tpl.Name, tpl.Language,
	).First(&existing).Error
	if err == nil {
		tpl.ID = existing.ID
		tpl.CreatedAt = existing.CreatedAt
		return s.db.Save(tpl).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Create(tpl).Error
}

func (s *Store) TemplatesForPhoneNumber(phoneNumberID uint) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.Where("phone_number_id = ?", phoneNumberID).Order("name").Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (s *Store) ListTemplates() ([]models.Template, error) {
	var templates []models.Template
	err := s.db.Order("phone_number_id, name").Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}
