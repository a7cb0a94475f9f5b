package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	APITypeOfficial = "official"
	APITypeWaha     = "waha"
)

// PhoneNumber is one WhatsApp messaging identity. Exactly one of the two
// credential sets is authoritative, selected by APIType.
type PhoneNumber struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	DisplayName string `gorm:"type:varchar(100);not null" json:"display_name"`
	PhoneNumber string `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone_number"`
	APIType     string `gorm:"type:varchar(10);default:official" json:"api_type"`

	// Official WhatsApp Business Cloud API credentials
	PhoneNumberID     string `gorm:"type:varchar(100)" json:"phone_number_id"`
	BusinessAccountID string `gorm:"type:varchar(100)" json:"business_account_id"`
	AccessToken       string `gorm:"type:varchar(255)" json:"-"`
	BusinessID        string `gorm:"type:varchar(100)" json:"business_id"`
	WabaID            string `gorm:"type:varchar(100)" json:"waba_id"`

	// WAHA credentials
	WahaEndpoint string `gorm:"type:varchar(255)" json:"waha_endpoint"`
	WahaUsername string `gorm:"type:varchar(100)" json:"waha_username"`
	WahaPassword string `gorm:"type:varchar(100)" json:"-"`
	WahaSession  string `gorm:"type:varchar(100);default:default" json:"waha_session"`

	IsActive     bool `gorm:"default:true" json:"is_active"`
	IsConfigured bool `gorm:"default:false" json:"is_configured"`

	// VerifyToken is exchanged during the official webhook subscription
	// handshake; WebhookToken routes the single global callback URL to this
	// record. Both are generated once at creation and never rotated.
	VerifyToken  string `gorm:"type:varchar(64);uniqueIndex" json:"verify_token"`
	WebhookToken string `gorm:"type:varchar(64);uniqueIndex" json:"webhook_token"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PhoneNumber) TableName() string {
	return "phone_numbers"
}

func (p *PhoneNumber) BeforeCreate(tx *gorm.DB) error {
	if p.VerifyToken == "" {
		p.VerifyToken = uuid.NewString()
	}
	if p.WebhookToken == "" {
		p.WebhookToken = uuid.NewString()
	}
	if p.WahaSession == "" {
		p.WahaSession = "default"
	}
	return nil
}

func (p *PhoneNumber) IsOfficialAPI() bool {
	return p.APIType == APITypeOfficial
}

func (p *PhoneNumber) IsWahaAPI() bool {
	return p.APIType == APITypeWaha
}

// HasOfficialCredentials reports whether the record carries enough to call
// the Cloud API message endpoint.
func (p *PhoneNumber) HasOfficialCredentials() bool {
	return p.AccessToken != "" && p.PhoneNumberID != ""
}

// HasTemplateCredentials reports whether template management calls are
// possible, which additionally need the business account id.
func (p *PhoneNumber) HasTemplateCredentials() bool {
	return p.AccessToken != "" && p.BusinessAccountID != ""
}

func (p *PhoneNumber) HasWahaCredentials() bool {
	return p.WahaEndpoint != "" && p.WahaUsername != "" && p.WahaPassword != ""
}
