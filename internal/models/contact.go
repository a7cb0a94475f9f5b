package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Contact is a counterparty phone number. The number is always stored
// normalized (digits only, no leading '+').
type Contact struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(100)" json:"name"`
	PhoneNumber       string    `gorm:"type:varchar(15);uniqueIndex;not null" json:"phone_number"`
	WhatsappChatID    string    `gorm:"type:varchar(100)" json:"whatsapp_chat_id"`
	ProfilePictureURL string    `gorm:"type:text" json:"profile_picture_url"`
	IsBusiness        bool      `gorm:"default:false" json:"is_business"`
	IsVerified        bool      `gorm:"default:false" json:"is_verified"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) BeforeSave(tx *gorm.DB) error {
	c.PhoneNumber = NormalizePhone(c.PhoneNumber)
	return ValidatePhone(c.PhoneNumber)
}

// NormalizePhone strips every non-digit character, so "+40 777 777 777"
// becomes "40777777777". Idempotent by construction.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone checks a normalized number: digits only, 7-15 characters
// (country code included).
func ValidatePhone(phone string) error {
	if len(phone) < 7 || len(phone) > 15 {
		return fmt.Errorf("phone number must be between 7 and 15 digits, got %q", phone)
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return fmt.Errorf("phone number must contain only digits, got %q", phone)
		}
	}
	return nil
}

// StripChatIDSuffix removes a WAHA chat-id suffix ("40777777777@c.us" ->
// "40777777777") before contact lookup or creation.
func StripChatIDSuffix(chatID string) string {
	if i := strings.Index(chatID, "@"); i >= 0 {
		return chatID[:i]
	}
	return chatID
}
