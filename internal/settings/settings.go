package settings

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownSection = errors.New("unknown settings section")
	ErrInvalidPatch   = errors.New("invalid settings patch")
)

const (
	SectionGeneral       = "general"
	SectionNotifications = "notifications"
	SectionPayments      = "payments"
	SectionSecurity      = "security"
	SectionContent       = "content"
)

var Sections = []string{SectionGeneral, SectionNotifications, SectionPayments, SectionSecurity, SectionContent}

type General struct {
	SiteName        string `json:"siteName"`
	Tagline         string `json:"tagline"`
	ContactEmail    string `json:"contactEmail"`
	Currency        string `json:"currency"`
	MaintenanceMode bool   `json:"maintenanceMode"`
}

type Notifications struct {
	NewUserEmails     bool   `json:"newUserEmails"`
	NewItemEmails     bool   `json:"newItemEmails"`
	TransactionEmails bool   `json:"transactionEmails"`
	DisputeEmails     bool   `json:"disputeEmails"`
	AdminEmail        string `json:"adminEmail"`
}

type Payments struct {
	PlatformFeePercent float64  `json:"platformFeePercent"`
	EscrowGraceHours   int      `json:"escrowGraceHours"`
	MinItemPrice       int64    `json:"minItemPrice"`
	Providers          []string `json:"providers"`
}

type Security struct {
	RequireEmailVerification bool `json:"requireEmailVerification"`
	MaxLoginAttempts         int  `json:"maxLoginAttempts"`
	SessionTimeoutMinutes    int  `json:"sessionTimeoutMinutes"`
}

type Content struct {
	MaxImagesPerItem   int      `json:"maxImagesPerItem"`
	AllowedCategories  []string `json:"allowedCategories"`
	ProhibitedKeywords []string `json:"prohibitedKeywords"`
}

// Document is the stored part of the settings row.
type Document struct {
	General       General       `json:"general"`
	Notifications Notifications `json:"notifications"`
	Payments      Payments      `json:"payments"`
	Security      Security      `json:"security"`
	Content       Content       `json:"content"`
}

type Settings struct {
	ID uuid.UUID `json:"id"`
	Document
	UpdatedAt time.Time `json:"updatedAt"`
}

// Defaults is the document a fresh installation starts from. Stored values
// are merged over it, so new fields pick up these values until an admin
// changes them.
func Defaults() Document {
	return Document{
		General: General{
			SiteName:     "BabyResell",
			Tagline:      "Pre-loved baby gear, passed on",
			ContactEmail: "support@babyresell.com",
			Currency:     "usd",
		},
		Notifications: Notifications{
			NewUserEmails:     true,
			NewItemEmails:     false,
			TransactionEmails: true,
			DisputeEmails:     true,
		},
		Payments: Payments{
			PlatformFeePercent: 8,
			EscrowGraceHours:   72,
			MinItemPrice:       100,
			Providers:          []string{"stripe", "paypal"},
		},
		Security: Security{
			RequireEmailVerification: true,
			MaxLoginAttempts:         5,
			SessionTimeoutMinutes:    60,
		},
		Content: Content{
			MaxImagesPerItem: 8,
			AllowedCategories: []string{
				"strollers", "car seats", "clothing", "toys", "furniture", "feeding", "bathing", "books",
			},
			ProhibitedKeywords: []string{},
		},
	}
}

// Public is the subset of settings anonymous clients may read.
type Public struct {
	General           General  `json:"general"`
	MaxImagesPerItem  int      `json:"maxImagesPerItem"`
	AllowedCategories []string `json:"allowedCategories"`
	MinItemPrice      int64    `json:"minItemPrice"`
	Providers         []string `json:"providers"`
}
