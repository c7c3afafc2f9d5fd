package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/partnerhub/pkg/optional"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRejected  Status = "rejected"
)

// Partner is an approved applicant. Earnings are never stored here; they are
// derived from leads at read time.
type Partner struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalUserID string       `gorm:"type:text;not null;uniqueIndex" json:"external_user_id"`
	CompanyName    string       `gorm:"type:text;not null" json:"company_name"`
	ContactEmail   string       `gorm:"type:text;not null" json:"contact_email"`
	Phone          string       `gorm:"type:text" json:"phone,omitempty"`
	Website        string       `gorm:"type:text" json:"website,omitempty"`
	Timezone       string       `gorm:"type:text" json:"timezone,omitempty"`
	ReferralCode   string       `gorm:"type:text;not null;uniqueIndex" json:"referral_code"`
	Status         Status       `gorm:"type:text;not null" json:"status"`
	CommissionRate string       `gorm:"type:text;not null" json:"commission_rate"`
	Version        int64        `gorm:"not null;default:1" json:"-"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
	ActivatedAt    *time.Time   `json:"activated_at,omitempty"`
	SuspendedAt    *time.Time   `json:"suspended_at,omitempty"`
}

func (Partner) TableName() string { return "partners" }

// Rate returns the stored commission percentage, zero when unparsable.
func (p Partner) Rate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.CommissionRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// Location resolves the partner timezone, falling back to UTC.
func (p Partner) Location() *time.Location {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p Partner) IsActive() bool { return p.Status == StatusActive }

type ApplicationStatus string

const (
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
)

type Application struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ExternalUserID  string            `gorm:"type:text;not null;index" json:"external_user_id"`
	CompanyName     string            `gorm:"type:text;not null" json:"company_name"`
	ContactEmail    string            `gorm:"type:text;not null" json:"contact_email"`
	Phone           string            `gorm:"type:text" json:"phone,omitempty"`
	Website         string            `gorm:"type:text" json:"website,omitempty"`
	Message         string            `gorm:"type:text" json:"message,omitempty"`
	Status          ApplicationStatus `gorm:"type:text;not null" json:"status"`
	PartnerID       *snowflake.ID     `json:"partner_id,omitempty"`
	ReviewedBy      *string           `gorm:"type:text" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	RejectionReason *string           `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
}

func (Application) TableName() string { return "partner_applications" }

// ProfileUpdate is a partial update: only fields present in the request are
// written.
type ProfileUpdate struct {
	CompanyName  optional.Value[string] `json:"companyName"`
	ContactEmail optional.Value[string] `json:"contactEmail"`
	Phone        optional.Value[string] `json:"phone"`
	Website      optional.Value[string] `json:"website"`
	Timezone     optional.Value[string] `json:"timezone"`
}

func (u ProfileUpdate) fields() map[string]optional.Field {
	return map[string]optional.Field{
		"company_name":  u.CompanyName,
		"contact_email": u.ContactEmail,
		"phone":         u.Phone,
		"website":       u.Website,
		"timezone":      u.Timezone,
	}
}

// Columns returns the column→value map of the fields that were provided.
func (u ProfileUpdate) Columns() map[string]any {
	columns := optional.Columns(u.fields())
	for column, value := range columns {
		if s, ok := value.(string); ok {
			columns[column] = strings.TrimSpace(s)
		}
	}
	return columns
}

// Summary is the derived earnings view shown on the partner profile.
type Summary struct {
	TotalReferrals  int    `json:"totalReferrals"`
	TotalEarnings   int64  `json:"totalEarnings"`
	PaidEarnings    int64  `json:"paidEarnings"`
	PendingEarnings int64  `json:"pendingEarnings"`
	Rank            string `json:"rank"`
}

var statusTransitions = map[Status]map[Status]struct{}{
	StatusPending:   {StatusActive: {}, StatusRejected: {}},
	StatusActive:    {StatusSuspended: {}},
	StatusSuspended: {StatusActive: {}},
}

// CanTransition reports whether a partner may move from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
