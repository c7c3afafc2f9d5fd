package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// Statuses lists the enum in pipeline order.
var Statuses = []Status{StatusPending, StatusContacted, StatusQualified, StatusConverted, StatusLost}

// stage orders the forward pipeline; lost sits outside it.
var stage = map[Status]int{
	StatusPending:   0,
	StatusContacted: 1,
	StatusQualified: 2,
	StatusConverted: 3,
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Statuses {
		if status == known {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

func (s Status) IsTerminal() bool {
	return s == StatusConverted || s == StatusLost
}

// CheckTransition is the single lead transition table. It reports noop for a
// same-status move on an open lead.
func CheckTransition(from, to Status) (noop bool, err error) {
	if from.IsTerminal() {
		return false, ErrTerminalStateViolation
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return false, err
	}
	if from == to {
		return true, nil
	}
	if to == StatusLost {
		return false, nil
	}
	if stage[to] < stage[from] {
		return false, ErrInvalidTransition
	}
	return false, nil
}

type Lead struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	PartnerID        snowflake.ID `gorm:"not null;index:idx_leads_partner_created,priority:1" json:"partnerId"`
	ClientName       string       `gorm:"type:text;not null" json:"clientName"`
	ClientEmail      string       `gorm:"type:text;not null" json:"clientEmail"`
	ClientPhone      string       `gorm:"type:text" json:"clientPhone,omitempty"`
	Service          string       `gorm:"type:text;not null" json:"service"`
	ServiceValue     int64        `gorm:"not null;default:0" json:"serviceValue"`
	Commission       int64        `gorm:"not null;default:0" json:"commission"`
	CommissionRate   string       `gorm:"type:text;not null" json:"commissionRate"`
	Status           Status       `gorm:"type:text;not null" json:"status"`
	CommissionPaid   bool         `gorm:"not null;default:false" json:"commissionPaid"`
	CommissionPaidAt *time.Time   `json:"commissionPaidAt,omitempty"`
	Notes            string       `gorm:"type:text" json:"notes,omitempty"`
	Version          int64        `gorm:"not null;default:1" json:"-"`
	CreatedAt        time.Time    `gorm:"not null;index:idx_leads_partner_created,priority:2" json:"createdAt"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updatedAt"`
	ConvertedAt      *time.Time   `json:"convertedAt,omitempty"`
	LostAt           *time.Time   `json:"lostAt,omitempty"`
}

func (Lead) TableName() string { return "leads" }

func (l Lead) CommissionAmount() int64 { return l.Commission }

func (l Lead) IsCommissionPaid() bool { return l.CommissionPaid }

func (l Lead) IsConverted() bool { return l.Status == StatusConverted }
