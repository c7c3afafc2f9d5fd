package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Phase string

const (
	PhaseApplied            Phase = "applied"
	PhaseAgreementsPending  Phase = "agreements_pending"
	PhaseAgreementsComplete Phase = "agreements_complete"
	PhasePaymentPending     Phase = "payment_pending"
	PhaseActive             Phase = "active"
)

var phaseTransitions = map[Phase]map[Phase]struct{}{
	PhaseApplied:            {PhaseAgreementsPending: {}, PhaseAgreementsComplete: {}},
	PhaseAgreementsPending:  {PhaseAgreementsComplete: {}},
	PhaseAgreementsComplete: {PhasePaymentPending: {}},
	PhasePaymentPending:     {PhaseActive: {}},
}

// CanAdvance is the onboarding transition table. Each phase only moves to
// the next one; applied may jump to agreements_complete when nothing needs
// signing.
func CanAdvance(from, to Phase, requiredAgreements int) bool {
	next, ok := phaseTransitions[from]
	if !ok {
		return false
	}
	if _, ok := next[to]; !ok {
		return false
	}
	if from == PhaseApplied {
		return (to == PhaseAgreementsComplete) == (requiredAgreements == 0)
	}
	return true
}

type Agreement struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Type       string       `gorm:"type:text;not null;uniqueIndex:ux_agreements_type_version" json:"type"`
	Version    string       `gorm:"type:text;not null;uniqueIndex:ux_agreements_type_version" json:"version"`
	Title      string       `gorm:"type:text;not null" json:"title"`
	Content    string       `gorm:"type:text;not null" json:"content"`
	IsRequired bool         `gorm:"not null;default:true" json:"isRequired"`
	CreatedAt  time.Time    `gorm:"not null" json:"createdAt"`
}

func (Agreement) TableName() string { return "agreements" }

type Signature struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PartnerID     snowflake.ID `gorm:"not null;uniqueIndex:ux_agreement_signatures_partner_agreement" json:"partnerId"`
	AgreementID   snowflake.ID `gorm:"not null;uniqueIndex:ux_agreement_signatures_partner_agreement" json:"agreementId"`
	SignatureText string       `gorm:"type:text;not null" json:"signatureText"`
	SignedAt      time.Time    `gorm:"not null" json:"signedAt"`
	IPAddress     *string      `gorm:"type:text" json:"ipAddress,omitempty"`
	UserAgent     *string      `gorm:"type:text" json:"userAgent,omitempty"`
}

func (Signature) TableName() string { return "agreement_signatures" }

// Record is the persisted onboarding phase of one partner.
type Record struct {
	PartnerID          snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"partnerId"`
	Phase              Phase        `gorm:"type:text;not null" json:"phase"`
	PaymentRequestedAt *time.Time   `json:"paymentRequestedAt,omitempty"`
	PaymentConfirmedAt *time.Time   `json:"paymentConfirmedAt,omitempty"`
	ActivatedAt        *time.Time   `json:"activatedAt,omitempty"`
	Version            int64        `gorm:"not null;default:1" json:"-"`
	CreatedAt          time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Record) TableName() string { return "partner_onboarding" }

// Progress is computed over the current required agreements.
type Progress struct {
	Total     int  `json:"total"`
	Signed    int  `json:"signed"`
	Remaining int  `json:"remaining"`
	AllSigned bool `json:"allSigned"`
}

// ComputeProgress counts the required agreements covered by signatures.
func ComputeProgress(required []Agreement, signatures []Signature) Progress {
	signed := make(map[snowflake.ID]struct{}, len(signatures))
	for _, sig := range signatures {
		signed[sig.AgreementID] = struct{}{}
	}

	progress := Progress{Total: len(required)}
	for _, agreement := range required {
		if _, ok := signed[agreement.ID]; ok {
			progress.Signed++
		}
	}
	progress.Remaining = progress.Total - progress.Signed
	progress.AllSigned = progress.Remaining == 0
	return progress
}

// Current keeps the newest version of each agreement type.
func Current(agreements []Agreement) []Agreement {
	latest := make(map[string]int, len(agreements))
	out := make([]Agreement, 0, len(agreements))
	for _, agreement := range agreements {
		idx, ok := latest[agreement.Type]
		if !ok {
			latest[agreement.Type] = len(out)
			out = append(out, agreement)
			continue
		}
		existing := out[idx]
		if agreement.CreatedAt.After(existing.CreatedAt) ||
			(agreement.CreatedAt.Equal(existing.CreatedAt) && agreement.ID > existing.ID) {
			out[idx] = agreement
		}
	}
	return out
}

// Required filters the agreements a partner must sign.
func Required(agreements []Agreement) []Agreement {
	out := make([]Agreement, 0, len(agreements))
	for _, agreement := range Current(agreements) {
		if agreement.IsRequired {
			out = append(out, agreement)
		}
	}
	return out
}

type AgreementStatus struct {
	Agreement
	Signed   bool       `json:"signed"`
	SignedAt *time.Time `json:"signedAt,omitempty"`
}

type Status struct {
	PartnerID          snowflake.ID      `json:"partnerId"`
	Phase              Phase             `json:"phase"`
	Progress           Progress          `json:"progress"`
	Agreements         []AgreementStatus `json:"agreements"`
	PaymentConfirmedAt *time.Time        `json:"paymentConfirmedAt,omitempty"`
	ActivatedAt        *time.Time        `json:"activatedAt,omitempty"`
}
