package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
)

type SignRequest struct {
	PartnerID     snowflake.ID
	AgreementID   snowflake.ID
	SignatureText string `json:"signatureText"`
}

type PublishAgreementRequest struct {
	Type       string `json:"type"`
	Version    string `json:"version"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	IsRequired *bool  `json:"isRequired"`
}

type Service interface {
	Start(ctx context.Context, partnerID snowflake.ID) (*Record, error)
	Sign(ctx context.Context, req SignRequest) (*Signature, error)
	Progress(ctx context.Context, partnerID snowflake.ID) (Progress, error)
	RequestPaymentSetup(ctx context.Context, partnerID snowflake.ID) (*Status, error)
	Activate(ctx context.Context, partnerID snowflake.ID, paymentConfirmed bool) (*Status, error)
	Status(ctx context.Context, partnerID snowflake.ID) (*Status, error)
	Certificate(ctx context.Context, partnerID, agreementID snowflake.ID) (io.Reader, error)
	PublishAgreement(ctx context.Context, req PublishAgreementRequest) (*Agreement, error)
}

var (
	ErrOnboardingStepSkipped  = errors.New("onboarding_step_skipped")
	ErrAcknowledgmentRequired = errors.New("acknowledgment_required")
	ErrPaymentNotConfirmed    = errors.New("payment_not_confirmed")
	ErrAgreementNotFound      = errors.New("agreement_not_found")
	ErrAgreementNotSigned     = errors.New("agreement_not_signed")
	ErrAgreementExists        = errors.New("agreement_exists")
	ErrInvalidAgreement       = errors.New("invalid_agreement")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrInvalidID              = errors.New("invalid_id")
)
