package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/observability/metrics"
	"github.com/smallbiznis/partnerhub/internal/onboarding/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/smallbiznis/partnerhub/internal/providers/pdf"
	pkgdb "github.com/smallbiznis/partnerhub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Partners partnerdomain.Repository
	Outbox   *events.Outbox
	Audit    auditdomain.Service
	PDF      pdf.Provider
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	partners partnerdomain.Repository
	outbox   *events.Outbox
	audit    auditdomain.Service
	pdf      pdf.Provider
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("onboarding.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		partners: p.Partners,
		outbox:   p.Outbox,
		audit:    p.Audit,
		pdf:      p.PDF,
		metrics:  p.Metrics,
	}
}

// state is the onboarding snapshot read inside one transaction.
type state struct {
	record     *domain.Record
	agreements []domain.Agreement
	required   []domain.Agreement
	signatures []domain.Signature
	progress   domain.Progress
}

func (s *Service) Start(ctx context.Context, partnerID snowflake.ID) (*domain.Record, error) {
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}

	var record *domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := s.load(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		record = st.record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Sign(ctx context.Context, req domain.SignRequest) (*domain.Signature, error) {
	text := strings.TrimSpace(req.SignatureText)
	if text == "" {
		return nil, domain.ErrAcknowledgmentRequired
	}
	if req.PartnerID == 0 || req.AgreementID == 0 {
		return nil, domain.ErrInvalidID
	}

	var signature *domain.Signature
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agreement, err := s.repo.FindAgreement(ctx, tx, req.AgreementID)
		if err != nil {
			return err
		}
		if agreement == nil {
			return domain.ErrAgreementNotFound
		}

		existing, err := s.repo.FindSignature(ctx, tx, req.PartnerID, req.AgreementID)
		if err != nil {
			return err
		}
		if existing != nil {
			signature = existing
			return nil
		}

		st, err := s.load(ctx, tx, req.PartnerID)
		if err != nil {
			return err
		}

		ip, userAgent := callercontext.ClientFromContext(ctx)
		created := &domain.Signature{
			ID:            s.genID.Generate(),
			PartnerID:     req.PartnerID,
			AgreementID:   agreement.ID,
			SignatureText: text,
			SignedAt:      s.clock.Now(),
			IPAddress:     optionalString(ip),
			UserAgent:     optionalString(userAgent),
		}
		if err := s.repo.InsertSignature(ctx, tx, created); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrConcurrentModification
			}
			return err
		}

		st.signatures = append(st.signatures, *created)
		st.progress = domain.ComputeProgress(st.required, st.signatures)
		if st.record.Phase == domain.PhaseAgreementsPending && st.progress.AllSigned {
			if err := s.advance(ctx, tx, st, domain.PhaseAgreementsComplete, nil); err != nil {
				return err
			}
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: req.PartnerID,
			EventType: events.AgreementSigned,
			Payload: map[string]any{
				"agreement_id":    agreement.ID.String(),
				"agreement_title": agreement.Title,
				"remaining":       st.progress.Remaining,
			},
			DedupeKey: "agreement_signed:" + req.PartnerID.String() + ":" + agreement.ID.String(),
		}); err != nil {
			return err
		}

		signature = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signature, nil
}

func (s *Service) Progress(ctx context.Context, partnerID snowflake.ID) (domain.Progress, error) {
	agreements, err := s.repo.ListAgreements(ctx, s.db)
	if err != nil {
		return domain.Progress{}, err
	}
	signatures, err := s.repo.ListSignatures(ctx, s.db, partnerID)
	if err != nil {
		return domain.Progress{}, err
	}
	return domain.ComputeProgress(domain.Required(agreements), signatures), nil
}

func (s *Service) RequestPaymentSetup(ctx context.Context, partnerID snowflake.ID) (*domain.Status, error) {
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}

	var status *domain.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := s.load(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if !st.progress.AllSigned || st.record.Phase != domain.PhaseAgreementsComplete {
			return domain.ErrOnboardingStepSkipped
		}

		now := s.clock.Now()
		if err := s.advance(ctx, tx, st, domain.PhasePaymentPending, func(r *domain.Record) {
			r.PaymentRequestedAt = &now
		}); err != nil {
			return err
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partnerID,
			EventType: events.PaymentSetupStarted,
			DedupeKey: "payment_setup_started:" + partnerID.String(),
		}); err != nil {
			return err
		}
		status = buildStatus(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *Service) Activate(ctx context.Context, partnerID snowflake.ID, paymentConfirmed bool) (*domain.Status, error) {
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}

	var status *domain.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := s.load(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if st.record.Phase != domain.PhasePaymentPending {
			return domain.ErrOnboardingStepSkipped
		}
		if !st.progress.AllSigned {
			return domain.ErrOnboardingStepSkipped
		}
		if !paymentConfirmed {
			return domain.ErrPaymentNotConfirmed
		}

		partner, err := s.partners.FindByIDForUpdate(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if partner == nil {
			return partnerdomain.ErrPartnerNotFound
		}
		if partner.Status != partnerdomain.StatusPending {
			return domain.ErrOnboardingStepSkipped
		}

		now := s.clock.Now()
		if err := s.advance(ctx, tx, st, domain.PhaseActive, func(r *domain.Record) {
			r.PaymentConfirmedAt = &now
			r.ActivatedAt = &now
		}); err != nil {
			return err
		}

		affected, err := s.partners.UpdateColumns(ctx, tx, partner.ID, partner.Version, map[string]any{
			"status":       partnerdomain.StatusActive,
			"activated_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrConcurrentModification
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partnerID,
			EventType: events.AccountApproved,
			Payload:   map[string]any{"company_name": partner.CompanyName},
			DedupeKey: "account_approved:" + partnerID.String(),
		}); err != nil {
			return err
		}
		status = buildStatus(st)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("partner activated", zap.String("partner_id", partnerID.String()))
	return status, nil
}

func (s *Service) Status(ctx context.Context, partnerID snowflake.ID) (*domain.Status, error) {
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}

	var status *domain.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := s.load(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		status = buildStatus(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *Service) Certificate(ctx context.Context, partnerID, agreementID snowflake.ID) (io.Reader, error) {
	if partnerID == 0 || agreementID == 0 {
		return nil, domain.ErrInvalidID
	}

	agreement, err := s.repo.FindAgreement(ctx, s.db, agreementID)
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		return nil, domain.ErrAgreementNotFound
	}
	signature, err := s.repo.FindSignature(ctx, s.db, partnerID, agreementID)
	if err != nil {
		return nil, err
	}
	if signature == nil {
		return nil, domain.ErrAgreementNotSigned
	}
	partner, err := s.partners.FindByID(ctx, s.db, partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, partnerdomain.ErrPartnerNotFound
	}

	data := pdf.CertificateData{
		CompanyName:      partner.CompanyName,
		ReferralCode:     partner.ReferralCode,
		AgreementTitle:   agreement.Title,
		AgreementType:    agreement.Type,
		AgreementVersion: agreement.Version,
		Content:          agreement.Content,
		SignatureText:    signature.SignatureText,
		SignedAt:         signature.SignedAt.In(partner.Location()).Format(time.RFC1123),
	}
	if signature.IPAddress != nil {
		data.IPAddress = *signature.IPAddress
	}
	return s.pdf.GenerateCertificate(ctx, data)
}

func (s *Service) PublishAgreement(ctx context.Context, req domain.PublishAgreementRequest) (*domain.Agreement, error) {
	agreement := &domain.Agreement{
		Type:       strings.ToLower(strings.TrimSpace(req.Type)),
		Version:    strings.TrimSpace(req.Version),
		Title:      strings.TrimSpace(req.Title),
		Content:    strings.TrimSpace(req.Content),
		IsRequired: true,
	}
	if req.IsRequired != nil {
		agreement.IsRequired = *req.IsRequired
	}
	if agreement.Type == "" || agreement.Version == "" || agreement.Title == "" || agreement.Content == "" {
		return nil, domain.ErrInvalidAgreement
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.AgreementExists(ctx, tx, agreement.Type, agreement.Version)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAgreementExists
		}

		agreement.ID = s.genID.Generate()
		agreement.CreatedAt = s.clock.Now()
		if err := s.repo.InsertAgreement(ctx, tx, agreement); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAgreementExists
			}
			return err
		}

		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionAgreementPublish,
			TargetType: "agreement",
			TargetID:   agreement.ID.String(),
			Metadata: map[string]any{
				"type":        agreement.Type,
				"version":     agreement.Version,
				"is_required": agreement.IsRequired,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// load reads the onboarding state, creating the record on first access.
func (s *Service) load(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) (*state, error) {
	agreements, err := s.repo.ListAgreements(ctx, tx)
	if err != nil {
		return nil, err
	}
	signatures, err := s.repo.ListSignatures(ctx, tx, partnerID)
	if err != nil {
		return nil, err
	}
	required := domain.Required(agreements)

	st := &state{
		agreements: domain.Current(agreements),
		required:   required,
		signatures: signatures,
		progress:   domain.ComputeProgress(required, signatures),
	}

	record, err := s.repo.FindRecordForUpdate(ctx, tx, partnerID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		st.record = record
		return st, nil
	}

	partner, err := s.partners.FindByID(ctx, tx, partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, partnerdomain.ErrPartnerNotFound
	}

	now := s.clock.Now()
	st.record = &domain.Record{
		PartnerID: partnerID,
		Phase:     domain.PhaseApplied,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertRecord(ctx, tx, st.record); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrConcurrentModification
		}
		return nil, err
	}
	s.metrics.RecordOnboardingStep(ctx, string(domain.PhaseApplied))

	next := domain.PhaseAgreementsPending
	if len(required) == 0 {
		next = domain.PhaseAgreementsComplete
	}
	if err := s.advance(ctx, tx, st, next, nil); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) advance(ctx context.Context, tx *gorm.DB, st *state, to domain.Phase, mutate func(*domain.Record)) error {
	if !domain.CanAdvance(st.record.Phase, to, len(st.required)) {
		return domain.ErrOnboardingStepSkipped
	}

	next := *st.record
	next.Phase = to
	next.UpdatedAt = s.clock.Now()
	if mutate != nil {
		mutate(&next)
	}

	affected, err := s.repo.UpdateRecord(ctx, tx, &next)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}
	next.Version++
	st.record = &next

	s.metrics.RecordOnboardingStep(ctx, string(to))
	return nil
}

func buildStatus(st *state) *domain.Status {
	signedAt := make(map[snowflake.ID]time.Time, len(st.signatures))
	for _, sig := range st.signatures {
		signedAt[sig.AgreementID] = sig.SignedAt
	}

	agreements := make([]domain.AgreementStatus, 0, len(st.agreements))
	for _, agreement := range st.agreements {
		item := domain.AgreementStatus{Agreement: agreement}
		if at, ok := signedAt[agreement.ID]; ok {
			at := at
			item.Signed = true
			item.SignedAt = &at
		}
		agreements = append(agreements, item)
	}

	return &domain.Status{
		PartnerID:          st.record.PartnerID,
		Phase:              st.record.Phase,
		Progress:           st.progress,
		Agreements:         agreements,
		PaymentConfirmedAt: st.record.PaymentConfirmedAt,
		ActivatedAt:        st.record.ActivatedAt,
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
