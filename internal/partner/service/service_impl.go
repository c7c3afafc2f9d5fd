package service

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/commission"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/partner/domain"
	pkgdb "github.com/smallbiznis/partnerhub/pkg/db"
	"github.com/smallbiznis/partnerhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxReferralSlug = 24

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Outbox  *events.Outbox
	Audit   auditdomain.Service
	Program *config.ProgramHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	outbox  *events.Outbox
	audit   auditdomain.Service
	program *config.ProgramHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("partner.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		outbox:  p.Outbox,
		audit:   p.Audit,
		program: p.Program,
	}
}

func (s *Service) SubmitApplication(ctx context.Context, req domain.SubmitApplicationRequest) (*domain.Application, error) {
	caller, ok := callercontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		return nil, domain.ErrInvalidCompanyName
	}
	email, err := normalizeEmail(req.ContactEmail)
	if err != nil {
		return nil, err
	}
	website, err := normalizeWebsite(req.Website)
	if err != nil {
		return nil, err
	}

	app := &domain.Application{
		ID:             s.genID.Generate(),
		ExternalUserID: caller.ExternalID,
		CompanyName:    companyName,
		ContactEmail:   email,
		Phone:          strings.TrimSpace(req.Phone),
		Website:        website,
		Message:        strings.TrimSpace(req.Message),
		Status:         domain.ApplicationSubmitted,
		CreatedAt:      s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByExternalUserID(ctx, tx, caller.ExternalID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyPartner
		}
		open, err := s.repo.FindOpenApplication(ctx, tx, caller.ExternalID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.ErrApplicationExists
		}
		return s.repo.InsertApplication(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (s *Service) ListApplications(ctx context.Context, req domain.ListApplicationsRequest) (domain.ListApplicationsResponse, error) {
	filter := domain.ApplicationFilter{Limit: req.Size()}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.ApplicationStatus(status) {
		case domain.ApplicationSubmitted, domain.ApplicationApproved, domain.ApplicationRejected:
			filter.Status = domain.ApplicationStatus(status)
		default:
			return domain.ListApplicationsResponse{}, domain.ErrInvalidStatus
		}
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListApplicationsResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListApplicationsResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return domain.ListApplicationsResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.ApplicationCursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.ListApplications(ctx, s.db, filter)
	if err != nil {
		return domain.ListApplicationsResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(app *domain.Application) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        app.ID.String(),
			CreatedAt: app.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})

	apps := make([]domain.Application, 0, len(items))
	for _, item := range items {
		apps = append(apps, *item)
	}
	return domain.ListApplicationsResponse{PageInfo: pageInfo, Applications: apps}, nil
}

func (s *Service) ApproveApplication(ctx context.Context, applicationID snowflake.ID) (*domain.Partner, error) {
	if applicationID == 0 {
		return nil, domain.ErrInvalidID
	}

	var created *domain.Partner
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.repo.FindApplicationForUpdate(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app == nil {
			return domain.ErrApplicationNotFound
		}
		if app.Status != domain.ApplicationSubmitted {
			return domain.ErrApplicationReviewed
		}

		existing, err := s.repo.FindByExternalUserID(ctx, tx, app.ExternalUserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyPartner
		}

		now := s.clock.Now()
		partnerID := s.genID.Generate()
		code, err := s.referralCode(ctx, tx, app.CompanyName, partnerID)
		if err != nil {
			return err
		}

		partner := &domain.Partner{
			ID:             partnerID,
			ExternalUserID: app.ExternalUserID,
			CompanyName:    app.CompanyName,
			ContactEmail:   app.ContactEmail,
			Phone:          app.Phone,
			Website:        app.Website,
			ReferralCode:   code,
			Status:         domain.StatusPending,
			CommissionRate: s.program.Get().DefaultCommissionRate,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Insert(ctx, tx, partner); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyPartner
			}
			return err
		}

		reviewer := reviewerID(ctx)
		app.Status = domain.ApplicationApproved
		app.PartnerID = &partnerID
		app.ReviewedAt = &now
		app.ReviewedBy = reviewer
		if err := s.repo.UpdateApplication(ctx, tx, app); err != nil {
			return err
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partnerID,
			EventType: events.ApplicationApproved,
			Payload: map[string]any{
				"application_id": app.ID.String(),
				"company_name":   partner.CompanyName,
			},
			DedupeKey: "application_approved:" + app.ID.String(),
		}); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionApplicationApprove,
			TargetType: "partner_application",
			TargetID:   app.ID.String(),
			Metadata:   map[string]any{"partner_id": partnerID.String()},
		}); err != nil {
			return err
		}

		created = partner
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("partner application approved",
		zap.String("application_id", applicationID.String()),
		zap.String("partner_id", created.ID.String()),
	)
	return created, nil
}

func (s *Service) RejectApplication(ctx context.Context, req domain.ReviewApplicationRequest) (*domain.Application, error) {
	if req.ApplicationID == 0 {
		return nil, domain.ErrInvalidID
	}

	var rejected *domain.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.repo.FindApplicationForUpdate(ctx, tx, req.ApplicationID)
		if err != nil {
			return err
		}
		if app == nil {
			return domain.ErrApplicationNotFound
		}
		if app.Status != domain.ApplicationSubmitted {
			return domain.ErrApplicationReviewed
		}

		now := s.clock.Now()
		app.Status = domain.ApplicationRejected
		app.ReviewedAt = &now
		app.ReviewedBy = reviewerID(ctx)
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			app.RejectionReason = &reason
		}
		if err := s.repo.UpdateApplication(ctx, tx, app); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionApplicationReject,
			TargetType: "partner_application",
			TargetID:   app.ID.String(),
			Metadata:   map[string]any{"reason": strings.TrimSpace(req.Reason)},
		}); err != nil {
			return err
		}
		rejected = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *Service) Current(ctx context.Context) (*domain.Partner, error) {
	caller, ok := callercontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	partner, err := s.repo.FindByExternalUserID(ctx, s.db, caller.ExternalID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, domain.ErrPartnerNotFound
	}
	return partner, nil
}

func (s *Service) CurrentActive(ctx context.Context) (*domain.Partner, error) {
	partner, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !partner.IsActive() {
		return nil, &domain.NotActiveError{Status: partner.Status}
	}
	return partner, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Partner, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	partner, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, domain.ErrPartnerNotFound
	}
	return partner, nil
}

func (s *Service) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Partner, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	columns := update.Columns()
	if len(columns) == 0 {
		return nil, domain.ErrEmptyUpdate
	}
	if err := validateProfileColumns(columns); err != nil {
		return nil, err
	}
	columns["updated_at"] = s.clock.Now()

	if err := s.applyColumns(ctx, current.ID, current.Version, columns); err != nil {
		return nil, err
	}
	return s.Get(ctx, current.ID)
}

func (s *Service) Suspend(ctx context.Context, partnerID snowflake.ID, reason string) (*domain.Partner, error) {
	reason = strings.TrimSpace(reason)
	return s.changeStatus(ctx, partnerID, domain.StatusSuspended, func(tx *gorm.DB, partner *domain.Partner, now time.Time) (map[string]any, error) {
		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partner.ID,
			EventType: events.PartnerSuspended,
			Payload:   map[string]any{"reason": reason},
		}); err != nil {
			return nil, err
		}
		return map[string]any{"suspended_at": now}, s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionPartnerSuspend,
			TargetType: "partner",
			TargetID:   partner.ID.String(),
			Metadata:   map[string]any{"reason": reason},
		})
	})
}

func (s *Service) Reinstate(ctx context.Context, partnerID snowflake.ID) (*domain.Partner, error) {
	return s.changeStatus(ctx, partnerID, domain.StatusActive, func(tx *gorm.DB, partner *domain.Partner, now time.Time) (map[string]any, error) {
		if partner.Status != domain.StatusSuspended {
			return nil, domain.ErrInvalidStatusTransition
		}
		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partner.ID,
			EventType: events.PartnerReinstated,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"suspended_at": nil}, s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionPartnerReinstate,
			TargetType: "partner",
			TargetID:   partner.ID.String(),
		})
	})
}

func (s *Service) ChangeCommissionRate(ctx context.Context, req domain.ChangeCommissionRateRequest) (*domain.Partner, error) {
	if req.PartnerID == 0 {
		return nil, domain.ErrInvalidID
	}
	rate, err := commission.ParseRate(req.Rate)
	if err != nil {
		return nil, domain.ErrInvalidCommissionRate
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		partner, err := s.repo.FindByIDForUpdate(ctx, tx, req.PartnerID)
		if err != nil {
			return err
		}
		if partner == nil {
			return domain.ErrPartnerNotFound
		}

		previous := partner.CommissionRate
		if err := s.update(ctx, tx, partner, map[string]any{
			"commission_rate": rate.String(),
			"updated_at":      s.clock.Now(),
		}); err != nil {
			return err
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partner.ID,
			EventType: events.CommissionRateChanged,
			Payload: map[string]any{
				"previous_rate": previous,
				"rate":          rate.String(),
			},
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionCommissionRate,
			TargetType: "partner",
			TargetID:   partner.ID.String(),
			Metadata:   map[string]any{"previous_rate": previous, "rate": rate.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, req.PartnerID)
}

type statusEffect func(tx *gorm.DB, partner *domain.Partner, now time.Time) (map[string]any, error)

func (s *Service) changeStatus(ctx context.Context, partnerID snowflake.ID, to domain.Status, effect statusEffect) (*domain.Partner, error) {
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		partner, err := s.repo.FindByIDForUpdate(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if partner == nil {
			return domain.ErrPartnerNotFound
		}
		if !domain.CanTransition(partner.Status, to) {
			return domain.ErrInvalidStatusTransition
		}

		now := s.clock.Now()
		columns, err := effect(tx, partner, now)
		if err != nil {
			return err
		}
		if columns == nil {
			columns = map[string]any{}
		}
		columns["status"] = to
		columns["updated_at"] = now
		return s.update(ctx, tx, partner, columns)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("partner status changed",
		zap.String("partner_id", partnerID.String()),
		zap.String("status", string(to)),
	)
	return s.Get(ctx, partnerID)
}

func (s *Service) applyColumns(ctx context.Context, id snowflake.ID, version int64, columns map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.update(ctx, tx, &domain.Partner{ID: id, Version: version}, columns)
	})
}

func (s *Service) update(ctx context.Context, tx *gorm.DB, partner *domain.Partner, columns map[string]any) error {
	affected, err := s.repo.UpdateColumns(ctx, tx, partner.ID, partner.Version, columns)
	if err != nil {
		if pkgdb.IsConflictErr(err) {
			return domain.ErrConcurrentModification
		}
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (s *Service) referralCode(ctx context.Context, tx *gorm.DB, companyName string, id snowflake.ID) (string, error) {
	base := slug.Make(companyName)
	if len(base) > maxReferralSlug {
		base = strings.Trim(base[:maxReferralSlug], "-")
	}
	if base == "" {
		base = "partner"
	}

	exists, err := s.repo.ReferralCodeExists(ctx, tx, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}

	suffix := id.Base36()
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("%s-%s", base, suffix), nil
}

func reviewerID(ctx context.Context) *string {
	caller, ok := callercontext.FromContext(ctx)
	if !ok {
		return nil
	}
	id := caller.ExternalID
	return &id
}

func validateProfileColumns(columns map[string]any) error {
	for column, value := range columns {
		text, _ := value.(string)
		switch column {
		case "company_name":
			if text == "" {
				return domain.ErrInvalidCompanyName
			}
		case "contact_email":
			email, err := normalizeEmail(text)
			if err != nil {
				return err
			}
			columns[column] = email
		case "website":
			website, err := normalizeWebsite(text)
			if err != nil {
				return err
			}
			columns[column] = website
		case "timezone":
			if text == "" {
				continue
			}
			if _, err := time.LoadLocation(text); err != nil {
				return domain.ErrInvalidTimezone
			}
		}
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func normalizeWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", domain.ErrInvalidWebsite
	}
	return parsed.String(), nil
}
