package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/commission"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/lead/domain"
	"github.com/smallbiznis/partnerhub/internal/observability/logger"
	"github.com/smallbiznis/partnerhub/internal/observability/metrics"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/smallbiznis/partnerhub/internal/ratelimit"
	pkgdb "github.com/smallbiznis/partnerhub/pkg/db"
	"github.com/smallbiznis/partnerhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxClientField = 200

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
	Limiter  *ratelimit.LeadLimiter `optional:"true"`
	Metrics  *metrics.Metrics       `optional:"true"`
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
	limiter  *ratelimit.LeadLimiter
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("lead.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		partners: p.Partners,
		outbox:   p.Outbox,
		audit:    p.Audit,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, partnerID snowflake.ID, req domain.CreateLeadRequest) (*domain.Lead, error) {
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}
	lead, err := s.buildLead(req)
	if err != nil {
		return nil, err
	}

	partner, err := s.activePartner(ctx, s.db, partnerID)
	if err != nil {
		return nil, err
	}

	if allowed, retryAfter := s.limiter.Allow(ctx, partnerID.String()); !allowed {
		return nil, &domain.RateLimitedError{RetryAfter: retryAfter}
	}

	rate := partner.Rate()
	if lead.ServiceValue > 0 {
		lead.Commission = commission.Compute(lead.ServiceValue, rate)
	}

	now := s.clock.Now()
	lead.ID = s.genID.Generate()
	lead.PartnerID = partnerID
	lead.CommissionRate = rate.String()
	lead.Status = domain.StatusPending
	lead.Version = 1
	lead.CreatedAt = now
	lead.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, lead); err != nil {
			return err
		}
		_, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: partnerID,
			EventType: events.LeadCreated,
			Payload:   leadPayload(lead, ""),
			DedupeKey: events.LeadCreated + ":" + lead.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLeadCreated(ctx)
	logger.WithPartner(s.log, partnerID.String()).Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.Int64("commission", lead.Commission),
	)
	return lead, nil
}

func (s *Service) Get(ctx context.Context, partnerID, leadID snowflake.ID) (*domain.Lead, error) {
	return s.owned(ctx, s.db, partnerID, leadID)
}

func (s *Service) List(ctx context.Context, partnerID snowflake.ID, req domain.ListLeadsRequest) (domain.ListLeadsResponse, error) {
	if partnerID == 0 {
		return domain.ListLeadsResponse{}, domain.ErrInvalidID
	}

	filter := domain.ListFilter{PartnerID: partnerID, Limit: req.Size()}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.ListLeadsResponse{}, err
		}
		filter.Status = status
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListLeadsResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListLeadsResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return domain.ListLeadsResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListLeadsResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(lead *domain.Lead) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        lead.ID.String(),
			CreatedAt: lead.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})

	leads := make([]domain.Lead, 0, len(items))
	for _, item := range items {
		leads = append(leads, *item)
	}
	return domain.ListLeadsResponse{PageInfo: pageInfo, Leads: leads}, nil
}

// Transition moves a lead through the pipeline. The write is guarded by the
// version read at the start so a concurrent writer makes this call fail
// instead of being overwritten.
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Lead, error) {
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	var (
		updated *domain.Lead
		from    domain.Status
		noop    bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.activePartner(ctx, tx, req.PartnerID); err != nil {
			return err
		}
		lead, err := s.owned(ctx, tx, req.PartnerID, req.LeadID)
		if err != nil {
			return err
		}

		noop, err = domain.CheckTransition(lead.Status, to)
		if err != nil {
			return err
		}
		if noop {
			updated = lead
			return nil
		}

		from = lead.Status
		next := *lead
		now := s.clock.Now()
		next.Status = to
		next.UpdatedAt = now
		switch to {
		case domain.StatusConverted:
			if next.ConvertedAt == nil {
				next.ConvertedAt = &now
			}
			if next.Commission == 0 && next.ServiceValue > 0 {
				next.Commission = commission.Compute(next.ServiceValue, rateOf(next))
			}
		case domain.StatusLost:
			next.LostAt = &now
		}

		if err := s.update(ctx, tx, &next, lead.Version); err != nil {
			return err
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: next.PartnerID,
			EventType: "lead_" + string(to),
			Payload:   leadPayload(&next, from),
			DedupeKey: "lead_" + string(to) + ":" + next.ID.String(),
		}); err != nil {
			return err
		}

		updated = &next
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.metrics.RecordTransitionConflict(ctx, "lead")
		}
		return nil, err
	}

	if !noop {
		s.metrics.RecordLeadTransition(ctx, string(from), string(to))
		logger.WithPartner(s.log, req.PartnerID.String()).Info("lead transitioned",
			zap.String("lead_id", req.LeadID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	return updated, nil
}

func (s *Service) MarkCommissionPaid(ctx context.Context, leadID snowflake.ID) (*domain.Lead, error) {
	if leadID == 0 {
		return nil, domain.ErrInvalidID
	}

	var updated *domain.Lead
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := s.repo.FindByID(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return domain.ErrNotFound
		}
		if lead.Status != domain.StatusConverted {
			return domain.ErrCommissionNotEarned
		}
		if lead.CommissionPaid {
			updated = lead
			return nil
		}

		now := s.clock.Now()
		next := *lead
		next.CommissionPaid = true
		next.CommissionPaidAt = &now
		next.UpdatedAt = now
		if err := s.update(ctx, tx, &next, lead.Version); err != nil {
			return err
		}

		if _, err := s.outbox.Append(ctx, tx, events.Draft{
			PartnerID: next.PartnerID,
			EventType: events.CommissionPaid,
			Payload:   leadPayload(&next, ""),
			DedupeKey: events.CommissionPaid + ":" + next.ID.String(),
		}); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionCommissionPaid,
			TargetType: "lead",
			TargetID:   next.ID.String(),
			Metadata: map[string]any{
				"partner_id": next.PartnerID.String(),
				"commission": commission.FormatMinor(next.Commission),
			},
		}); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) owned(ctx context.Context, db *gorm.DB, partnerID, leadID snowflake.ID) (*domain.Lead, error) {
	if leadID == 0 {
		return nil, domain.ErrInvalidID
	}
	lead, err := s.repo.FindByID(ctx, db, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, domain.ErrNotFound
	}
	if lead.PartnerID != partnerID {
		return nil, domain.ErrForbidden
	}
	return lead, nil
}

func (s *Service) update(ctx context.Context, tx *gorm.DB, next *domain.Lead, expectedVersion int64) error {
	affected, err := s.repo.Update(ctx, tx, next, expectedVersion)
	if err != nil {
		if pkgdb.IsConflictErr(err) {
			return domain.ErrConcurrentModification
		}
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}
	next.Version = expectedVersion + 1
	return nil
}

// activePartner loads the owning partner and rejects any status other than
// active. A suspended partner keeps read access but cannot move leads.
func (s *Service) activePartner(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (*partnerdomain.Partner, error) {
	partner, err := s.partners.FindByID(ctx, db, partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, partnerdomain.ErrPartnerNotFound
	}
	if !partner.IsActive() {
		return nil, &partnerdomain.NotActiveError{Status: partner.Status}
	}
	return partner, nil
}

func (s *Service) buildLead(req domain.CreateLeadRequest) (*domain.Lead, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" || len(name) > maxClientField {
		return nil, domain.ErrInvalidClientName
	}
	email := strings.TrimSpace(req.ClientEmail)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, domain.ErrInvalidClientEmail
	}
	service := strings.TrimSpace(req.Service)
	if service == "" || len(service) > maxClientField {
		return nil, domain.ErrInvalidService
	}

	lead := &domain.Lead{
		ClientName:  name,
		ClientEmail: strings.ToLower(email),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		Service:     service,
		Notes:       strings.TrimSpace(req.Notes),
	}
	// A non-positive service value earns nothing; it is stored as zero.
	if req.ServiceValue != nil && req.ServiceValue.IsPositive() {
		value, err := commission.ToMinor(*req.ServiceValue)
		if err != nil {
			return nil, domain.ErrInvalidAmount
		}
		lead.ServiceValue = value
	}
	if req.Commission != nil && lead.ServiceValue == 0 {
		if req.Commission.IsNegative() {
			return nil, domain.ErrInvalidAmount
		}
		amount, err := commission.ToMinor(*req.Commission)
		if err != nil {
			return nil, domain.ErrInvalidAmount
		}
		lead.Commission = amount
	}
	return lead, nil
}

func rateOf(lead domain.Lead) decimal.Decimal {
	rate, err := commission.ParseRate(lead.CommissionRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func leadPayload(lead *domain.Lead, from domain.Status) map[string]any {
	payload := map[string]any{
		"lead_id":     lead.ID.String(),
		"client_name": lead.ClientName,
		"service":     lead.Service,
		"status":      string(lead.Status),
		"commission":  commission.FormatMinor(lead.Commission),
	}
	if from != "" {
		payload["from_status"] = string(from)
	}
	return payload
}
