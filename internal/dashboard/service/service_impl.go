package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/commission"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/dashboard/domain"
	leaddomain "github.com/smallbiznis/partnerhub/internal/lead/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Partners partnerdomain.Repository
	Leads    leaddomain.Repository
	Program  *config.ProgramHolder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	partners partnerdomain.Repository
	leads    leaddomain.Repository
	program  *config.ProgramHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("dashboard.service"),
		clock:    p.Clock,
		partners: p.Partners,
		leads:    p.Leads,
		program:  p.Program,
	}
}

func (s *Service) ForCaller(ctx context.Context) (domain.Stats, error) {
	caller, ok := callercontext.FromContext(ctx)
	if !ok {
		return domain.Stats{}, partnerdomain.ErrUnauthorized
	}
	partner, err := s.partners.FindByExternalUserID(ctx, s.db, caller.ExternalID)
	if err != nil {
		return domain.Stats{}, err
	}
	if partner == nil {
		return domain.Stats{}, partnerdomain.ErrPartnerNotFound
	}
	if !partner.IsActive() {
		return domain.Stats{}, &partnerdomain.NotActiveError{Status: partner.Status}
	}

	return domain.BuildStats(*partner, s.loadLeads(ctx, partner.ID), s.clock.Now()), nil
}

func (s *Service) Summary(ctx context.Context, partnerID snowflake.ID) (partnerdomain.Summary, error) {
	if partnerID == 0 {
		return partnerdomain.Summary{}, partnerdomain.ErrInvalidID
	}
	partner, err := s.partners.FindByID(ctx, s.db, partnerID)
	if err != nil {
		return partnerdomain.Summary{}, err
	}
	if partner == nil {
		return partnerdomain.Summary{}, partnerdomain.ErrPartnerNotFound
	}

	leads := s.loadLeads(ctx, partnerID)
	totals := commission.Aggregate(leads)
	return partnerdomain.Summary{
		TotalReferrals:  len(leads),
		TotalEarnings:   totals.Total,
		PaidEarnings:    totals.Paid,
		PendingEarnings: totals.Pending,
		Rank:            commission.Rank(totals.Total, len(leads), s.program.Get().RankTiers),
	}, nil
}

// loadLeads degrades to an empty set so a failing read shows zeros instead of
// breaking the page.
func (s *Service) loadLeads(ctx context.Context, partnerID snowflake.ID) []leaddomain.Lead {
	leads, err := s.leads.ListAll(ctx, s.db, partnerID)
	if err != nil {
		s.log.Warn("load leads for aggregation failed",
			zap.String("partner_id", partnerID.String()),
			zap.Error(err),
		)
		return nil
	}
	return leads
}
