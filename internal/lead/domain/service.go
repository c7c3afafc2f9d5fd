package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/partnerhub/pkg/db/pagination"
)

type CreateLeadRequest struct {
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	ClientPhone string `json:"clientPhone"`
	Service     string `json:"service"`
	// ServiceValue and Commission are major currency units.
	ServiceValue *decimal.Decimal `json:"serviceValue"`
	Commission   *decimal.Decimal `json:"commission"`
	Notes        string           `json:"notes"`
}

type ListLeadsRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListLeadsResponse struct {
	pagination.PageInfo
	Leads []Lead `json:"leads"`
}

type TransitionRequest struct {
	PartnerID snowflake.ID
	LeadID    snowflake.ID
	Status    string `json:"status"`
}

type Service interface {
	Create(ctx context.Context, partnerID snowflake.ID, req CreateLeadRequest) (*Lead, error)
	Get(ctx context.Context, partnerID, leadID snowflake.ID) (*Lead, error)
	List(ctx context.Context, partnerID snowflake.ID, req ListLeadsRequest) (ListLeadsResponse, error)
	Transition(ctx context.Context, req TransitionRequest) (*Lead, error)
	MarkCommissionPaid(ctx context.Context, leadID snowflake.ID) (*Lead, error)
}

var (
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrTerminalStateViolation = errors.New("terminal_state_violation")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrNotFound               = errors.New("lead_not_found")
	ErrForbidden              = errors.New("lead_forbidden")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrInvalidClientName      = errors.New("invalid_client_name")
	ErrInvalidClientEmail     = errors.New("invalid_client_email")
	ErrInvalidService         = errors.New("invalid_service")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrCommissionNotEarned    = errors.New("commission_not_earned")
	ErrRateLimited            = errors.New("rate_limited")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
	ErrInvalidID              = errors.New("invalid_id")
)

// RateLimitedError tells the caller when a new lead may be submitted.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
