package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/pkg/db/pagination"
)

type SubmitApplicationRequest struct {
	CompanyName  string `json:"companyName"`
	ContactEmail string `json:"contactEmail"`
	Phone        string `json:"phone"`
	Website      string `json:"website"`
	Message      string `json:"message"`
}

type ListApplicationsRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListApplicationsResponse struct {
	pagination.PageInfo
	Applications []Application `json:"applications"`
}

type ReviewApplicationRequest struct {
	ApplicationID snowflake.ID
	Reason        string `json:"reason"`
}

type ChangeCommissionRateRequest struct {
	PartnerID snowflake.ID
	Rate      string `json:"rate"`
}

type Service interface {
	SubmitApplication(ctx context.Context, req SubmitApplicationRequest) (*Application, error)
	ListApplications(ctx context.Context, req ListApplicationsRequest) (ListApplicationsResponse, error)
	ApproveApplication(ctx context.Context, applicationID snowflake.ID) (*Partner, error)
	RejectApplication(ctx context.Context, req ReviewApplicationRequest) (*Application, error)

	// Current resolves the partner of the request caller.
	Current(ctx context.Context) (*Partner, error)
	// CurrentActive is Current plus a status check.
	CurrentActive(ctx context.Context) (*Partner, error)
	Get(ctx context.Context, id snowflake.ID) (*Partner, error)
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*Partner, error)

	Suspend(ctx context.Context, partnerID snowflake.ID, reason string) (*Partner, error)
	Reinstate(ctx context.Context, partnerID snowflake.ID) (*Partner, error)
	ChangeCommissionRate(ctx context.Context, req ChangeCommissionRateRequest) (*Partner, error)
}

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrPartnerNotFound         = errors.New("partner_not_found")
	ErrPartnerNotActive        = errors.New("partner_not_active")
	ErrApplicationNotFound     = errors.New("application_not_found")
	ErrApplicationExists       = errors.New("application_exists")
	ErrAlreadyPartner          = errors.New("partner_exists")
	ErrApplicationReviewed     = errors.New("application_already_reviewed")
	ErrInvalidCompanyName      = errors.New("invalid_company_name")
	ErrInvalidEmail            = errors.New("invalid_email")
	ErrInvalidTimezone         = errors.New("invalid_timezone")
	ErrInvalidWebsite          = errors.New("invalid_website")
	ErrInvalidID               = errors.New("invalid_id")
	ErrInvalidStatus           = errors.New("invalid_application_status")
	ErrInvalidCommissionRate   = errors.New("invalid_commission_rate")
	ErrEmptyUpdate             = errors.New("empty_update")
	ErrInvalidStatusTransition = errors.New("invalid_status_transition")
	ErrConcurrentModification  = errors.New("concurrent_modification")
	ErrInvalidPageToken        = errors.New("invalid_page_token")
)

// NotActiveError carries the partner's current status so callers can tell
// "no account" apart from "account not active".
type NotActiveError struct {
	Status Status
}

func (e *NotActiveError) Error() string { return ErrPartnerNotActive.Error() }

func (e *NotActiveError) Is(target error) bool { return target == ErrPartnerNotActive }
