package domain

import (
	"fmt"

	"github.com/smallbiznis/partnerhub/internal/events"
)

// FromEvent maps a domain event to the notification shown to the partner.
// Events without a partner-facing message report false.
func FromEvent(e events.Event) (EmitRequest, bool) {
	client := e.String("client_name")
	req := EmitRequest{
		PartnerID: e.PartnerID,
		Type:      e.EventType,
		Data:      map[string]any(e.Payload),
	}
	id := e.ID
	req.SourceEventID = &id

	switch e.EventType {
	case events.LeadContacted:
		req.Title = "Lead contacted"
		req.Message = fmt.Sprintf("%s has been contacted.", client)
	case events.LeadQualified:
		req.Title = "Lead qualified"
		req.Message = fmt.Sprintf("%s is qualified for %s.", client, e.String("service"))
	case events.LeadConverted:
		req.Title = "Lead converted"
		req.Message = fmt.Sprintf("%s converted. You earned %s in commission.", client, e.String("commission"))
	case events.LeadLost:
		req.Title = "Lead lost"
		req.Message = fmt.Sprintf("%s did not convert.", client)
	case events.ApplicationApproved:
		req.Title = "Application approved"
		req.Message = "Your partner application was approved. Sign the program agreements to continue onboarding."
	case events.AccountApproved:
		req.Title = "Account active"
		req.Message = "Onboarding is complete. You can now submit referrals."
	case events.PartnerSuspended:
		req.Title = "Account suspended"
		req.Message = "Your partner account has been suspended."
		if reason := e.String("reason"); reason != "" {
			req.Message = fmt.Sprintf("Your partner account has been suspended: %s", reason)
		}
	case events.PartnerReinstated:
		req.Title = "Account reinstated"
		req.Message = "Your partner account is active again."
	case events.CommissionPaid:
		req.Title = "Commission paid"
		req.Message = fmt.Sprintf("%s commission for %s has been paid.", e.String("commission"), client)
	case events.CommissionRateChanged:
		req.Title = "Commission rate updated"
		req.Message = fmt.Sprintf("Your commission rate is now %s%% for new referrals.", e.String("rate"))
	default:
		return EmitRequest{}, false
	}
	return req, true
}
