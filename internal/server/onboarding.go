package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	onboardingdomain "github.com/smallbiznis/partnerhub/internal/onboarding/domain"
)

func (s *Server) ListAgreements(c *gin.Context) {
	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.onboardingSvc.Status(c.Request.Context(), partner.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status.Agreements, "progress": status.Progress})
}

func (s *Server) AcceptAgreement(c *gin.Context) {
	agreementID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req onboardingdomain.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req.PartnerID = partner.ID
	req.AgreementID = agreementID
	resp, err := s.onboardingSvc.Sign(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AgreementCertificate(c *gin.Context) {
	agreementID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.onboardingSvc.Certificate(c.Request.Context(), partner.ID, agreementID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="agreement-%s.pdf"`, agreementID.String()),
	})
}

func (s *Server) GetOnboarding(c *gin.Context) {
	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.onboardingSvc.Status(c.Request.Context(), partner.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RequestPaymentSetup(c *gin.Context) {
	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.onboardingSvc.RequestPaymentSetup(c.Request.Context(), partner.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type activateRequest struct {
	PaymentConfirmed bool `json:"paymentConfirmed"`
}

func (s *Server) ActivatePartner(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.onboardingSvc.Activate(c.Request.Context(), partner.ID, req.PaymentConfirmed)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PublishAgreement(c *gin.Context) {
	var req onboardingdomain.PublishAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.onboardingSvc.PublishAgreement(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
