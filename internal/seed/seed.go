package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	onboardingdomain "github.com/smallbiznis/partnerhub/internal/onboarding/domain"
	"gorm.io/gorm"
)

type defaultAgreement struct {
	Type    string
	Version string
	Title   string
	Content string
}

var defaultAgreements = []defaultAgreement{
	{
		Type:    "program_terms",
		Version: "2024-01",
		Title:   "Partner Program Terms",
		Content: "The partner refers prospective clients in good faith. Commission is earned only on " +
			"referrals that convert into paid engagements and is paid after the client settles " +
			"their first invoice. Commission rates may change for future referrals; referrals " +
			"already submitted keep the rate in effect when they were created.",
	},
	{
		Type:    "code_of_conduct",
		Version: "2024-01",
		Title:   "Partner Code of Conduct",
		Content: "Partners represent the program honestly, do not make promises on pricing or " +
			"delivery, and only submit referrals with the client's consent to be contacted.",
	},
}

// EnsureDefaultAgreements inserts the required program agreements that are
// missing and returns how many were created.
func EnsureDefaultAgreements(db *gorm.DB) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return 0, err
	}

	created := 0
	ctx := context.Background()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range defaultAgreements {
			var count int64
			if err := tx.Model(&onboardingdomain.Agreement{}).
				Where("type = ? AND version = ?", item.Type, item.Version).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			agreement := onboardingdomain.Agreement{
				ID:         node.Generate(),
				Type:       item.Type,
				Version:    item.Version,
				Title:      item.Title,
				Content:    item.Content,
				IsRequired: true,
				CreatedAt:  time.Now().UTC(),
			}
			if err := tx.Create(&agreement).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
