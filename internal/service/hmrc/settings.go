package hmrc

import (
	"context"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
)

// Settings holds a company's HMRC gateway configuration. Settings live at the
// site level with optional subsite overrides.
type Settings struct {
	PAYEReference           string       `json:"paye_reference"`
	AccountsOfficeReference string       `json:"accounts_office_reference"`
	SenderID                string       `json:"sender_id,omitempty"`
	TestInLive              bool         `json:"test_in_live"`
	LastFPSSubmissionDate   *values.Time `json:"last_fps_submission_date,omitempty"`
	LastEPSSubmissionDate   *values.Time `json:"last_eps_submission_date,omitempty"`
	UpdatedAt               *values.Time `json:"updated_at,omitempty"`
}

// SettingsLevel identifies where in the site hierarchy settings were found
type SettingsLevel string

const (
	LevelSite    SettingsLevel = "site"
	LevelSubsite SettingsLevel = "subsite"
)

func settingsPath(companyID, siteID string, level SettingsLevel, subsiteID string) string {
	p := "settings/hmrc/" + companyID + "/" + siteID
	if level == LevelSubsite {
		p += "/subsites/" + subsiteID
	}
	return p
}

// FetchSettings loads gateway settings for a site, preferring a subsite
// override when one exists. The returned level says which document was found
// so later patches land on the same one.
func (s *Service) FetchSettings(ctx context.Context, companyID, siteID, subsiteID string) (*Settings, SettingsLevel, error) {
	if subsiteID != "" {
		var sub Settings
		err := s.store.Get(ctx, settingsPath(companyID, siteID, LevelSubsite, subsiteID), &sub)
		if err == nil {
			return &sub, LevelSubsite, nil
		}
		if !docstore.IsNotFound(err) {
			return nil, "", errors.NewInternalError("failed to load HMRC settings").WithCause(err)
		}
	}

	var site Settings
	if err := s.store.Get(ctx, settingsPath(companyID, siteID, LevelSite, ""), &site); err != nil {
		if docstore.IsNotFound(err) {
			return nil, "", errors.NewNotFoundError("HMRC settings")
		}
		return nil, "", errors.NewInternalError("failed to load HMRC settings").WithCause(err)
	}
	return &site, LevelSite, nil
}

// SaveSettings applies a partial update at the level FetchSettings found
func (s *Service) SaveSettings(ctx context.Context, companyID, siteID, subsiteID string, level SettingsLevel, patch map[string]interface{}) error {
	patch["updated_at"] = values.Now().Key()
	path := settingsPath(companyID, siteID, level, subsiteID)
	if err := s.store.Update(ctx, path, patch); err != nil {
		return errors.NewInternalError("failed to save HMRC settings").WithCause(err)
	}
	return nil
}
