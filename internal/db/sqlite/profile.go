package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// GetProfile retrieves a user profile. Returns (nil, nil) when absent.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	const query = `
		SELECT user_id, expertise_level, communication_style, business_focus,
		       preferred_analysis_depth, timezone, language,
		       last_active_epoch, created_at_epoch, updated_at_epoch
		FROM user_profiles
		WHERE user_id = ?
	`

	var p models.UserProfile
	err := s.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Expertise, &p.Communication, &p.BusinessFocus,
		&p.PreferredAnalysisDepth, &p.Timezone, &p.Language,
		&p.LastActiveEpoch, &p.CreatedAtEpoch, &p.UpdatedAtEpoch,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates the profile on first contact, then applies the patch.
// Idempotent: replaying the same patch yields the same stored profile.
func (s *Store) UpsertProfile(ctx context.Context, patch *models.ProfilePatch) (*models.UserProfile, error) {
	profile, err := s.GetProfile(ctx, patch.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = models.NewUserProfile(patch.UserID)
	}
	patch.Apply(profile)
	profile.LastActiveEpoch = time.Now().UnixMilli()

	const query = `
		INSERT INTO user_profiles
		(user_id, expertise_level, communication_style, business_focus,
		 preferred_analysis_depth, timezone, language,
		 last_active_epoch, created_at_epoch, updated_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			expertise_level = excluded.expertise_level,
			communication_style = excluded.communication_style,
			business_focus = excluded.business_focus,
			preferred_analysis_depth = excluded.preferred_analysis_depth,
			timezone = excluded.timezone,
			language = excluded.language,
			last_active_epoch = excluded.last_active_epoch,
			updated_at_epoch = excluded.updated_at_epoch
	`

	focus, err := profile.BusinessFocus.Value()
	if err != nil {
		return nil, err
	}

	_, err = s.ExecContext(ctx, query,
		profile.UserID, string(profile.Expertise), string(profile.Communication), focus,
		string(profile.PreferredAnalysisDepth), profile.Timezone, profile.Language,
		profile.LastActiveEpoch, profile.CreatedAtEpoch, profile.UpdatedAtEpoch,
	)
	if err != nil {
		return nil, err
	}
	return profile, nil
}
