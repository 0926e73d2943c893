// Package models contains domain models for insight-engine.
package models

import "time"

// ExpertiseLevel is an ordinal user expertise classification.
type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseAdvanced     ExpertiseLevel = "advanced"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

// expertiseOrder maps levels to their ordinal rank.
var expertiseOrder = map[ExpertiseLevel]int{
	ExpertiseBeginner:     0,
	ExpertiseIntermediate: 1,
	ExpertiseAdvanced:     2,
	ExpertiseExpert:       3,
}

// Rank returns the ordinal position of the level (beginner=0 .. expert=3).
// Unknown levels rank as beginner.
func (e ExpertiseLevel) Rank() int {
	return expertiseOrder[e]
}

// ExpertiseForScore maps a [0,1] expertise score onto a level.
// The mapping is monotone: higher scores never produce lower levels.
func ExpertiseForScore(score float64) ExpertiseLevel {
	switch {
	case score >= 0.8:
		return ExpertiseExpert
	case score >= 0.55:
		return ExpertiseAdvanced
	case score >= 0.3:
		return ExpertiseIntermediate
	default:
		return ExpertiseBeginner
	}
}

// CommunicationStyle describes how a user prefers responses phrased.
type CommunicationStyle string

const (
	StyleFormal       CommunicationStyle = "formal"
	StyleCasual       CommunicationStyle = "casual"
	StyleDirect       CommunicationStyle = "direct"
	StyleConsultative CommunicationStyle = "consultative"
)

// AnalysisDepth is a user's preferred depth of analysis in responses.
type AnalysisDepth string

const (
	DepthSummary  AnalysisDepth = "summary"
	DepthStandard AnalysisDepth = "standard"
	DepthDetailed AnalysisDepth = "detailed"
)

// UserProfile is the durable identity and preference record for one user.
// Created on first contact, updated on every profile-relevant signal, only
// removed by explicit privacy erasure.
type UserProfile struct {
	UserID                 string             `db:"user_id" json:"user_id"`
	Expertise              ExpertiseLevel     `db:"expertise_level" json:"expertise_level"`
	Communication          CommunicationStyle `db:"communication_style" json:"communication_style"`
	BusinessFocus          JSONStringArray    `db:"business_focus" json:"business_focus"`
	PreferredAnalysisDepth AnalysisDepth      `db:"preferred_analysis_depth" json:"preferred_analysis_depth"`
	Timezone               string             `db:"timezone" json:"timezone"`
	Language               string             `db:"language" json:"language"`
	LastActiveEpoch        int64              `db:"last_active_epoch" json:"last_active_epoch"`
	CreatedAtEpoch         int64              `db:"created_at_epoch" json:"created_at_epoch"`
	UpdatedAtEpoch         int64              `db:"updated_at_epoch" json:"updated_at_epoch"`
}

// NewUserProfile returns a profile with sane defaults for a first contact.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now().UnixMilli()
	return &UserProfile{
		UserID:                 userID,
		Expertise:              ExpertiseIntermediate,
		Communication:          StyleConsultative,
		PreferredAnalysisDepth: DepthStandard,
		Timezone:               "UTC",
		Language:               "en",
		LastActiveEpoch:        now,
		CreatedAtEpoch:         now,
		UpdatedAtEpoch:         now,
	}
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	UserID                 string
	Expertise              *ExpertiseLevel
	Communication          *CommunicationStyle
	BusinessFocus          *JSONStringArray
	PreferredAnalysisDepth *AnalysisDepth
	Timezone               *string
	Language               *string
}

// Apply merges the patch into the profile and bumps UpdatedAtEpoch.
func (p *ProfilePatch) Apply(profile *UserProfile) {
	if p.Expertise != nil {
		profile.Expertise = *p.Expertise
	}
	if p.Communication != nil {
		profile.Communication = *p.Communication
	}
	if p.BusinessFocus != nil {
		profile.BusinessFocus = *p.BusinessFocus
	}
	if p.PreferredAnalysisDepth != nil {
		profile.PreferredAnalysisDepth = *p.PreferredAnalysisDepth
	}
	if p.Timezone != nil {
		profile.Timezone = *p.Timezone
	}
	if p.Language != nil {
		profile.Language = *p.Language
	}
	profile.UpdatedAtEpoch = time.Now().UnixMilli()
}

// LearningInsight is an aggregated observation about a user's behavior,
// produced by the behavior engine and kept for global analytics.
type LearningInsight struct {
	ID             string  `db:"id" json:"id"`
	UserID         string  `db:"user_id" json:"user_id"`
	Category       string  `db:"category" json:"category"`
	Content        string  `db:"content" json:"content"`
	Confidence     float64 `db:"confidence" json:"confidence"`
	CreatedAtEpoch int64   `db:"created_at_epoch" json:"created_at_epoch"`
}
