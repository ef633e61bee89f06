package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource identifies which resolution step produced an hourly rate.
type RateSource string

const (
	SourceProjectMember RateSource = "project_member"
	SourceProject       RateSource = "project"
	SourceRatesTable    RateSource = "rates_table"
	SourceTask          RateSource = "task"
	SourceUserSettings  RateSource = "user_settings"
	SourceFallback      RateSource = "fallback"
	// SourceExplicit marks a rate supplied by the caller instead of resolved.
	SourceExplicit RateSource = "explicit"
)

// RateResolution is an hourly rate together with where it came from.
type RateResolution struct {
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Source     RateSource      `json:"source"`
}

// IsFallback reports whether no rate source could be resolved.
func (r RateResolution) IsFallback() bool {
	return r.Source == SourceFallback
}

// FallbackRate is the degraded result when nothing resolves.
func FallbackRate() RateResolution {
	return RateResolution{HourlyRate: decimal.Zero, Source: SourceFallback}
}

// RateRule is an assignable rate row scoped by user and/or project and
// effective inside [ValidFrom, ValidTo].
type RateRule struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	UserID          string     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	ProjectID       string     `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	HourlyRateCents int64      `json:"hourly_rate_cents" yaml:"hourly_rate_cents"`
	ValidFrom       time.Time  `json:"valid_from" yaml:"valid_from"`
	ValidTo         *time.Time `json:"valid_to,omitempty" yaml:"valid_to,omitempty"`
	IsDefault       bool       `json:"is_default" yaml:"default"`
}

// NewRateRule creates a validated RateRule.
func NewRateRule(id, name, userID, projectID string, hourlyRateCents int64, validFrom time.Time, validTo *time.Time, isDefault bool) (RateRule, error) {
	if id == "" {
		return RateRule{}, fmt.Errorf("rate rule ID must not be empty")
	}
	if userID == "" && projectID == "" {
		return RateRule{}, NewValidationError("scope", "a rate rule needs a user or a project")
	}
	if hourlyRateCents < 0 {
		return RateRule{}, NewValidationError("hourly_rate", "must be >= 0")
	}
	if validFrom.IsZero() {
		return RateRule{}, NewValidationError("valid_from", "date is required")
	}
	if validTo != nil && validTo.Before(validFrom) {
		return RateRule{}, NewValidationError("valid_to", "must not be before valid_from")
	}
	return RateRule{
		ID:              id,
		Name:            name,
		UserID:          userID,
		ProjectID:       projectID,
		HourlyRateCents: hourlyRateCents,
		ValidFrom:       DateOf(validFrom),
		ValidTo:         validTo,
		IsDefault:       isDefault,
	}, nil
}

// HourlyRate returns the rule's rate in currency units.
func (r *RateRule) HourlyRate() decimal.Decimal {
	return CentsToDecimal(&r.HourlyRateCents)
}

// ActiveOn reports whether the rule's validity window contains day.
func (r *RateRule) ActiveOn(day time.Time) bool {
	day = DateOf(day)
	if DateOf(r.ValidFrom).After(day) {
		return false
	}
	return r.ValidTo == nil || !DateOf(*r.ValidTo).Before(day)
}

// Matches reports whether the rule is a candidate for (userID, projectID).
func (r *RateRule) Matches(userID, projectID string) bool {
	if userID != "" && r.UserID == userID {
		return true
	}
	return projectID != "" && r.ProjectID == projectID
}
