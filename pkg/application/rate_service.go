package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/domain"
	"github.com/reneee98/layers/pkg/domain/billing"
	"github.com/reneee98/layers/pkg/storage"
)

// RateService administers the rate sources the resolver reads.
type RateService struct {
	repo     billing.Repository
	resolver *billing.RateResolver
	audit    domain.AuditLogger
	logger   *slog.Logger
}

func NewRateService(repo billing.Repository, resolver *billing.RateResolver, audit domain.AuditLogger, logger *slog.Logger) *RateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateService{repo: repo, resolver: resolver, audit: audit, logger: logger}
}

// AddRateRuleInput describes a new rate rule. Dates are YYYY-MM-DD.
type AddRateRuleInput struct {
	ID         string
	Name       string
	UserID     string
	ProjectID  string
	HourlyRate decimal.Decimal
	ValidFrom  string
	ValidTo    string
	IsDefault  bool
}

// AddRule validates and stores a rate rule.
func (s *RateService) AddRule(ctx context.Context, actor string, in AddRateRuleInput) (*billing.RateRule, error) {
	from, err := billing.ParseDate("valid_from", in.ValidFrom)
	if err != nil {
		return nil, err
	}
	var to *time.Time
	if in.ValidTo != "" {
		d, err := billing.ParseDate("valid_to", in.ValidTo)
		if err != nil {
			return nil, err
		}
		to = &d
	}
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}

	rule, err := billing.NewRateRule(id, in.Name, in.UserID, in.ProjectID, billing.DecimalToCents(in.HourlyRate), from, to, in.IsDefault)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveRateRule(ctx, &rule); err != nil {
		return nil, err
	}

	_ = s.audit.Log(domain.ActionRateRuleAdded, actorOf(actor), map[string]interface{}{
		"rule_id":     rule.ID,
		"user_id":     rule.UserID,
		"project_id":  rule.ProjectID,
		"hourly_rate": rule.HourlyRate().String(),
	})
	return &rule, nil
}

func (s *RateService) ListRules(ctx context.Context) ([]billing.RateRule, error) {
	return s.repo.ListRateRules(ctx)
}

// Resolve reports which rate applies to userID in rc and where it came from.
func (s *RateService) Resolve(ctx context.Context, userID string, rc billing.RateContext) billing.RateResolution {
	return s.resolver.Resolve(ctx, userID, rc)
}

// SetProjectRate sets or clears (nil) a project's default rate.
func (s *RateService) SetProjectRate(ctx context.Context, actor, projectID string, rate *decimal.Decimal) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if err := s.repo.SetProjectRate(ctx, projectID, toCents(rate)); err != nil {
		return err
	}
	s.logRateChange(actor, "project", projectID, rate)
	return nil
}

// SetTaskRate sets or clears a task's own rate override.
func (s *RateService) SetTaskRate(ctx context.Context, actor, taskID string, rate *decimal.Decimal) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if err := s.repo.SetTaskRate(ctx, taskID, toCents(rate)); err != nil {
		return err
	}
	s.logRateChange(actor, "task", taskID, rate)
	return nil
}

// SetUserRate sets a user's account-level default rate.
func (s *RateService) SetUserRate(ctx context.Context, actor, userID string, rate *decimal.Decimal) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if userID == "" {
		return billing.NewValidationError("user_id", "must not be empty")
	}
	if err := s.repo.SaveUserSettings(ctx, &billing.UserSettings{UserID: userID, DefaultHourlyRateCents: toCents(rate)}); err != nil {
		return err
	}
	s.logRateChange(actor, "user_settings", userID, rate)
	return nil
}

// SetMemberRate assigns userID to projectID with an optional member rate.
func (s *RateService) SetMemberRate(ctx context.Context, actor, projectID, userID string, rate *decimal.Decimal) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if userID == "" {
		return billing.NewValidationError("user_id", "must not be empty")
	}
	m := &billing.ProjectMember{ProjectID: projectID, UserID: userID, HourlyRateCents: toCents(rate)}
	if err := s.repo.SetProjectMember(ctx, m); err != nil {
		return err
	}
	s.logRateChange(actor, "project_member", projectID+"/"+userID, rate)
	return nil
}

// SyncRulesFromFile upserts every rule in a rates file. Rules are validated
// before anything is written; an invalid file changes nothing.
func (s *RateService) SyncRulesFromFile(ctx context.Context, path string) (int, error) {
	doc, err := storage.LoadRatesFile(path)
	if err != nil {
		return 0, err
	}

	rules := make([]billing.RateRule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		rule, err := billing.NewRateRule(r.ID, r.Name, r.UserID, r.ProjectID, r.HourlyRateCents, r.ValidFrom, r.ValidTo, r.IsDefault)
		if err != nil {
			return 0, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
		rules = append(rules, rule)
	}
	for i := range rules {
		if err := s.repo.SaveRateRule(ctx, &rules[i]); err != nil {
			return i, err
		}
	}

	s.logger.Info("rate rules synced", "path", path, "rules", len(rules))
	_ = s.audit.Log(domain.ActionRatesSynced, "system", map[string]interface{}{
		"path":  path,
		"rules": fmt.Sprint(len(rules)),
	})
	return len(rules), nil
}

// ExportRulesToFile writes the stored rules as a rates file.
func (s *RateService) ExportRulesToFile(ctx context.Context, path, currency string) (int, error) {
	rules, err := s.repo.ListRateRules(ctx)
	if err != nil {
		return 0, err
	}
	if err := storage.SaveRatesFile(path, &storage.RatesDocument{Currency: currency, Rules: rules}); err != nil {
		return 0, err
	}
	return len(rules), nil
}

func (s *RateService) logRateChange(actor, scope, id string, rate *decimal.Decimal) {
	value := "cleared"
	if rate != nil {
		value = rate.String()
	}
	_ = s.audit.Log(domain.ActionRateSet, actorOf(actor), map[string]interface{}{
		"scope":       scope,
		"id":          id,
		"hourly_rate": value,
	})
}

func checkRate(rate *decimal.Decimal) error {
	if rate != nil && rate.IsNegative() {
		return billing.NewValidationError("hourly_rate", "must be >= 0")
	}
	return nil
}

func toCents(rate *decimal.Decimal) *int64 {
	if rate == nil {
		return nil
	}
	return billing.Cents(billing.DecimalToCents(*rate))
}
