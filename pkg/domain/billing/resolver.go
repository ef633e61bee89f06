package billing

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RateContext names the unit of work a rate is resolved for. Either field may
// be empty; a task without a project is resolved through task and user settings.
type RateContext struct {
	ProjectID string `json:"project_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

// RateQuery is the normalized input handed to each strategy.
type RateQuery struct {
	UserID    string
	ProjectID string
	Task      *Task
	Today     time.Time
}

// HasProject reports whether the work belongs to a project.
func (q RateQuery) HasProject() bool {
	return q.ProjectID != ""
}

// RateStrategy is one step of the resolution chain. ok=false means the step
// produced no rate and the next one should be tried.
type RateStrategy interface {
	Source() RateSource
	TryResolve(ctx context.Context, q RateQuery) (rate decimal.Decimal, ok bool, err error)
}

// RateResolver evaluates strategies in order and stops at the first rate.
type RateResolver struct {
	lookup     RateLookup
	strategies []RateStrategy
	now        func() time.Time
	logger     *slog.Logger
}

// NewRateResolver creates a resolver with the standard strategy order.
func NewRateResolver(lookup RateLookup, now func() time.Time, logger *slog.Logger) *RateResolver {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateResolver{
		lookup:     lookup,
		strategies: DefaultRateStrategies(lookup),
		now:        now,
		logger:     logger,
	}
}

// DefaultRateStrategies returns the resolution chain, first match wins.
func DefaultRateStrategies(lookup RateLookup) []RateStrategy {
	return []RateStrategy{
		projectMemberStrategy{lookup: lookup},
		projectStrategy{lookup: lookup},
		rateRulesStrategy{lookup: lookup},
		taskStrategy{},
		userSettingsStrategy{lookup: lookup},
	}
}

// Resolve determines the hourly rate for userID working in rc. It never
// fails: lookup errors are logged and the chain degrades to the fallback.
func (r *RateResolver) Resolve(ctx context.Context, userID string, rc RateContext) RateResolution {
	q := RateQuery{
		UserID:    userID,
		ProjectID: rc.ProjectID,
		Today:     DateOf(r.now()),
	}

	if rc.TaskID != "" {
		task, err := r.lookup.GetTask(ctx, rc.TaskID)
		switch {
		case err == nil:
			q.Task = task
			if q.ProjectID == "" {
				q.ProjectID = task.ProjectID
			}
		case errors.Is(err, ErrNotFound):
		default:
			r.logger.Warn("rate resolution: task lookup failed", "task_id", rc.TaskID, "error", err)
		}
	}

	return r.ResolveQuery(ctx, q)
}

// ResolveQuery runs the chain on an already-normalized query.
func (r *RateResolver) ResolveQuery(ctx context.Context, q RateQuery) RateResolution {
	for _, s := range r.strategies {
		rate, ok, err := s.TryResolve(ctx, q)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				r.logger.Warn("rate resolution step failed",
					"source", s.Source(),
					"user_id", q.UserID,
					"project_id", q.ProjectID,
					"error", err)
			}
			continue
		}
		if ok && rate.IsPositive() {
			return RateResolution{HourlyRate: rate, Source: s.Source()}
		}
	}

	r.logger.Debug("no rate source resolved, using fallback",
		"user_id", q.UserID,
		"project_id", q.ProjectID)
	return FallbackRate()
}

// positiveCents treats a null or zero rate as "no rate here" so the chain
// moves on to the next source.
func positiveCents(cents *int64) (decimal.Decimal, bool) {
	if cents == nil || *cents <= 0 {
		return decimal.Zero, false
	}
	return CentsToDecimal(cents), true
}

type projectMemberStrategy struct{ lookup RateLookup }

func (projectMemberStrategy) Source() RateSource { return SourceProjectMember }

func (s projectMemberStrategy) TryResolve(ctx context.Context, q RateQuery) (decimal.Decimal, bool, error) {
	if !q.HasProject() || q.UserID == "" {
		return decimal.Zero, false, nil
	}
	m, err := s.lookup.GetProjectMember(ctx, q.ProjectID, q.UserID)
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, ok := positiveCents(m.HourlyRateCents)
	return rate, ok, nil
}

type projectStrategy struct{ lookup RateLookup }

func (projectStrategy) Source() RateSource { return SourceProject }

func (s projectStrategy) TryResolve(ctx context.Context, q RateQuery) (decimal.Decimal, bool, error) {
	if !q.HasProject() {
		return decimal.Zero, false, nil
	}
	p, err := s.lookup.GetProject(ctx, q.ProjectID)
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, ok := positiveCents(p.HourlyRateCents)
	return rate, ok, nil
}

type rateRulesStrategy struct{ lookup RateLookup }

func (rateRulesStrategy) Source() RateSource { return SourceRatesTable }

func (s rateRulesStrategy) TryResolve(ctx context.Context, q RateQuery) (decimal.Decimal, bool, error) {
	if q.UserID == "" && !q.HasProject() {
		return decimal.Zero, false, nil
	}
	rules, err := s.lookup.ListActiveRateRules(ctx, q.UserID, q.ProjectID, q.Today)
	if err != nil {
		return decimal.Zero, false, err
	}
	rule := PickRateRule(rules, q.UserID, q.ProjectID, q.Today)
	if rule == nil {
		return decimal.Zero, false, nil
	}
	return rule.HourlyRate(), rule.HourlyRateCents > 0, nil
}

type taskStrategy struct{}

func (taskStrategy) Source() RateSource { return SourceTask }

func (taskStrategy) TryResolve(_ context.Context, q RateQuery) (decimal.Decimal, bool, error) {
	if q.HasProject() || q.Task == nil {
		return decimal.Zero, false, nil
	}
	rate, ok := positiveCents(q.Task.HourlyRateCents)
	return rate, ok, nil
}

type userSettingsStrategy struct{ lookup RateLookup }

func (userSettingsStrategy) Source() RateSource { return SourceUserSettings }

func (s userSettingsStrategy) TryResolve(ctx context.Context, q RateQuery) (decimal.Decimal, bool, error) {
	if q.HasProject() || q.UserID == "" {
		return decimal.Zero, false, nil
	}
	settings, err := s.lookup.GetUserSettings(ctx, q.UserID)
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, ok := positiveCents(settings.DefaultHourlyRateCents)
	return rate, ok, nil
}

// PickRateRule selects the applicable rule: candidates match the user or the
// project and are active on day; they are ordered by is_default then most
// recent valid_from, and the first one owned by the user beats project-only matches.
func PickRateRule(rules []RateRule, userID, projectID string, day time.Time) *RateRule {
	candidates := make([]RateRule, 0, len(rules))
	for _, r := range rules {
		if r.Matches(userID, projectID) && r.ActiveOn(day) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].IsDefault != candidates[j].IsDefault {
			return candidates[i].IsDefault
		}
		return candidates[i].ValidFrom.After(candidates[j].ValidFrom)
	})

	if userID != "" {
		for i := range candidates {
			if candidates[i].UserID == userID {
				return &candidates[i]
			}
		}
	}
	return &candidates[0]
}
