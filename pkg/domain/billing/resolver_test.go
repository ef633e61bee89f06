package billing

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLookup struct {
	tasks    map[string]*Task
	projects map[string]*Project
	members  map[string]*ProjectMember
	rules    []RateRule
	settings map[string]*UserSettings
	fail     error
}

func (f *fakeLookup) GetTask(_ context.Context, id string) (*Task, error) {
	if t, ok := f.tasks[id]; ok {
		return t, nil
	}
	return nil, ErrTaskNotFound
}

func (f *fakeLookup) GetProject(_ context.Context, id string) (*Project, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if p, ok := f.projects[id]; ok {
		return p, nil
	}
	return nil, ErrProjectNotFound
}

func (f *fakeLookup) GetProjectMember(_ context.Context, projectID, userID string) (*ProjectMember, error) {
	if m, ok := f.members[projectID+"/"+userID]; ok {
		return m, nil
	}
	return nil, ErrNotFound
}

func (f *fakeLookup) ListActiveRateRules(_ context.Context, userID, projectID string, day time.Time) ([]RateRule, error) {
	return f.rules, nil
}

func (f *fakeLookup) GetUserSettings(_ context.Context, userID string) (*UserSettings, error) {
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

var today = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func dayPtr(s string) *time.Time {
	d := day(s)
	return &d
}

func newTestResolver(l *fakeLookup) *RateResolver {
	return NewRateResolver(l, func() time.Time { return today }, nil)
}

func TestRateResolver_Order(t *testing.T) {
	base := func() *fakeLookup {
		return &fakeLookup{
			tasks: map[string]*Task{
				"in-project": {ID: "in-project", ProjectID: "p1", HourlyRateCents: Cents(1000)},
				"loose":      {ID: "loose", HourlyRateCents: Cents(2000)},
				"bare":       {ID: "bare"},
			},
			projects: map[string]*Project{
				"p1": {ID: "p1", HourlyRateCents: Cents(6000)},
				"p2": {ID: "p2"},
			},
			members: map[string]*ProjectMember{
				"p1/alice": {ProjectID: "p1", UserID: "alice", HourlyRateCents: Cents(9000)},
			},
			settings: map[string]*UserSettings{
				"alice": {UserID: "alice", DefaultHourlyRateCents: Cents(4000)},
			},
		}
	}

	tests := []struct {
		name       string
		mutate     func(*fakeLookup)
		user       string
		rc         RateContext
		wantRate   string
		wantSource RateSource
	}{
		{name: "member rate first", user: "alice", rc: RateContext{TaskID: "in-project"}, wantRate: "90", wantSource: SourceProjectMember},
		{name: "project rate for non-member", user: "bob", rc: RateContext{ProjectID: "p1"}, wantRate: "60", wantSource: SourceProject},
		{
			name: "rates table when project has no rate",
			user: "bob",
			rc:   RateContext{ProjectID: "p2"},
			mutate: func(l *fakeLookup) {
				l.rules = []RateRule{{ID: "r1", ProjectID: "p2", HourlyRateCents: 7000, ValidFrom: day("2026-01-01")}}
			},
			wantRate: "70", wantSource: SourceRatesTable,
		},
		{name: "task override without project", user: "alice", rc: RateContext{TaskID: "loose"}, wantRate: "20", wantSource: SourceTask},
		{name: "user settings without project", user: "alice", rc: RateContext{TaskID: "bare"}, wantRate: "40", wantSource: SourceUserSettings},
		{name: "fallback", user: "carol", rc: RateContext{TaskID: "bare"}, wantRate: "0", wantSource: SourceFallback},
		{name: "project without rate and no rules falls back", user: "carol", rc: RateContext{ProjectID: "p2"}, wantRate: "0", wantSource: SourceFallback},
		{name: "user settings ignored inside a project", user: "alice", rc: RateContext{ProjectID: "p2"}, wantRate: "0", wantSource: SourceFallback},
		{name: "unknown task falls back", user: "carol", rc: RateContext{TaskID: "missing"}, wantRate: "0", wantSource: SourceFallback},
		{
			name: "zero member rate is skipped",
			user: "alice",
			rc:   RateContext{ProjectID: "p1"},
			mutate: func(l *fakeLookup) {
				l.members["p1/alice"].HourlyRateCents = Cents(0)
			},
			wantRate: "60", wantSource: SourceProject,
		},
		{
			name: "zero project rate falls through to rules",
			user: "bob",
			rc:   RateContext{ProjectID: "p1"},
			mutate: func(l *fakeLookup) {
				l.projects["p1"].HourlyRateCents = Cents(0)
				l.rules = []RateRule{{ID: "r1", ProjectID: "p1", HourlyRateCents: 4500, ValidFrom: day("2026-01-01")}}
			},
			wantRate: "45", wantSource: SourceRatesTable,
		},
		{
			name: "rules before task override",
			user: "alice",
			rc:   RateContext{TaskID: "loose"},
			mutate: func(l *fakeLookup) {
				l.rules = []RateRule{{ID: "r1", UserID: "alice", HourlyRateCents: 5500, ValidFrom: day("2026-01-01")}}
			},
			wantRate: "55", wantSource: SourceRatesTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := base()
			if tt.mutate != nil {
				tt.mutate(l)
			}
			got := newTestResolver(l).Resolve(context.Background(), tt.user, tt.rc)
			if got.Source != tt.wantSource {
				t.Errorf("expected source %s, got %s", tt.wantSource, got.Source)
			}
			if !got.HourlyRate.Equal(dec(tt.wantRate)) {
				t.Errorf("expected rate %s, got %s", tt.wantRate, got.HourlyRate)
			}
		})
	}
}

func TestRateResolver_LookupErrorDegrades(t *testing.T) {
	l := &fakeLookup{fail: errors.New("connection reset")}
	got := newTestResolver(l).Resolve(context.Background(), "alice", RateContext{ProjectID: "p1"})
	if !got.IsFallback() {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestPickRateRule(t *testing.T) {
	rules := []RateRule{
		{ID: "project-old", ProjectID: "p1", HourlyRateCents: 5000, ValidFrom: day("2025-01-01")},
		{ID: "project-new", ProjectID: "p1", HourlyRateCents: 5500, ValidFrom: day("2026-01-01")},
		{ID: "user", UserID: "alice", HourlyRateCents: 8000, ValidFrom: day("2025-06-01")},
		{ID: "expired", UserID: "alice", HourlyRateCents: 9900, ValidFrom: day("2024-01-01"), ValidTo: dayPtr("2024-12-31"), IsDefault: true},
		{ID: "future", UserID: "alice", HourlyRateCents: 9900, ValidFrom: day("2027-01-01")},
		{ID: "other", UserID: "bob", HourlyRateCents: 100, ValidFrom: day("2020-01-01"), IsDefault: true},
	}

	tests := []struct {
		name    string
		rules   []RateRule
		user    string
		project string
		wantID  string
	}{
		{name: "user match preferred", rules: rules, user: "alice", project: "p1", wantID: "user"},
		{name: "latest project rule", rules: rules, user: "carol", project: "p1", wantID: "project-new"},
		{
			name: "default beats recency",
			rules: append([]RateRule{
				{ID: "project-default", ProjectID: "p1", HourlyRateCents: 4000, ValidFrom: day("2024-01-01"), IsDefault: true},
			}, rules...),
			user: "carol", project: "p1", wantID: "project-default",
		},
		{
			name: "window ending today still applies",
			rules: []RateRule{
				{ID: "ends-today", UserID: "dave", HourlyRateCents: 100, ValidFrom: day("2026-01-01"), ValidTo: dayPtr("2026-03-10")},
			},
			user: "dave", wantID: "ends-today",
		},
		{name: "no candidates", rules: rules, user: "carol", project: "p9", wantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickRateRule(tt.rules, tt.user, tt.project, today)
			if tt.wantID == "" {
				if got != nil {
					t.Fatalf("expected no rule, got %s", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected rule %s, got none", tt.wantID)
			}
			if got.ID != tt.wantID {
				t.Errorf("expected rule %s, got %s", tt.wantID, got.ID)
			}
		})
	}
}

func TestNewRateRule(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		project string
		cents   int64
		from    time.Time
		to      *time.Time
		wantErr bool
	}{
		{name: "user scoped", user: "alice", cents: 5000, from: day("2026-01-01")},
		{name: "project scoped", project: "p1", cents: 5000, from: day("2026-01-01"), to: dayPtr("2026-12-31")},
		{name: "no scope", cents: 5000, from: day("2026-01-01"), wantErr: true},
		{name: "negative rate", user: "alice", cents: -1, from: day("2026-01-01"), wantErr: true},
		{name: "missing start", user: "alice", cents: 5000, wantErr: true},
		{name: "inverted window", user: "alice", cents: 5000, from: day("2026-02-01"), to: dayPtr("2026-01-01"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRateRule("r1", "Rule", tt.user, tt.project, tt.cents, tt.from, tt.to, false)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
