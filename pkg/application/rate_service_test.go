package application_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

func TestRateService_ResolutionChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "p1", nil)
	env.addTask(t, application.AddTaskInput{ID: "t1", ProjectID: "p1", HourlyRate: decPtr("10")})

	steps := []struct {
		name       string
		apply      func() error
		wantRate   string
		wantSource billing.RateSource
	}{
		{
			name:       "nothing configured",
			apply:      func() error { return nil },
			wantRate:   "0",
			wantSource: billing.SourceFallback,
		},
		{
			name:       "user setting ignored inside a project",
			apply:      func() error { return env.rates.SetUserRate(ctx, "admin", "alice", decPtr("35")) },
			wantRate:   "0",
			wantSource: billing.SourceFallback,
		},
		{
			name: "rate rule",
			apply: func() error {
				_, err := env.rates.AddRule(ctx, "admin", application.AddRateRuleInput{
					Name: "Project rate", ProjectID: "p1", HourlyRate: dec("55"), ValidFrom: "2026-01-01",
				})
				return err
			},
			wantRate:   "55",
			wantSource: billing.SourceRatesTable,
		},
		{
			name:       "project default",
			apply:      func() error { return env.rates.SetProjectRate(ctx, "admin", "p1", decPtr("60")) },
			wantRate:   "60",
			wantSource: billing.SourceProject,
		},
		{
			name:       "member rate",
			apply:      func() error { return env.rates.SetMemberRate(ctx, "admin", "p1", "alice", decPtr("90")) },
			wantRate:   "90",
			wantSource: billing.SourceProjectMember,
		},
	}

	for _, step := range steps {
		if err := step.apply(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got := env.rates.Resolve(ctx, "alice", billing.RateContext{TaskID: "t1"})
		if got.Source != step.wantSource || !got.HourlyRate.Equal(dec(step.wantRate)) {
			t.Errorf("%s: expected %s from %s, got %s from %s", step.name, step.wantRate, step.wantSource, got.HourlyRate, got.Source)
		}
	}
}

func TestRateService_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "p1", nil)

	if err := env.rates.SetProjectRate(ctx, "admin", "p1", decPtr("-1")); !errors.Is(err, billing.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := env.rates.SetProjectRate(ctx, "admin", "ghost", decPtr("10")); !errors.Is(err, billing.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if err := env.rates.SetMemberRate(ctx, "admin", "ghost", "alice", nil); !errors.Is(err, billing.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := env.rates.AddRule(ctx, "admin", application.AddRateRuleInput{HourlyRate: dec("10"), ValidFrom: "2026-01-01"}); !errors.Is(err, billing.ErrValidation) {
		t.Errorf("rule without scope should fail validation, got %v", err)
	}
	if _, err := env.rates.AddRule(ctx, "admin", application.AddRateRuleInput{UserID: "alice", HourlyRate: dec("10"), ValidFrom: "yesterday"}); !errors.Is(err, billing.ErrValidation) {
		t.Errorf("malformed date should fail validation, got %v", err)
	}
}

func TestRateService_SyncAndExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")

	content := `currency: EUR
rules:
  - id: senior
    name: Senior
    user_id: alice
    hourly_rate_cents: 8000
    valid_from: 2026-01-01
  - id: agency
    name: Agency default
    project_id: p1
    hourly_rate_cents: 6500
    valid_from: 2025-01-01
    valid_to: 2026-12-31
    default: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := env.rates.SyncRulesFromFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rules synced, got %d", n)
	}
	// Syncing twice upserts instead of duplicating.
	if _, err := env.rates.SyncRulesFromFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	rules, err := env.rates.ListRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 || rules[0].ID != "agency" {
		t.Errorf("unexpected rules %+v", rules)
	}

	got := env.rates.Resolve(ctx, "alice", billing.RateContext{})
	if got.Source != billing.SourceRatesTable || !got.HourlyRate.Equal(dec("80")) {
		t.Errorf("expected senior rule, got %s from %s", got.HourlyRate, got.Source)
	}

	out := filepath.Join(dir, "export", "rates.yaml")
	if n, err := env.rates.ExportRulesToFile(ctx, out, "EUR"); err != nil || n != 2 {
		t.Fatalf("export: %d %v", n, err)
	}
	if n, err := env.rates.SyncRulesFromFile(ctx, out); err != nil || n != 2 {
		t.Errorf("exported file should sync back: %d %v", n, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules:\n  - id: x\n    hourly_rate_cents: 100\n    valid_from: 2026-01-01\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.rates.SyncRulesFromFile(ctx, bad); !errors.Is(err, billing.ErrValidation) {
		t.Errorf("unscoped rule should be rejected, got %v", err)
	}

	if n, err := env.rates.SyncRulesFromFile(ctx, filepath.Join(dir, "typo.yaml")); !errors.Is(err, billing.ErrRatesFileNotFound) || n != 0 {
		t.Errorf("missing file should fail with ErrRatesFileNotFound, got %d %v", n, err)
	}
}
