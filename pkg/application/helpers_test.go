package application_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
	"github.com/reneee98/layers/pkg/storage"
)

// mockAuditLogger records audit events for test assertions.
type mockAuditLogger struct {
	mu     sync.Mutex
	Events []auditEvent
}

type auditEvent struct {
	Action   string
	Actor    string
	Metadata map[string]interface{}
}

func (m *mockAuditLogger) Log(action string, actor string, metadata map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, auditEvent{Action: action, Actor: actor, Metadata: metadata})
	return nil
}

func (m *mockAuditLogger) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Action)
	}
	return out
}

// clock is a settable test clock.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repo      *storage.Repository
	audit     *mockAuditLogger
	clock     *clock
	billing   *application.BillingService
	timers    *application.TimerService
	finance   *application.FinanceService
	rates     *application.RateService
	catalog   *application.CatalogService
	housekeep *application.HousekeepingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "layers.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	c := &clock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	audit := &mockAuditLogger{}
	resolver := billing.NewRateResolver(repo, c.Now, nil)

	env := &testEnv{
		repo:      repo,
		audit:     audit,
		clock:     c,
		billing:   application.NewBillingService(repo, resolver, audit, nil),
		timers:    application.NewTimerService(repo, resolver, audit, nil),
		finance:   application.NewFinanceService(repo, nil),
		rates:     application.NewRateService(repo, resolver, audit, nil),
		catalog:   application.NewCatalogService(repo, audit),
		housekeep: application.NewHousekeepingService(repo, nil),
	}
	env.billing.SetClock(c.Now)
	env.timers.SetClock(c.Now)
	env.finance.SetClock(c.Now)
	env.housekeep.SetClock(c.Now)
	return env
}

func (e *testEnv) addProject(t *testing.T, id string, rate *decimal.Decimal) {
	t.Helper()
	if _, err := e.catalog.AddProject(context.Background(), "alice", id, id, rate); err != nil {
		t.Fatalf("add project: %v", err)
	}
}

func (e *testEnv) addTask(t *testing.T, in application.AddTaskInput) {
	t.Helper()
	if in.Title == "" {
		in.Title = in.ID
	}
	if _, err := e.catalog.AddTask(context.Background(), "alice", in); err != nil {
		t.Fatalf("add task: %v", err)
	}
}

func (e *testEnv) task(t *testing.T, id string) *billing.Task {
	t.Helper()
	task, err := e.repo.GetTask(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
