package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/domain"
	"github.com/reneee98/layers/pkg/domain/billing"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	d, err := time.Parse(billing.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedTask(t *testing.T, repo *Repository, projectID, taskID string) {
	t.Helper()
	ctx := context.Background()
	if projectID != "" {
		if _, err := repo.GetProject(ctx, projectID); err != nil {
			if err := repo.CreateProject(ctx, &billing.Project{ID: projectID, Name: projectID}); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := repo.CreateTask(ctx, &billing.Task{ID: taskID, ProjectID: projectID, Title: taskID}); err != nil {
		t.Fatal(err)
	}
}

func newEntry(id, taskID, hours string) *billing.TimeEntry {
	return &billing.TimeEntry{
		ID:         id,
		TaskID:     taskID,
		UserID:     "alice",
		Hours:      dec(hours),
		Date:       date("2026-03-02"),
		HourlyRate: dec("50"),
		RateSource: billing.SourceRatesTable,
		Amount:     dec("0"),
		IsBillable: true,
		CreatedAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "layers.db")
	repo, err := Open(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateProject(context.Background(), &billing.Project{ID: "p1", Name: "One"}); err != nil {
		t.Fatal(err)
	}
	_ = repo.Close()

	repo, err = Open(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = repo.Close() }()
	p, err := repo.GetProject(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "One" {
		t.Errorf("expected name One, got %s", p.Name)
	}
}

func TestCatalog_RatesAndLookups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetProject(ctx, "missing"); !errors.Is(err, billing.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := repo.GetTask(ctx, "missing"); !errors.Is(err, billing.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := repo.GetUserSettings(ctx, "nobody"); !errors.Is(err, billing.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	seedTask(t, repo, "p1", "t1")
	if err := repo.SetProjectRate(ctx, "p1", billing.Cents(6000)); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetProjectRate(ctx, "nope", billing.Cents(1)); !errors.Is(err, billing.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if err := repo.SetProjectMember(ctx, &billing.ProjectMember{ProjectID: "p1", UserID: "alice", HourlyRateCents: billing.Cents(9000)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetProjectMember(ctx, &billing.ProjectMember{ProjectID: "p1", UserID: "alice", HourlyRateCents: billing.Cents(9500)}); err != nil {
		t.Fatalf("upsert member: %v", err)
	}
	if err := repo.SaveUserSettings(ctx, &billing.UserSettings{UserID: "alice", DefaultHourlyRateCents: billing.Cents(4000)}); err != nil {
		t.Fatal(err)
	}

	p, _ := repo.GetProject(ctx, "p1")
	if p.HourlyRateCents == nil || *p.HourlyRateCents != 6000 {
		t.Errorf("unexpected project rate %v", p.HourlyRateCents)
	}
	m, err := repo.GetProjectMember(ctx, "p1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if *m.HourlyRateCents != 9500 {
		t.Errorf("expected upserted member rate 9500, got %d", *m.HourlyRateCents)
	}
	s, err := repo.GetUserSettings(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if *s.DefaultHourlyRateCents != 4000 {
		t.Errorf("unexpected default rate %d", *s.DefaultHourlyRateCents)
	}

	if err := repo.SetTaskRate(ctx, "t1", nil); err != nil {
		t.Fatal(err)
	}
	task, _ := repo.GetTask(ctx, "t1")
	if task.HourlyRateCents != nil {
		t.Errorf("expected cleared task rate, got %d", *task.HourlyRateCents)
	}
}

func TestCreateTask_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if err := repo.CreateTask(ctx, &billing.Task{ID: "t1", ProjectID: "ghost"}); !errors.Is(err, billing.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}

	est := dec("7.5")
	due := date("2026-04-01")
	in := &billing.Task{
		ID:              "t1",
		Title:           "Loose task",
		BudgetCents:     billing.Cents(0),
		EstimatedHours:  &est,
		HourlyRateCents: billing.Cents(2500),
		DueDate:         &due,
	}
	if err := repo.CreateTask(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.HasProject() {
		t.Error("task should have no project")
	}
	if got.BudgetCents == nil || *got.BudgetCents != 0 {
		t.Error("zero budget must survive as set, not null")
	}
	if got.EstimatedHours == nil || !got.EstimatedHours.Equal(est) {
		t.Errorf("unexpected estimate %v", got.EstimatedHours)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("unexpected due date %v", got.DueDate)
	}
	if got.Status != "todo" {
		t.Errorf("expected default status todo, got %s", got.Status)
	}
}

func TestListActiveRateRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	to := date("2026-03-10")
	rules := []billing.RateRule{
		{ID: "user-old", UserID: "alice", HourlyRateCents: 5000, ValidFrom: date("2025-01-01")},
		{ID: "user-ends-today", UserID: "alice", HourlyRateCents: 5100, ValidFrom: date("2026-01-01"), ValidTo: &to},
		{ID: "project-default", ProjectID: "p1", HourlyRateCents: 4000, ValidFrom: date("2024-01-01"), IsDefault: true},
		{ID: "future", UserID: "alice", HourlyRateCents: 9000, ValidFrom: date("2026-03-11")},
		{ID: "bob", UserID: "bob", HourlyRateCents: 100, ValidFrom: date("2020-01-01")},
	}
	for i := range rules {
		if err := repo.SaveRateRule(ctx, &rules[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListActiveRateRules(ctx, "alice", "p1", date("2026-03-10"))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	want := []string{"project-default", "user-ends-today", "user-old"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	got, _ = repo.ListActiveRateRules(ctx, "alice", "p1", date("2026-03-11"))
	for _, r := range got {
		if r.ID == "user-ends-today" {
			t.Error("rule should have expired")
		}
	}

	all, err := repo.ListRateRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(rules) {
		t.Errorf("expected %d rules, got %d", len(rules), len(all))
	}
}

func TestTimeEntries_ResumActualHours(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, repo, "p1", "t1")
	seedTask(t, repo, "p1", "t2")

	e1 := newEntry("e1", "t1", "1.5")
	e1.ProjectID = "p1"
	e2 := newEntry("e2", "t1", "0.25")
	e2.ProjectID = "p1"
	for _, e := range []*billing.TimeEntry{e1, e2} {
		if err := repo.CreateTimeEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	assertActual(t, repo, "t1", "1.75")

	e2.Hours = dec("1")
	if err := repo.UpdateTimeEntry(ctx, e2); err != nil {
		t.Fatal(err)
	}
	assertActual(t, repo, "t1", "2.5")

	e2.TaskID = "t2"
	if err := repo.UpdateTimeEntry(ctx, e2); err != nil {
		t.Fatal(err)
	}
	assertActual(t, repo, "t1", "1.5")
	assertActual(t, repo, "t2", "1")

	if err := repo.DeleteTimeEntry(ctx, "e1"); err != nil {
		t.Fatal(err)
	}
	assertActual(t, repo, "t1", "0")

	if err := repo.DeleteTimeEntry(ctx, "e1"); !errors.Is(err, billing.ErrTimeEntryNotFound) {
		t.Errorf("expected ErrTimeEntryNotFound, got %v", err)
	}
	if err := repo.CreateTimeEntry(ctx, newEntry("e3", "ghost", "1")); !errors.Is(err, billing.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}

	byProject, err := repo.ListTimeEntriesByProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byProject) != 1 || byProject[0].ID != "e2" {
		t.Errorf("unexpected project entries %+v", byProject)
	}
	got, err := repo.GetTimeEntry(ctx, "e2")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsBillable || !got.HourlyRate.Equal(dec("50")) || got.RateSource != billing.SourceRatesTable || !got.Date.Equal(date("2026-03-02")) {
		t.Errorf("entry did not round-trip: %+v", got)
	}
}

func TestRecalculateActualHours_RepairsDrift(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, repo, "", "t1")
	if err := repo.CreateTimeEntry(ctx, newEntry("e1", "t1", "2")); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.db.ExecContext(ctx, `UPDATE tasks SET actual_hours = '99' WHERE id = 't1'`); err != nil {
		t.Fatal(err)
	}

	total, err := repo.RecalculateActualHours(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(dec("2")) {
		t.Errorf("expected 2, got %s", total)
	}
	assertActual(t, repo, "t1", "2")
}

func assertActual(t *testing.T, repo *Repository, taskID, want string) {
	t.Helper()
	task, err := repo.GetTask(context.Background(), taskID)
	if err != nil {
		t.Fatal(err)
	}
	if !task.ActualHours.Equal(dec(want)) {
		t.Errorf("task %s actual_hours: expected %s, got %s", taskID, want, task.ActualHours)
	}
}

func TestTimers_FinalizeOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, repo, "", "t1")

	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	timer := &billing.Timer{ID: "tm1", UserID: "alice", TaskID: "t1", StartedAt: started}
	if err := repo.CreateTimer(ctx, timer); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateTimer(ctx, &billing.Timer{ID: "tm2", UserID: "alice", TaskID: "t1", StartedAt: started}); !errors.Is(err, billing.ErrTimerRunning) {
		t.Fatalf("expected ErrTimerRunning, got %v", err)
	}

	open, err := repo.GetOpenTimer(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if open.ID != "tm1" || !open.StartedAt.Equal(started) {
		t.Errorf("unexpected open timer %+v", open)
	}

	stoppedAt := started.Add(90 * time.Minute)
	entry := newEntry("e1", "t1", "1.5")
	entry.TimerID = "tm1"
	won, err := repo.FinalizeTimer(ctx, "tm1", stoppedAt, entry)
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Fatal("first finalize should win")
	}

	second := newEntry("e2", "t1", "1.5")
	second.TimerID = "tm1"
	won, err = repo.FinalizeTimer(ctx, "tm1", stoppedAt.Add(time.Minute), second)
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Fatal("second finalize must lose")
	}

	entries, _ := repo.ListTimeEntriesByTask(ctx, "t1")
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	assertActual(t, repo, "t1", "1.5")

	stopped, _ := repo.GetTimer(ctx, "tm1")
	if stopped.StoppedAt == nil || !stopped.StoppedAt.Equal(stoppedAt) {
		t.Errorf("stopped_at moved: %v", stopped.StoppedAt)
	}
	byTimer, err := repo.GetTimeEntryByTimer(ctx, "tm1")
	if err != nil || byTimer.ID != "e1" {
		t.Errorf("expected entry e1 by timer, got %v %v", byTimer, err)
	}
	if _, err := repo.GetOpenTimer(ctx, "alice"); !errors.Is(err, billing.ErrTimerNotFound) {
		t.Errorf("expected no open timer, got %v", err)
	}
	if _, err := repo.FinalizeTimer(ctx, "nope", stoppedAt, nil); !errors.Is(err, billing.ErrTimerNotFound) {
		t.Errorf("expected ErrTimerNotFound, got %v", err)
	}
}

func TestFinalizeTimer_FailedInsertKeepsTimerRunning(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, repo, "", "t1")
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := repo.CreateTimer(ctx, &billing.Timer{ID: "tm1", UserID: "alice", TaskID: "t1", StartedAt: started}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateTimeEntry(ctx, newEntry("dup", "t1", "1")); err != nil {
		t.Fatal(err)
	}

	entry := newEntry("dup", "t1", "1")
	entry.TimerID = "tm1"
	if _, err := repo.FinalizeTimer(ctx, "tm1", started.Add(time.Hour), entry); err == nil {
		t.Fatal("expected duplicate key failure")
	}
	timer, _ := repo.GetTimer(ctx, "tm1")
	if !timer.IsRunning() {
		t.Error("timer must stay running after a failed finalize")
	}
}

func TestCostItems(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, repo, "p1", "t1")

	items := []billing.CostItem{
		{ID: "c1", ProjectID: "p1", Amount: dec("30"), IsBillable: true, Date: date("2026-03-01")},
		{ID: "c2", ProjectID: "p1", TaskID: "t1", Amount: dec("12.5"), IsBillable: false, Date: date("2026-03-02")},
	}
	for i := range items {
		if err := repo.CreateCostItem(ctx, &items[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.CreateCostItem(ctx, &billing.CostItem{ID: "c3", ProjectID: "ghost", Date: date("2026-03-01")}); !errors.Is(err, billing.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}

	byProject, err := repo.ListCostItemsByProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byProject) != 2 {
		t.Fatalf("expected 2 items, got %d", len(byProject))
	}
	byTask, _ := repo.ListCostItemsByTask(ctx, "t1")
	if len(byTask) != 1 || byTask[0].IsBillable || !byTask[0].Amount.Equal(dec("12.5")) {
		t.Errorf("unexpected task items %+v", byTask)
	}
}

func TestRollOverdueTasks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	past := date("2026-03-01")
	future := date("2026-04-01")
	tasks := []billing.Task{
		{ID: "overdue", DueDate: &past},
		{ID: "done", DueDate: &past, Status: billing.TaskStatusDone},
		{ID: "future", DueDate: &future},
		{ID: "undated"},
	}
	for i := range tasks {
		if err := repo.CreateTask(ctx, &tasks[i]); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.RollOverdueTasks(ctx, date("2026-03-10"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 task rolled, got %d", n)
	}
	got, _ := repo.GetTask(ctx, "overdue")
	if !got.DueDate.Equal(date("2026-03-10")) {
		t.Errorf("expected due date moved to today, got %v", got.DueDate)
	}
	done, _ := repo.GetTask(ctx, "done")
	if !done.DueDate.Equal(past) {
		t.Error("done task must keep its due date")
	}
}

func TestAuditEvents_Chain(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, action := range []string{"billing.time_logged", "billing.timer_stopped"} {
		err := repo.RecordEvent(ctx, domain.Event{
			Action:   action,
			Actor:    "alice",
			Metadata: map[string]interface{}{"n": i, "task_id": "t1"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	events, err := repo.LoadEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].PrevHash != "" || events[1].PrevHash != events[0].Hash {
		t.Error("events are not chained")
	}
	for _, e := range events {
		if e.CalculateHash() != e.Hash {
			t.Errorf("hash of %s does not verify after reload", e.Action)
		}
	}
}

func TestRatesFile_RoundTrip(t *testing.T) {
	path := RatesFilePath(t.TempDir())

	if _, err := LoadRatesFile(path); !errors.Is(err, billing.ErrRatesFileNotFound) {
		t.Fatalf("expected ErrRatesFileNotFound for a missing file, got %v", err)
	}

	to := date("2026-12-31")
	doc := &RatesDocument{Currency: "EUR"}
	doc.Rules = []billing.RateRule{
		{ID: "r1", Name: "Senior", UserID: "alice", HourlyRateCents: 8000, ValidFrom: date("2026-01-01"), ValidTo: &to, IsDefault: true},
	}
	if err := SaveRatesFile(path, doc); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadRatesFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(loaded.Rules))
	}
	r := loaded.Rules[0]
	if r.ID != "r1" || !r.IsDefault || r.HourlyRateCents != 8000 || !r.ValidFrom.Equal(date("2026-01-01")) {
		t.Errorf("rule did not round-trip: %+v", r)
	}
	if r.ValidTo == nil || !r.ValidTo.Equal(to) {
		t.Errorf("valid_to did not round-trip: %v", r.ValidTo)
	}
}
