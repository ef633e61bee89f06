package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reneee98/layers/pkg/domain/billing"
)

// FinanceService builds profitability snapshots. It only reads.
type FinanceService struct {
	repo   billing.FinanceReader
	logger *slog.Logger
	now    func() time.Time
}

func NewFinanceService(repo billing.FinanceReader, logger *slog.Logger) *FinanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FinanceService{repo: repo, logger: logger, now: time.Now}
}

// SetClock replaces the wall clock, for tests.
func (s *FinanceService) SetClock(now func() time.Time) {
	s.now = now
}

// ProjectFinance aggregates every task, entry and cost item of a project.
func (s *FinanceService) ProjectFinance(ctx context.Context, projectID string) (*billing.FinanceSnapshot, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	entries, err := s.repo.ListTimeEntriesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load time entries: %w", err)
	}
	costs, err := s.repo.ListCostItemsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost items: %w", err)
	}

	snap := billing.Aggregate(billing.FinanceInput{
		Scope:        billing.ScopeProject,
		ScopeID:      projectID,
		Entries:      entries,
		CostItems:    costs,
		BudgetAmount: billing.ProjectBudgetAmount(tasks),
		GeneratedAt:  s.now().UTC(),
	})
	s.logger.Debug("project finance computed", "project_id", projectID,
		"entries", len(entries), "cost_items", len(costs))
	return &snap, nil
}

// TaskFinance aggregates a single task. External costs only apply to tasks
// that belong to a project.
func (s *FinanceService) TaskFinance(ctx context.Context, taskID string) (*billing.FinanceSnapshot, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListTimeEntriesByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load time entries: %w", err)
	}

	var costs []billing.CostItem
	if task.HasProject() {
		if costs, err = s.repo.ListCostItemsByTask(ctx, taskID); err != nil {
			return nil, fmt.Errorf("failed to load cost items: %w", err)
		}
	}

	snap := billing.Aggregate(billing.FinanceInput{
		Scope:        billing.ScopeTask,
		ScopeID:      taskID,
		Entries:      entries,
		CostItems:    costs,
		BudgetAmount: billing.TaskBudgetAmount(task, entries),
		GeneratedAt:  s.now().UTC(),
	})
	return &snap, nil
}
