package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/pkg/domain"
	"github.com/reneee98/layers/pkg/domain/billing"
)

// CatalogService maintains the projects, tasks and cost items that billing reads.
type CatalogService struct {
	repo  billing.Repository
	audit domain.AuditLogger
}

func NewCatalogService(repo billing.Repository, audit domain.AuditLogger) *CatalogService {
	return &CatalogService{repo: repo, audit: audit}
}

// AddProject creates a project with an optional default rate.
func (s *CatalogService) AddProject(ctx context.Context, actor, id, name string, rate *decimal.Decimal) (*billing.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, billing.NewValidationError("name", "must not be empty")
	}
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}
	p := &billing.Project{ID: id, Name: name, HourlyRateCents: toCents(rate)}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	_ = s.audit.Log(domain.ActionProjectCreated, actorOf(actor), map[string]interface{}{"project_id": id})
	return p, nil
}

func (s *CatalogService) GetProject(ctx context.Context, id string) (*billing.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// AddTaskInput describes a task. Budget and rate are currency units.
type AddTaskInput struct {
	ID             string
	ProjectID      string
	Title          string
	Budget         *decimal.Decimal
	EstimatedHours *decimal.Decimal
	HourlyRate     *decimal.Decimal
	DueDate        string
}

func (s *CatalogService) AddTask(ctx context.Context, actor string, in AddTaskInput) (*billing.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, billing.NewValidationError("title", "must not be empty")
	}
	if err := checkRate(in.HourlyRate); err != nil {
		return nil, err
	}
	if in.Budget != nil && in.Budget.IsNegative() {
		return nil, billing.NewValidationError("budget", "must be >= 0")
	}
	if in.EstimatedHours != nil && in.EstimatedHours.IsNegative() {
		return nil, billing.NewValidationError("estimated_hours", "must be >= 0")
	}

	var due *time.Time
	if in.DueDate != "" {
		d, err := billing.ParseDate("due_date", in.DueDate)
		if err != nil {
			return nil, err
		}
		due = &d
	}
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}

	t := &billing.Task{
		ID:              id,
		ProjectID:       in.ProjectID,
		Title:           in.Title,
		Status:          "todo",
		BudgetCents:     toCents(in.Budget),
		EstimatedHours:  in.EstimatedHours,
		ActualHours:     decimal.Zero,
		HourlyRateCents: toCents(in.HourlyRate),
		DueDate:         due,
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	_ = s.audit.Log(domain.ActionTaskCreated, actorOf(actor), map[string]interface{}{
		"task_id":    id,
		"project_id": in.ProjectID,
	})
	return t, nil
}

func (s *CatalogService) GetTask(ctx context.Context, id string) (*billing.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// AddCostItemInput describes an external expense.
type AddCostItemInput struct {
	ProjectID   string
	TaskID      string
	Description string
	Amount      decimal.Decimal
	NonBillable bool
	Date        string
}

func (s *CatalogService) AddCostItem(ctx context.Context, actor string, in AddCostItemInput) (*billing.CostItem, error) {
	if in.Amount.IsNegative() {
		return nil, billing.NewValidationError("amount", "must be >= 0")
	}
	date, err := billing.ParseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	if in.TaskID != "" {
		task, err := s.repo.GetTask(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		if task.ProjectID != in.ProjectID {
			return nil, billing.NewValidationError("task_id", "task does not belong to the project")
		}
	}

	item := &billing.CostItem{
		ID:          uuid.New().String(),
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		Description: in.Description,
		Amount:      billing.RoundAmount(in.Amount),
		IsBillable:  !in.NonBillable,
		Date:        date,
	}
	if err := s.repo.CreateCostItem(ctx, item); err != nil {
		return nil, err
	}
	_ = s.audit.Log(domain.ActionCostAdded, actorOf(actor), map[string]interface{}{
		"cost_id":    item.ID,
		"project_id": item.ProjectID,
		"amount":     item.Amount.String(),
	})
	return item, nil
}
