package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reneee98/layers/pkg/domain/billing"
)

const taskColumns = `id, project_id, title, status, budget_cents, estimated_hours, actual_hours, hourly_rate_cents, due_date`

func (r *Repository) CreateProject(ctx context.Context, p *billing.Project) error {
	if p.ID == "" {
		return billing.NewValidationError("id", "must not be empty")
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO projects (id, name, hourly_rate_cents) VALUES (?, ?, ?)`),
		p.ID, p.Name, nullCents(p.HourlyRateCents))
	if err != nil {
		return fmt.Errorf("failed to create project %s: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (*billing.Project, error) {
	row, err := getOne[projectRow](ctx, r, `SELECT id, name, hourly_rate_cents FROM projects WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", billing.ErrProjectNotFound, id)
	}
	return row.toDomain(), nil
}

func (r *Repository) SetProjectRate(ctx context.Context, projectID string, cents *int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE projects SET hourly_rate_cents = ? WHERE id = ?`), nullCents(cents), projectID)
	if err != nil {
		return fmt.Errorf("failed to set project rate: %w", err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("%w: %s", billing.ErrProjectNotFound, projectID)
	}
	return nil
}

func (r *Repository) GetProjectMember(ctx context.Context, projectID, userID string) (*billing.ProjectMember, error) {
	row, err := getOne[memberRow](ctx, r,
		`SELECT project_id, user_id, hourly_rate_cents FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read project member: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("project member %s/%s %w", projectID, userID, billing.ErrNotFound)
	}
	return &billing.ProjectMember{
		ProjectID:       row.ProjectID,
		UserID:          row.UserID,
		HourlyRateCents: centsPtr(row.HourlyRateCents),
	}, nil
}

func (r *Repository) SetProjectMember(ctx context.Context, m *billing.ProjectMember) error {
	if _, err := r.GetProject(ctx, m.ProjectID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO project_members (project_id, user_id, hourly_rate_cents) VALUES (?, ?, ?)
		ON CONFLICT (project_id, user_id) DO UPDATE SET hourly_rate_cents = excluded.hourly_rate_cents`),
		m.ProjectID, m.UserID, nullCents(m.HourlyRateCents))
	if err != nil {
		return fmt.Errorf("failed to save project member: %w", err)
	}
	return nil
}

func (r *Repository) CreateTask(ctx context.Context, t *billing.Task) error {
	if t.ID == "" {
		return billing.NewValidationError("id", "must not be empty")
	}
	if t.HasProject() {
		if _, err := r.GetProject(ctx, t.ProjectID); err != nil {
			return err
		}
	}
	status := t.Status
	if status == "" {
		status = "todo"
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, nullString(t.ProjectID), t.Title, status, nullCents(t.BudgetCents),
		nullDecimal(t.EstimatedHours), t.ActualHours.String(), nullCents(t.HourlyRateCents), nullDate(t.DueDate))
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", t.ID, err)
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (*billing.Task, error) {
	row, err := getOne[taskRow](ctx, r, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", id, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", billing.ErrTaskNotFound, id)
	}
	return row.toDomain()
}

func (r *Repository) ListTasksByProject(ctx context.Context, projectID string) ([]billing.Task, error) {
	rows, err := selectAll[taskRow](ctx, r, `SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]billing.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (r *Repository) SetTaskRate(ctx context.Context, taskID string, cents *int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE tasks SET hourly_rate_cents = ? WHERE id = ?`), nullCents(cents), taskID)
	if err != nil {
		return fmt.Errorf("failed to set task rate: %w", err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("%w: %s", billing.ErrTaskNotFound, taskID)
	}
	return nil
}

func (r *Repository) GetUserSettings(ctx context.Context, userID string) (*billing.UserSettings, error) {
	type settingsRow struct {
		UserID string        `db:"user_id"`
		Cents  sql.NullInt64 `db:"default_hourly_rate_cents"`
	}
	row, err := getOne[settingsRow](ctx, r, `SELECT user_id, default_hourly_rate_cents FROM user_settings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read user settings: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("user settings for %s %w", userID, billing.ErrNotFound)
	}
	return &billing.UserSettings{UserID: row.UserID, DefaultHourlyRateCents: centsPtr(row.Cents)}, nil
}

func (r *Repository) SaveUserSettings(ctx context.Context, s *billing.UserSettings) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO user_settings (user_id, default_hourly_rate_cents) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET default_hourly_rate_cents = excluded.default_hourly_rate_cents`),
		s.UserID, nullCents(s.DefaultHourlyRateCents))
	if err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}

const rateRuleColumns = `id, name, user_id, project_id, hourly_rate_cents, valid_from, valid_to, is_default`

func (r *Repository) SaveRateRule(ctx context.Context, rule *billing.RateRule) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO rate_rules (`+rateRuleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			hourly_rate_cents = excluded.hourly_rate_cents,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to,
			is_default = excluded.is_default`),
		rule.ID, rule.Name, nullString(rule.UserID), nullString(rule.ProjectID), rule.HourlyRateCents,
		rule.ValidFrom.Format(billing.DateLayout), nullDate(rule.ValidTo), boolInt(rule.IsDefault))
	if err != nil {
		return fmt.Errorf("failed to save rate rule %s: %w", rule.ID, err)
	}
	return nil
}

func (r *Repository) ListRateRules(ctx context.Context) ([]billing.RateRule, error) {
	rows, err := selectAll[rateRuleRow](ctx, r, `SELECT `+rateRuleColumns+` FROM rate_rules ORDER BY is_default DESC, valid_from DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate rules: %w", err)
	}
	return rateRulesFromRows(rows)
}

func (r *Repository) ListActiveRateRules(ctx context.Context, userID, projectID string, day time.Time) ([]billing.RateRule, error) {
	d := billing.DateOf(day).Format(billing.DateLayout)
	rows, err := selectAll[rateRuleRow](ctx, r, `
		SELECT `+rateRuleColumns+` FROM rate_rules
		WHERE (user_id = ? OR project_id = ?)
		  AND valid_from <= ?
		  AND (valid_to IS NULL OR valid_to >= ?)
		ORDER BY is_default DESC, valid_from DESC, id`,
		userID, projectID, d, d)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rate rules: %w", err)
	}
	return rateRulesFromRows(rows)
}

func rateRulesFromRows(rows []rateRuleRow) ([]billing.RateRule, error) {
	rules := make([]billing.RateRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *Repository) CreateCostItem(ctx context.Context, c *billing.CostItem) error {
	if _, err := r.GetProject(ctx, c.ProjectID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO cost_items (id, project_id, task_id, description, amount, is_billable, item_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.ProjectID, nullString(c.TaskID), c.Description, billing.RoundAmount(c.Amount).String(),
		boolInt(c.IsBillable), c.Date.Format(billing.DateLayout))
	if err != nil {
		return fmt.Errorf("failed to create cost item %s: %w", c.ID, err)
	}
	return nil
}

func (r *Repository) RollOverdueTasks(ctx context.Context, today time.Time) (int64, error) {
	d := billing.DateOf(today).Format(billing.DateLayout)
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE tasks SET due_date = ?
		WHERE due_date IS NOT NULL AND due_date < ? AND status <> ?`),
		d, d, billing.TaskStatusDone)
	if err != nil {
		return 0, fmt.Errorf("failed to roll overdue tasks: %w", err)
	}
	return affected(res), nil
}
