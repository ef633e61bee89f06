package storage

import (
	"context"
	"fmt"

	"github.com/reneee98/layers/pkg/domain/billing"
)

const costItemColumns = `id, project_id, task_id, description, amount, is_billable, item_date`

func (r *Repository) ListCostItemsByProject(ctx context.Context, projectID string) ([]billing.CostItem, error) {
	return r.listCostItems(ctx, `project_id = ?`, projectID)
}

func (r *Repository) ListCostItemsByTask(ctx context.Context, taskID string) ([]billing.CostItem, error) {
	return r.listCostItems(ctx, `task_id = ?`, taskID)
}

func (r *Repository) listCostItems(ctx context.Context, where, arg string) ([]billing.CostItem, error) {
	rows, err := selectAll[costItemRow](ctx, r,
		`SELECT `+costItemColumns+` FROM cost_items WHERE `+where+` ORDER BY item_date, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost items: %w", err)
	}
	items := make([]billing.CostItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
