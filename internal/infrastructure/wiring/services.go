package wiring

import (
	"context"
	"time"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

// AppServices exposes the application layer services wired together with a workspace.
type AppServices struct {
	Workspace    *Workspace
	Resolver     *billing.RateResolver
	Billing      *application.BillingService
	Timers       *application.TimerService
	Finance      *application.FinanceService
	Rates        *application.RateService
	Catalog      *application.CatalogService
	Housekeeping *application.HousekeepingService
	Audit        *application.AuditService
}

// BuildAppServices opens the workspace at root and constructs the service graph.
func BuildAppServices(ctx context.Context, root string) (*AppServices, error) {
	workspace, err := NewWorkspace(ctx, root)
	if err != nil {
		return nil, err
	}
	return NewAppServices(workspace, time.Now), nil
}

// NewAppServices wires services over an already opened workspace. now is the
// clock every service reads.
func NewAppServices(workspace *Workspace, now func() time.Time) *AppServices {
	repo := workspace.Repo
	logger := workspace.Logger
	resolver := billing.NewRateResolver(repo, now, logger)

	billingSvc := application.NewBillingService(repo, resolver, workspace.Audit, logger)
	billingSvc.SetClock(now)
	timerSvc := application.NewTimerService(repo, resolver, workspace.Audit, logger)
	timerSvc.SetClock(now)
	financeSvc := application.NewFinanceService(repo, logger)
	financeSvc.SetClock(now)
	housekeeping := application.NewHousekeepingService(repo, logger)
	housekeeping.SetClock(now)

	return &AppServices{
		Workspace:    workspace,
		Resolver:     resolver,
		Billing:      billingSvc,
		Timers:       timerSvc,
		Finance:      financeSvc,
		Rates:        application.NewRateService(repo, resolver, workspace.Audit, logger),
		Catalog:      application.NewCatalogService(repo, workspace.Audit),
		Housekeeping: housekeeping,
		Audit:        workspace.Audit,
	}
}

// Close releases the workspace.
func (s *AppServices) Close() error {
	return s.Workspace.Close()
}
