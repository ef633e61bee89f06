package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/shopspring/decimal"

	"github.com/reneee98/layers/internal/infrastructure/wiring"
	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

type Server struct {
	mcpServer *mcp.Server
	services  *wiring.AppServices
	user      string
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted; only the friendly message is returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// NewServer opens the workspace at root and registers the billing tools.
func NewServer(ctx context.Context, root string) (*Server, error) {
	services, err := wiring.BuildAppServices(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	return NewServerWithServices(services), nil
}

// NewServerWithServices registers tools over an existing service graph.
func NewServerWithServices(services *wiring.AppServices) *Server {
	info := mcp.ServerInfo{
		Name:    "layers",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("Layers Billing MCP Server"),
			mcp.WithDescription("Layers exposes rate resolution, time tracking and project finance to MCP clients."),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Use tools to log time, run timers, resolve hourly rates and read budget and finance snapshots. Money values are decimal strings."),
		),
		services: services,
		user:     services.Workspace.Config.User,
	}

	s.registerTools()
	s.registerSchemaResource()
	return s
}

// Close releases the workspace behind the server.
func (s *Server) Close() error {
	return s.services.Close()
}

type ResolveRateArgs struct {
	UserID    string `json:"user_id,omitempty" jsonschema:"description=User to resolve for (default: configured user)"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"description=Project the work belongs to"`
	TaskID    string `json:"task_id,omitempty" jsonschema:"description=Task the work belongs to"`
}

type LogTimeArgs struct {
	TaskID      string `json:"task_id" jsonschema:"description=Task to log time on"`
	UserID      string `json:"user_id,omitempty" jsonschema:"description=User who did the work (default: configured user)"`
	Hours       string `json:"hours" jsonschema:"description=Hours worked as a decimal string, e.g. 1.5"`
	Date        string `json:"date" jsonschema:"description=Work date (YYYY-MM-DD)"`
	Description string `json:"description,omitempty" jsonschema:"description=What was done"`
	NonBillable bool   `json:"non_billable,omitempty" jsonschema:"description=Exclude the entry from labor cost"`
	HourlyRate  string `json:"hourly_rate,omitempty" jsonschema:"description=Explicit hourly rate; resolved when omitted"`
}

type EditTimeEntryArgs struct {
	ID          string `json:"id" jsonschema:"description=Time entry ID"`
	UserID      string `json:"user_id,omitempty" jsonschema:"description=Acting user (default: configured user)"`
	Hours       string `json:"hours,omitempty" jsonschema:"description=New hours"`
	Date        string `json:"date,omitempty" jsonschema:"description=New work date (YYYY-MM-DD)"`
	Description string `json:"description,omitempty" jsonschema:"description=New description"`
	HourlyRate  string `json:"hourly_rate,omitempty" jsonschema:"description=New explicit hourly rate"`
	ResolveRate bool   `json:"resolve_rate,omitempty" jsonschema:"description=Re-resolve the hourly rate instead of keeping the stored one"`
}

type EntryArgs struct {
	ID     string `json:"id" jsonschema:"description=Time entry ID"`
	UserID string `json:"user_id,omitempty" jsonschema:"description=Acting user (default: configured user)"`
}

type TaskArgs struct {
	TaskID string `json:"task_id" jsonschema:"description=Task ID"`
	UserID string `json:"user_id,omitempty" jsonschema:"description=User whose rate applies (default: configured user)"`
}

type StartTimerArgs struct {
	TaskID string `json:"task_id" jsonschema:"description=Task to time"`
	UserID string `json:"user_id,omitempty" jsonschema:"description=User running the timer (default: configured user)"`
}

type StopTimerArgs struct {
	UserID      string `json:"user_id,omitempty" jsonschema:"description=User whose open timer to stop (default: configured user)"`
	TimerID     string `json:"timer_id,omitempty" jsonschema:"description=Specific timer to stop; repeated stops are idempotent"`
	Description string `json:"description,omitempty" jsonschema:"description=Description for the created entry"`
}

type ProjectArgs struct {
	ProjectID string `json:"project_id" jsonschema:"description=Project ID"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("layers_resolve_rate").
		Description("Resolve the hourly rate for a user in a project or task context, with its source").
		Handler(s.handleResolveRate)

	s.mcpServer.Tool("layers_list_rate_rules").
		Description("List every configured rate rule").
		Handler(s.handleListRateRules)

	s.mcpServer.Tool("layers_log_time").
		Description("Log a manual time entry; the amount is priced against the task's estimate ceiling").
		Handler(s.handleLogTime)

	s.mcpServer.Tool("layers_edit_time_entry").
		Description("Edit a time entry and re-price it").
		Handler(s.handleEditTimeEntry)

	s.mcpServer.Tool("layers_delete_time_entry").
		Description("Delete a time entry and refresh the task's actual hours").
		Handler(s.handleDeleteTimeEntry)

	s.mcpServer.Tool("layers_list_time_entries").
		Description("List the time entries logged on a task").
		Handler(s.handleListTimeEntries)

	s.mcpServer.Tool("layers_start_timer").
		Description("Start a timer on a task").
		Handler(s.handleStartTimer)

	s.mcpServer.Tool("layers_stop_timer").
		Description("Stop a running timer and turn it into exactly one time entry").
		Handler(s.handleStopTimer)

	s.mcpServer.Tool("layers_budget_status").
		Description("Report a task's budget ceiling, spend and remaining hours").
		Handler(s.handleBudgetStatus)

	s.mcpServer.Tool("layers_project_finance").
		Description("Aggregate labor cost, external cost, budget and profit for a project").
		Handler(s.handleProjectFinance)

	s.mcpServer.Tool("layers_task_finance").
		Description("Aggregate labor cost, external cost, budget and profit for a task").
		Handler(s.handleTaskFinance)
}

func (s *Server) userOr(id string) string {
	if id != "" {
		return id
	}
	return s.user
}

func (s *Server) handleResolveRate(ctx context.Context, args ResolveRateArgs) (any, error) {
	return s.services.Rates.Resolve(ctx, s.userOr(args.UserID), billing.RateContext{
		ProjectID: args.ProjectID,
		TaskID:    args.TaskID,
	}), nil
}

func (s *Server) handleListRateRules(ctx context.Context, args struct{}) (any, error) {
	rules, err := s.services.Rates.ListRules(ctx)
	if err != nil {
		return nil, mcpErr("Failed to list rate rules.")
	}
	if rules == nil {
		rules = []billing.RateRule{}
	}
	return rules, nil
}

func (s *Server) handleLogTime(ctx context.Context, args LogTimeArgs) (any, error) {
	hours, err := parseDecimal("hours", args.Hours)
	if err != nil {
		return nil, err
	}
	rate, err := parseOptionalDecimal("hourly_rate", args.HourlyRate)
	if err != nil {
		return nil, err
	}
	s.services.Housekeeping.RollOverdueTasks(ctx)

	logged, err := s.services.Billing.LogTime(ctx, application.LogTimeInput{
		TaskID:      args.TaskID,
		UserID:      s.userOr(args.UserID),
		Hours:       hours,
		Date:        args.Date,
		Description: args.Description,
		NonBillable: args.NonBillable,
		Rate:        rate,
	})
	if err != nil {
		return nil, toolErr("log time", err)
	}
	return logged, nil
}

func (s *Server) handleEditTimeEntry(ctx context.Context, args EditTimeEntryArgs) (any, error) {
	in := application.EditTimeEntryInput{
		ID:          args.ID,
		UserID:      s.userOr(args.UserID),
		ResolveRate: args.ResolveRate,
	}
	var err error
	if in.Rate, err = parseOptionalDecimal("hourly_rate", args.HourlyRate); err != nil {
		return nil, err
	}
	if in.Hours, err = parseOptionalDecimal("hours", args.Hours); err != nil {
		return nil, err
	}
	if args.Date != "" {
		in.Date = &args.Date
	}
	if args.Description != "" {
		in.Description = &args.Description
	}

	edited, err := s.services.Billing.EditTimeEntry(ctx, in)
	if err != nil {
		return nil, toolErr("edit time entry", err)
	}
	return edited, nil
}

func (s *Server) handleDeleteTimeEntry(ctx context.Context, args EntryArgs) (string, error) {
	if err := s.services.Billing.DeleteTimeEntry(ctx, s.userOr(args.UserID), args.ID); err != nil {
		return "", toolErr("delete time entry", err)
	}
	return fmt.Sprintf("Time entry %s deleted", args.ID), nil
}

func (s *Server) handleListTimeEntries(ctx context.Context, args TaskArgs) (any, error) {
	entries, err := s.services.Billing.ListTimeEntries(ctx, args.TaskID)
	if err != nil {
		return nil, toolErr("list time entries", err)
	}
	if entries == nil {
		entries = []billing.TimeEntry{}
	}
	return entries, nil
}

func (s *Server) handleStartTimer(ctx context.Context, args StartTimerArgs) (any, error) {
	s.services.Housekeeping.RollOverdueTasks(ctx)
	timer, err := s.services.Timers.Start(ctx, s.userOr(args.UserID), args.TaskID)
	if err != nil {
		return nil, toolErr("start timer", err)
	}
	return timer, nil
}

func (s *Server) handleStopTimer(ctx context.Context, args StopTimerArgs) (any, error) {
	res, err := s.services.Timers.Stop(ctx, application.StopTimerInput{
		UserID:      s.userOr(args.UserID),
		TimerID:     args.TimerID,
		Description: args.Description,
	})
	if err != nil {
		return nil, toolErr("stop timer", err)
	}
	return res, nil
}

type budgetResp struct {
	Budget *billing.BudgetStatus  `json:"budget"`
	Rate   billing.RateResolution `json:"rate"`
}

func (s *Server) handleBudgetStatus(ctx context.Context, args TaskArgs) (any, error) {
	status, rate, err := s.services.Billing.BudgetStatus(ctx, s.userOr(args.UserID), args.TaskID)
	if err != nil {
		return nil, toolErr("get budget status", err)
	}
	return budgetResp{Budget: status, Rate: rate}, nil
}

func (s *Server) handleProjectFinance(ctx context.Context, args ProjectArgs) (any, error) {
	snap, err := s.services.Finance.ProjectFinance(ctx, args.ProjectID)
	if err != nil {
		return nil, toolErr("aggregate project finance", err)
	}
	return snap, nil
}

func (s *Server) handleTaskFinance(ctx context.Context, args TaskArgs) (any, error) {
	snap, err := s.services.Finance.TaskFinance(ctx, args.TaskID)
	if err != nil {
		return nil, toolErr("aggregate task finance", err)
	}
	return snap, nil
}

// toolErr keeps validation and lookup messages, which are safe and useful to
// the client, and hides everything else.
func toolErr(action string, err error) error {
	switch {
	case errors.Is(err, billing.ErrValidation),
		errors.Is(err, billing.ErrNotFound),
		errors.Is(err, billing.ErrTimerRunning):
		return mcpErr(fmt.Sprintf("Failed to %s: %s", action, err))
	default:
		return mcpErr(fmt.Sprintf("Failed to %s.", action))
	}
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, mcpErr(fmt.Sprintf("%s must be a decimal number, got %q", field, value))
	}
	return d, nil
}

func parseOptionalDecimal(field, value string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}
