package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Track time with a running stopwatch",
}

var timerStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start a timer on a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		user, err := actingUser(services)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		services.Housekeeping.RollOverdueTasks(ctx)

		timer, err := services.Timers.Start(ctx, user, args[0])
		if err != nil {
			return MapError(fmt.Errorf("failed to start timer: %w", err))
		}
		fmt.Printf("Timer %s started on %s at %s\n", timer.ID, timer.TaskID, timer.StartedAt.Format(time.RFC3339))
		return nil
	},
}

var timerStopCmd = &cobra.Command{
	Use:   "stop [timer-id]",
	Short: "Stop the running timer and log its time",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		user, err := actingUser(services)
		if err != nil {
			return err
		}
		in := application.StopTimerInput{UserID: user, Description: timerDescription}
		if len(args) == 1 {
			in.TimerID = args[0]
		}

		res, err := services.Timers.Stop(commandContext(cmd), in)
		if err != nil {
			return MapError(fmt.Errorf("failed to stop timer: %w", err))
		}

		if res.AlreadyStopped {
			fmt.Printf("Timer %s was already stopped (%s)\n", res.Timer.ID, res.Duration)
		} else {
			fmt.Printf("Timer %s stopped after %s\n", res.Timer.ID, res.Duration)
		}
		if res.Entry == nil {
			fmt.Println("No time recorded.")
			return nil
		}
		fmt.Printf("Logged %s hours on %s\n", res.Hours.StringFixed(3), res.Entry.TaskID)
		fmt.Printf("Rate:   %s/hr (%s)\n", res.Rate.HourlyRate.StringFixed(2), res.Rate.Source)
		fmt.Printf("Amount: %s\n", res.Amount.StringFixed(2))
		return nil
	},
}

var timerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the running timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		user, err := actingUser(services)
		if err != nil {
			return err
		}
		timer, err := services.Timers.Current(commandContext(cmd), user)
		if errors.Is(err, billing.ErrTimerNotFound) {
			fmt.Println("No timer running.")
			return nil
		}
		if err != nil {
			return MapError(fmt.Errorf("failed to read timer: %w", err))
		}

		elapsed := timer.Elapsed(time.Now().UTC()).Truncate(time.Second)
		fmt.Printf("Timer %s on %s\n", timer.ID, timer.TaskID)
		fmt.Printf("Started: %s\n", timer.StartedAt.Format(time.RFC3339))
		fmt.Printf("Elapsed: %s (%s hours)\n", elapsed, billing.HoursFromDuration(elapsed).StringFixed(3))
		return nil
	},
}

var timerDescription string

func init() {
	timerStopCmd.Flags().StringVarP(&timerDescription, "description", "d", "", "Description for the logged entry")

	timerCmd.AddCommand(timerStartCmd)
	timerCmd.AddCommand(timerStopCmd)
	timerCmd.AddCommand(timerCurrentCmd)
	RootCmd.AddCommand(timerCmd)
}
