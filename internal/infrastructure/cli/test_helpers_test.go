package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/cobra"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	return buf.String()
}

func withTempDir(t *testing.T) (string, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "layers-cli-test-*")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	old, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	return dir, func() {
		_ = os.Chdir(old)
		_ = os.RemoveAll(dir)
	}
}

// withWorkspace runs in a fresh directory as alice with quiet logging.
func withWorkspace(t *testing.T) (string, func()) {
	t.Helper()

	t.Setenv("LAYERS_USER", "alice")
	t.Setenv("LAYERS_LOG_LEVEL", "error")
	resetFlags()
	return withTempDir(t)
}

func resetFlags() {
	projectPath, userFlag = "", ""
	projectName, projectRate = "", ""
	taskID, taskProject, taskBudget, taskEstimate, taskRate, taskDue = "", "", "", "", "", ""
	costTaskID, costDescription, costDate, costNonBillable = "", "", "", false
	rateID, rateName, rateAmount, rateUser, rateProject, rateTask = "", "", "", "", "", ""
	rateFrom, rateTo, rateDefault, rateFile, rateWatch = "", "", false, "", false
	timeDate, timeHours, timeRate, timeDescription = "", "", "", ""
	timeNonBillable, timeResolveRate = false, false
	timerDescription = ""
	financeFormat, financeOutput = "text", ""
	mcpTransport, mcpAddr = "stdio", ":8080"
}

// run executes cmd's RunE and returns what it printed.
func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()

	var runErr error
	out := captureStdout(t, func() {
		runErr = cmd.RunE(cmd, args)
	})
	if runErr != nil {
		t.Fatalf("%s %v failed: %v\noutput:\n%s", cmd.Name(), args, runErr, out)
	}
	return out
}

// runErr executes cmd's RunE and returns the error it produced.
func runErr(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()

	var err error
	captureStdout(t, func() {
		err = cmd.RunE(cmd, args)
	})
	return err
}

// seedProject creates project p1 at 60/hr with task t1 estimated at 2 hours.
func seedProject(t *testing.T) {
	t.Helper()

	projectRate = "60"
	run(t, projectAddCmd, "p1")
	projectRate = ""

	taskID, taskProject, taskEstimate = "t1", "p1", "2"
	run(t, taskAddCmd, "Design")
	taskID, taskProject, taskEstimate = "", "", ""
}
