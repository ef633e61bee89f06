package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestRun_Help(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"layers", "--help"}
	var stderr bytes.Buffer
	if code := run(&stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestRun_InvalidCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"layers", "invalid-cmd-999"}
	var stderr bytes.Buffer
	if code := run(&stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRun_PrintsHint(t *testing.T) {
	oldArgs := os.Args
	oldWd, _ := os.Getwd()
	defer func() {
		os.Args = oldArgs
		_ = os.Chdir(oldWd)
	}()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LAYERS_USER", "alice")
	t.Setenv("LAYERS_LOG_LEVEL", "error")

	os.Args = []string{"layers", "timer", "stop"}
	var stderr bytes.Buffer
	if code := run(&stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Hint: Start one with 'layers timer start <task-id>'") {
		t.Errorf("expected hint, got %q", stderr.String())
	}
}
